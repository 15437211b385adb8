package mq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type capturePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (p *capturePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func TestPublishWithTracingKeepsHeadersAndRouting(t *testing.T) {
	pub := &capturePublisher{}
	msg := amqp.Publishing{MessageId: "42", Headers: amqp.Table{"x-origin": "test"}, Body: []byte(`{}`)}

	if err := PublishWithTracing(context.Background(), pub, "kikenqr", "clockin.events", "clockin.recorded", msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.exchange != "clockin.events" || pub.key != "clockin.recorded" {
		t.Fatalf("unexpected routing %s/%s", pub.exchange, pub.key)
	}
	if pub.msg.Headers["x-origin"] != "test" || pub.msg.MessageId != "42" {
		t.Fatalf("message fields lost: %+v", pub.msg)
	}

	pub.err = errors.New("channel closed")
	if err := PublishWithTracing(context.Background(), pub, "kikenqr", "clockin.events", "clockin.recorded", msg); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestMessageHeaderCarrier(t *testing.T) {
	c := &MessageHeaderCarrier{}
	c.Set("traceparent", "00-abc")
	if c.Get("traceparent") != "00-abc" || len(c.Keys()) != 1 {
		t.Fatalf("carrier round trip failed: %+v", c.Headers)
	}
	if c.Get("missing") != "" {
		t.Fatalf("missing key must be empty")
	}
}
