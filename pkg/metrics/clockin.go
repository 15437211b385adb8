package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ClockInMetrics 打卡流程的业务指标
type ClockInMetrics struct {
	SubmissionsTotal        metric.Int64Counter
	ProximityRejectedTotal  metric.Int64Counter
	SubjectsCreatedTotal    metric.Int64Counter
	DuplicateRecoveredTotal metric.Int64Counter
	EventsRecordedTotal     metric.Int64Counter
}

// 未初始化时所有 Record* 都是空操作
var metrics *ClockInMetrics

func InitMetrics() error {
	meter := otel.Meter("kikenqr")
	m := &ClockInMetrics{}

	var err error
	if m.SubmissionsTotal, err = meter.Int64Counter(
		"clockin_submissions_total",
		metric.WithDescription("Clock-in step submissions by step and outcome"),
		metric.WithUnit("{submission}"),
	); err != nil {
		return err
	}

	if m.ProximityRejectedTotal, err = meter.Int64Counter(
		"clockin_proximity_rejected_total",
		metric.WithDescription("Submissions rejected by the geofence"),
		metric.WithUnit("{submission}"),
	); err != nil {
		return err
	}

	if m.SubjectsCreatedTotal, err = meter.Int64Counter(
		"clockin_subjects_created_total",
		metric.WithDescription("Subjects registered through the clock-in flow"),
		metric.WithUnit("{subject}"),
	); err != nil {
		return err
	}

	if m.DuplicateRecoveredTotal, err = meter.Int64Counter(
		"clockin_duplicate_recovered_total",
		metric.WithDescription("Duplicate identifier races recovered by re-resolving the subject"),
		metric.WithUnit("{race}"),
	); err != nil {
		return err
	}

	if m.EventsRecordedTotal, err = meter.Int64Counter(
		"clockin_events_recorded_total",
		metric.WithDescription("Clock-in events recorded"),
		metric.WithUnit("{event}"),
	); err != nil {
		return err
	}

	metrics = m
	return nil
}

func GetMetrics() *ClockInMetrics {
	return metrics
}

// RecordSubmission outcome 为 ok 或错误码
func RecordSubmission(ctx context.Context, step, outcome string) {
	if metrics == nil {
		return
	}
	metrics.SubmissionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("outcome", outcome),
	))
}

func RecordProximityRejected(ctx context.Context, operationToken string) {
	if metrics == nil {
		return
	}
	metrics.ProximityRejectedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation_token", operationToken),
	))
}

func RecordSubjectCreated(ctx context.Context) {
	if metrics == nil {
		return
	}
	metrics.SubjectsCreatedTotal.Add(ctx, 1)
}

func RecordDuplicateRecovered(ctx context.Context) {
	if metrics == nil {
		return
	}
	metrics.DuplicateRecoveredTotal.Add(ctx, 1)
}

func RecordEventRecorded(ctx context.Context, newSubject bool) {
	if metrics == nil {
		return
	}
	metrics.EventsRecordedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("new_subject", newSubject),
	))
}
