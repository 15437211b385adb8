package geofence

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// NominatimGeocoder 兼容 Nominatim /search 接口的地理编码客户端
type NominatimGeocoder struct {
	client    *client.Client
	baseURL   string
	userAgent string
}

func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration) (*NominatimGeocoder, error) {
	c, err := client.NewClient(
		client.WithDialer(standard.NewDialer()),
		client.WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}),
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
		client.WithWriteTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoder client: %w", err)
	}

	return &NominatimGeocoder{
		client:    c,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}, nil
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) ([]Coordinates, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodGet)
	req.SetRequestURI(g.baseURL + "/search?" + params.Encode())
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	if err := g.client.Do(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	if resp.StatusCode() != consts.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode())
	}

	var places []nominatimPlace
	if err := json.Unmarshal(resp.Body(), &places); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	coords := make([]Coordinates, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			continue
		}
		coords = append(coords, Coordinates{Latitude: lat, Longitude: lon})
	}
	return coords, nil
}
