package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// Client implements ports.WaterBodyResolver against the analytics
// service's location lookup endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an analytics client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Name() string { return "analytics" }

type lookupRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LookupResponse is the analytics wire format shared with LLM-backed resolvers.
type LookupResponse struct {
	IsWater     *bool   `json:"is_water"`
	Name        *string `json:"name"`
	WaterType   *string `json:"water_type"`
	Description *string `json:"description"`
	Message     *string `json:"message"`
}

// Result validates the response and converts it. A missing is_water is an
// error rather than a negative answer.
func (r LookupResponse) Result() (domain.ResolverResult, error) {
	if r.IsWater == nil {
		return domain.ResolverResult{}, errors.New("response missing is_water")
	}
	return domain.ResolverResult{
		IsWater:     *r.IsWater,
		Name:        nonEmpty(r.Name),
		WaterType:   nonEmpty(r.WaterType),
		Description: nonEmpty(r.Description),
		Message:     nonEmpty(r.Message),
	}, nil
}

// DecodeLookupResponse parses a single JSON object in the analytics format.
func DecodeLookupResponse(data []byte) (domain.ResolverResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return domain.ResolverResult{}, errors.New("empty response")
	}
	var r LookupResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.ResolverResult{}, fmt.Errorf("decode response: %w", err)
	}
	return r.Result()
}

// Resolve posts the point to <base>/location/lookup.
func (c *Client) Resolve(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
	payload, err := json.Marshal(lookupRequest{Lat: point.Latitude, Lon: point.Longitude})
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/location/lookup", bytes.NewReader(payload))
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("analytics request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ResolverResult{}, fmt.Errorf("analytics API error: status %d: %s", resp.StatusCode, truncate(body, 512))
	}

	return DecodeLookupResponse(body)
}

// nonEmpty treats "" and the literal "null" some models emit as absent.
func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || v == "null" {
		return nil
	}
	return &v
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
