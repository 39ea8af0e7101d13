package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

const (
	DefaultBaseURL   = "https://overpass-api.de/api"
	DefaultUserAgent = "AquaRipple/1.0"

	// NotWaterMessage is returned when no water feature encloses the point.
	NotWaterMessage = "This location does not appear to be a water body. Try dropping the pin directly on a lake, river or coastline."
)

// Client implements ports.WaterBodyResolver using the OpenStreetMap Overpass API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Overpass API root (without /interpreter).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header sent with each query.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit caps queries per second. Public Overpass instances ask
// clients to stay around one request per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an Overpass client.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "overpass" }

// Resolve asks Overpass for water features whose area contains point.
func (c *Client) Resolve(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.ResolverResult{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	form := url.Values{"data": {BuildQuery(point)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/interpreter", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ResolverResult{}, fmt.Errorf("overpass API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ResolverResult{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Elements == nil {
		return domain.ResolverResult{}, fmt.Errorf("decode response: missing elements")
	}

	elements := *out.Elements
	if len(elements) == 0 {
		msg := NotWaterMessage
		return domain.ResolverResult{IsWater: false, Message: &msg}, nil
	}

	first := elements[0]
	c.logger.Debug("overpass match", "type", first.Type, "id", first.ID, "matches", len(elements))

	name := first.Tags["name"]
	if name == "" {
		name = domain.UnknownWaterBodyName
	}
	waterType := first.Tags["water"]
	if waterType == "" {
		waterType = first.Tags["natural"]
	}

	return domain.ResolverResult{
		IsWater:   true,
		Name:      &name,
		WaterType: domain.StringPtr(waterType),
	}, nil
}

// BuildQuery returns the Overpass QL for water features enclosing point.
// Only tags are requested; geometry is not needed to name the feature.
func BuildQuery(point domain.Coordinate) string {
	lat := strconv.FormatFloat(point.Latitude, 'f', -1, 64)
	lon := strconv.FormatFloat(point.Longitude, 'f', -1, 64)
	return fmt.Sprintf(`[out:json][timeout:25];
is_in(%s,%s)->.a;
(
  way(pivot.a)["natural"="water"];
  relation(pivot.a)["natural"="water"];
  way(pivot.a)["water"];
  relation(pivot.a)["water"];
);
out tags;`, lat, lon)
}

// Overpass API response types.

type response struct {
	Elements *[]element `json:"elements"`
}

type element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Tags map[string]string `json:"tags"`
}
