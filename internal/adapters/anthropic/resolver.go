package anthropic

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aquaripple/aquaripple/internal/adapters/analytics"
	"github.com/aquaripple/aquaripple/internal/core/domain"
)

const (
	DefaultModel     = "claude-haiku-4-5-20251001"
	DefaultMaxTokens = 512
)

const promptTemplate = `You are a precise geographic lookup tool. Given EXACTLY these coordinates: latitude=%s, longitude=%s

Your task: identify the water body located AT these exact coordinates.

Rules:
- Only return a water body if it is directly at or immediately touching these coordinates (within ~100 metres)
- Do NOT return nearby landmarks, famous lakes, or well-known features that are not at this exact location
- Do NOT guess or infer based on general area knowledge
- If you are not confident a water body exists at exactly these coordinates, set is_water to false
- Distance matters: a result 1km away is wrong, 10km away is very wrong

Respond only with valid JSON, no markdown:
{
  "is_water": true or false,
  "name": "exact name of water body at these coordinates or null",
  "water_type": "river|lake|estuary|ocean|reservoir|canal|stream|other or null",
  "description": "1-2 sentence description or null",
  "message": "null if is_water is true, otherwise friendly message that location appears to be on land"
}`

var codeFence = regexp.MustCompile("(?m)^```(?:json)?\\s*|\\s*```$")

// Resolver implements ports.WaterBodyResolver by asking a Claude model
// to identify the water body at a point.
type Resolver struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithModel overrides the model ID.
func WithModel(m string) Option {
	return func(r *Resolver) {
		if m != "" {
			r.model = m
		}
	}
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

// NewResolver creates a Resolver. Extra request options (base URL, HTTP
// client, timeout) are passed through to the SDK. Retries are disabled so
// failures surface to the caller as they happen.
func NewResolver(apiKey string, reqOpts []option.RequestOption, opts ...Option) *Resolver {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, reqOpts...)

	r := &Resolver{
		client:    sdk.NewClient(all...),
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Name() string { return "anthropic" }

// Resolve sends the lookup prompt and parses the model's JSON reply.
func (r *Resolver) Resolve(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
	msg, err := r.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(Prompt(point))),
		},
	})
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("anthropic: create message: %w", err)
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return domain.ResolverResult{}, errors.New("anthropic: no text in response")
	}

	res, err := analytics.DecodeLookupResponse([]byte(StripCodeFence(text.String())))
	if err != nil {
		return domain.ResolverResult{}, fmt.Errorf("anthropic: %w", err)
	}
	return res, nil
}

// Prompt renders the lookup prompt for point.
func Prompt(point domain.Coordinate) string {
	return fmt.Sprintf(promptTemplate,
		strconv.FormatFloat(point.Latitude, 'f', -1, 64),
		strconv.FormatFloat(point.Longitude, 'f', -1, 64),
	)
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(strings.TrimSpace(s), ""))
}
