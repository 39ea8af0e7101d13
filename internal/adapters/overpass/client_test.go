package overpass_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaripple/aquaripple/internal/adapters/overpass"
	"github.com/aquaripple/aquaripple/internal/core/domain"
)

var taupo = domain.Coordinate{Latitude: -38.68, Longitude: 176.005}

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/interpreter", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, overpass.DefaultUserAgent, r.Header.Get("User-Agent"))
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "is_in(-38.68,176.005)")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_NamedWater(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"elements":[
		{"type":"relation","id":1,"tags":{"natural":"water","water":"lake","name":"Lake Taupo"}},
		{"type":"way","id":2,"tags":{"natural":"water"}}
	]}`)

	c := overpass.NewClient(5*time.Second, overpass.WithBaseURL(srv.URL))
	res, err := c.Resolve(context.Background(), taupo)
	require.NoError(t, err)
	assert.True(t, res.IsWater)
	require.NotNil(t, res.Name)
	assert.Equal(t, "Lake Taupo", *res.Name)
	require.NotNil(t, res.WaterType)
	assert.Equal(t, "lake", *res.WaterType)
	assert.Nil(t, res.Message)
}

func TestResolve_UnnamedWaterUsesDefault(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"elements":[{"type":"way","id":7,"tags":{"natural":"water"}}]}`)

	c := overpass.NewClient(5*time.Second, overpass.WithBaseURL(srv.URL))
	res, err := c.Resolve(context.Background(), taupo)
	require.NoError(t, err)
	assert.True(t, res.IsWater)
	assert.Equal(t, domain.UnknownWaterBodyName, *res.Name)
	assert.Equal(t, "water", *res.WaterType)
}

func TestResolve_NoElementsIsNotWater(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"version":0.6,"elements":[]}`)

	c := overpass.NewClient(5*time.Second, overpass.WithBaseURL(srv.URL))
	res, err := c.Resolve(context.Background(), taupo)
	require.NoError(t, err)
	assert.False(t, res.IsWater)
	assert.Nil(t, res.Name)
	require.NotNil(t, res.Message)
	assert.Equal(t, overpass.NotWaterMessage, *res.Message)
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusGatewayTimeout, `runtime error: timeout`},
		{"too many requests", http.StatusTooManyRequests, `rate_limited`},
		{"malformed json", http.StatusOK, `{"elements":[`},
		{"missing elements", http.StatusOK, `{"remark":"runtime error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			c := overpass.NewClient(5*time.Second, overpass.WithBaseURL(srv.URL))

			_, err := c.Resolve(context.Background(), taupo)
			assert.Error(t, err)
		})
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := overpass.NewClient(5*time.Second, overpass.WithBaseURL(srv.URL))
	_, err := c.Resolve(ctx, taupo)
	require.Error(t, err)
}

func TestResolve_RateLimitHonoursContext(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"elements":[]}`)
	c := overpass.NewClient(5*time.Second, overpass.WithBaseURL(srv.URL), overpass.WithRateLimit(0.01))

	_, err := c.Resolve(context.Background(), taupo)
	require.NoError(t, err)

	// The bucket is now empty and refills in 100s; a short deadline must fail fast.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Resolve(ctx, taupo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestBuildQuery(t *testing.T) {
	q := overpass.BuildQuery(domain.Coordinate{Latitude: 43.263, Longitude: -2.935})

	assert.True(t, strings.HasPrefix(q, "[out:json]"))
	assert.Contains(t, q, "is_in(43.263,-2.935)->.a;")
	assert.Contains(t, q, `way(pivot.a)["natural"="water"];`)
	assert.Contains(t, q, `relation(pivot.a)["water"];`)
	assert.True(t, strings.HasSuffix(q, "out tags;"))
}
