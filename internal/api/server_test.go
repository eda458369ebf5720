package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/raaihank/mask-sentinel/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	engine, err := privacy.New(cfg.Privacy, nil)
	require.NoError(t, err)
	return New(cfg, nil, engine, nil, nil)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]interface{}
	decode(t, rec, &info)
	assert.Equal(t, "mask-sentinel", info["name"])
	assert.Equal(t, float64(5), info["total_rules"])
	assert.Equal(t, true, info["masking_enabled"])

	ws, ok := info["websocket"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, ws, "dropped_events")
	assert.Equal(t, float64(0), ws["active_connections"])
}

func TestDisplayPage(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/display", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ws")

	off := newTestServer(t, func(c *config.Config) { c.WebSocket.Enabled = false })
	rec = do(t, off, http.MethodGet, "/display", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("uses relay credentials", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) {
			c.WebSocket.Username = "viewer"
			c.WebSocket.Password = "secret"
		})

		rec := do(t, s, http.MethodGet, "/display", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

		req := httptest.NewRequest(http.MethodGet, "/display", nil)
		req.SetBasicAuth("viewer", "wrong")
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req = httptest.NewRequest(http.MethodGet, "/display", nil)
		req.SetBasicAuth("viewer", "secret")
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMaskAndRestore(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/v1/mask", maskRequest{
		Text:         "田中太郎さんのメールはtanaka@example.comです",
		SnapshotName: "conversation-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var masked struct {
		MaskedText string              `json:"masked_text"`
		Detections []privacy.Detection `json:"detections"`
		Mapping    map[string]string   `json:"mapping_table"`
		Summary    privacy.Summary     `json:"summary"`
		Snapshot   *snapshot.Snapshot  `json:"snapshot"`
	}
	decode(t, rec, &masked)

	assert.Equal(t, "[Person_A]さんのメールは[Email_A]です", masked.MaskedText)
	assert.Equal(t, map[string]string{"[Person_A]": "田中太郎", "[Email_A]": "tanaka@example.com"}, masked.Mapping)
	assert.Equal(t, 1, masked.Summary["email"].Count)
	require.NotNil(t, masked.Snapshot)
	assert.Equal(t, "conversation-1", masked.Snapshot.Name)
	assert.Equal(t, 2, masked.Snapshot.EntryCount)

	t.Run("restore with mapping", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/v1/restore", map[string]interface{}{
			"text":          "Reply to [Person_A] at [Email_A]",
			"mapping_table": masked.Mapping,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var out restoreResponse
		decode(t, rec, &out)
		assert.Equal(t, "Reply to 田中太郎 at tanaka@example.com", out.Text)
	})

	t.Run("restore with snapshot", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/v1/restore", restoreRequest{
			Text:       "[Email_A]",
			SnapshotID: masked.Snapshot.ID,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var out restoreResponse
		decode(t, rec, &out)
		assert.Equal(t, "tanaka@example.com", out.Text)
	})

	t.Run("restore errors", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/v1/restore", restoreRequest{Text: "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, s, http.MethodPost, "/v1/restore", restoreRequest{Text: "x", SnapshotID: "missing"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error"`)
	})

	t.Run("stats accumulate", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/v1/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var st statsResponse
		decode(t, rec, &st)
		assert.Equal(t, int64(2), st.Total)
		assert.Equal(t, int64(1), st.Totals["name"].Count)

		rec = do(t, s, http.MethodDelete, "/v1/stats", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, s, http.MethodGet, "/v1/stats", nil)
		decode(t, rec, &st)
		assert.Equal(t, int64(0), st.Total)
	})
}

func TestMask_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/v1/mask", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/mask", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/mask", maskRequest{Text: "x", Rules: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nope")

	rec = do(t, s, http.MethodGet, "/v1/mask", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMask_BodyLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 64 })

	rec := do(t, s, http.MethodPost, "/v1/mask", maskRequest{Text: strings.Repeat("a", 200)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPatternsLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPut, "/v1/patterns/order_id", patternRequest{
		Matcher:     `ORD-\d{6}`,
		Label:       "Order",
		Description: "order numbers",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info privacy.PatternInfo
	decode(t, rec, &info)
	assert.Equal(t, "order_id", info.Key)
	assert.False(t, info.Builtin)

	rec = do(t, s, http.MethodPost, "/v1/mask", maskRequest{Text: "Order ORD-123456 shipped"})
	assert.Contains(t, rec.Body.String(), `"masked_text":"Order [Order_A] shipped"`)

	rec = do(t, s, http.MethodPatch, "/v1/patterns/order_id", map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &info)
	assert.False(t, info.Enabled)

	rec = do(t, s, http.MethodGet, "/v1/patterns", nil)
	var list struct {
		Patterns []privacy.PatternInfo `json:"patterns"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Patterns, 6)
	assert.Equal(t, "order_id", list.Patterns[5].Key)

	rec = do(t, s, http.MethodDelete, "/v1/patterns/order_id", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodDelete, "/v1/patterns/order_id", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	t.Run("errors", func(t *testing.T) {
		rec := do(t, s, http.MethodPut, "/v1/patterns/bad", patternRequest{Matcher: "(", Label: "Bad"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, s, http.MethodPut, "/v1/patterns/bad", patternRequest{Matcher: "x+", Label: "has space"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, s, http.MethodPatch, "/v1/patterns/missing", map[string]bool{"enabled": true})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(t, s, http.MethodPatch, "/v1/patterns/email", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestValidatePattern(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		matcher string
		valid   bool
	}{
		{`ORD-\d{6}`, true},
		{`a*`, false},
		{`(`, false},
		{``, false},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodPost, "/v1/patterns/validate", patternRequest{Matcher: tt.matcher})
		require.Equal(t, http.StatusOK, rec.Code)
		var out validateResponse
		decode(t, rec, &out)
		assert.Equal(t, tt.valid, out.Valid, tt.matcher)
		if !tt.valid {
			assert.NotEmpty(t, out.Error)
		}
	}
}

func TestSnapshotsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	for i := 0; i < 3; i++ {
		rec := do(t, s, http.MethodPost, "/v1/mask", maskRequest{
			Text:         fmt.Sprintf("user%d@example.com", i),
			SnapshotName: fmt.Sprintf("snap-%d", i),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/v1/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Snapshots []snapshot.Snapshot `json:"snapshots"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Snapshots, 3)
	assert.Equal(t, "snap-2", list.Snapshots[0].Name)
	assert.Nil(t, list.Snapshots[0].Mapping)

	id := list.Snapshots[0].ID
	rec = do(t, s, http.MethodGet, "/v1/snapshots/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"[Email_A]":"user2@example.com"`)

	rec = do(t, s, http.MethodDelete, "/v1/snapshots/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, "/v1/snapshots/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, Burst: 2}
	})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, s, http.MethodGet, "/v1/patterns", nil).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestApplyConfig(t *testing.T) {
	s := newTestServer(t, nil)

	cfg := config.GetDefaults()
	cfg.Privacy.Patterns = []string{"email"}
	require.NoError(t, s.ApplyConfig(cfg))

	rec := do(t, s, http.MethodPost, "/v1/mask", maskRequest{Text: "Mr. John Smith <john@example.com>"})
	assert.Contains(t, rec.Body.String(), `"masked_text":"Mr. John Smith <[Email_A]>"`)

	cfg.Privacy.Patterns = []string{"unknown"}
	assert.Error(t, s.ApplyConfig(cfg))
}

func TestIPLimiterCleanup(t *testing.T) {
	l := newIPLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 60, Burst: 1})
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	assert.Equal(t, 0, l.cleanup(limiterIdleTimeout))
	assert.Equal(t, 2, l.cleanup(-1))
	assert.True(t, l.Allow("a"))

	disabled := newIPLimiter(config.RateLimitConfig{Enabled: false})
	for i := 0; i < 10; i++ {
		assert.True(t, disabled.Allow("x"))
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(snapshot.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("wrap: %w", privacy.ErrUnknownRule)))
	assert.Equal(t, http.StatusBadRequest, statusFor(&privacy.PatternError{Key: "k", Err: privacy.ErrInvalidLabel}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(&http.MaxBytesError{Limit: 1}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}
