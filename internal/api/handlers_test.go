package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshslysz/phyl-chatbot/internal/agent"
)

// stubResponder records questions and returns a scripted result.
type stubResponder struct {
	result *agent.RunResult
	err    error
	calls  []string
}

func (s *stubResponder) Respond(ctx context.Context, question string) (*agent.RunResult, error) {
	s.calls = append(s.calls, question)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubHealth struct {
	healthy bool
}

func (s *stubHealth) Healthy() bool {
	return s.healthy
}

func newTestServer(t *testing.T, responder *stubResponder, health *stubHealth) *Server {
	t.Helper()
	s, err := New(Config{
		Logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
		Responder:  responder,
		Health:     health,
		Keys:       KeyStatus{ClaudeAPIKeyLoaded: true, DatabaseURILoaded: true},
		ListenAddr: "127.0.0.1:0",
		Version:    "test",
	})
	require.NoError(t, err)
	return s
}

func postAsk(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Ask(t *testing.T) {
	t.Run("valid question", func(t *testing.T) {
		responder := &stubResponder{
			result: &agent.RunResult{
				FinalText:  "Instructors respond to email within 48 hours.",
				Sources:    []string{"list_objects", "execute_sql"},
				CourseData: []map[string]any{{"policy_name": "email", "details": "respond within 48 hours"}},
				Rounds:     3,
			},
		}
		s := newTestServer(t, responder, &stubHealth{healthy: true})

		rec := postAsk(s, `{"question": "What is the email policy?"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp AskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Answer, "48 hours")
		assert.Equal(t, []string{"list_objects", "execute_sql"}, resp.Sources)
		require.Len(t, resp.CourseData, 1)
		assert.Equal(t, "email", resp.CourseData[0]["policy_name"])
		require.Len(t, responder.calls, 1)
		assert.Equal(t, "What is the email policy?", responder.calls[0])
	})

	t.Run("empty question rejected before any work", func(t *testing.T) {
		responder := &stubResponder{}
		s := newTestServer(t, responder, &stubHealth{healthy: true})

		for _, body := range []string{`{"question": ""}`, `{"question": "   "}`, `{}`} {
			rec := postAsk(s, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
			assert.Contains(t, rec.Body.String(), "Question cannot be empty")
		}
		assert.Empty(t, responder.calls, "the responder must never see an empty question")
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(t, &stubResponder{}, &stubHealth{healthy: true})

		rec := postAsk(s, `{"question": `)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("responder failure becomes an apology not a 5xx", func(t *testing.T) {
		responder := &stubResponder{err: fmt.Errorf("failed to get response: overloaded")}
		s := newTestServer(t, responder, &stubHealth{healthy: true})

		rec := postAsk(s, `{"question": "When is the final exam?"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp AskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, degradedAnswer, resp.Answer)
		assert.Empty(t, resp.Sources)
	})
}

func TestAPI_Health(t *testing.T) {
	tests := []struct {
		name       string
		healthy    bool
		wantStatus string
		wantMCP    string
	}{
		{name: "running", healthy: true, wantStatus: "healthy", wantMCP: "running"},
		{name: "stopped", healthy: false, wantStatus: "degraded", wantMCP: "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &stubResponder{}, &stubHealth{healthy: tt.healthy})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			s.http.Handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			assert.Equal(t, tt.wantMCP, resp["mcp_server"])
		})
	}
}

func TestAPI_Config(t *testing.T) {
	s := newTestServer(t, &stubResponder{}, &stubHealth{healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp KeyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ClaudeAPIKeyLoaded)
	assert.True(t, resp.DatabaseURILoaded)
}

func TestAPI_Root(t *testing.T) {
	s := newTestServer(t, &stubResponder{}, &stubHealth{healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp["status"])
	assert.Equal(t, "test", resp["version"])
}

func TestAPI_ConfigValidate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	responder := &stubResponder{}
	health := &stubHealth{}

	cfg := &Config{Responder: responder, Health: health, ListenAddr: ":8000"}
	require.ErrorContains(t, cfg.Validate(), "logger is required")

	cfg = &Config{Logger: log, Health: health, ListenAddr: ":8000"}
	require.ErrorContains(t, cfg.Validate(), "responder is required")

	cfg = &Config{Logger: log, Responder: responder, ListenAddr: ":8000"}
	require.ErrorContains(t, cfg.Validate(), "health reporter is required")

	cfg = &Config{Logger: log, Responder: responder, Health: health}
	require.ErrorContains(t, cfg.Validate(), "listen address is required")

	cfg = &Config{Logger: log, Responder: responder, Health: health, ListenAddr: ":8000"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultAskTimeout, cfg.AskTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}
