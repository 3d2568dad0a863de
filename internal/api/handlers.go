package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/joshslysz/phyl-chatbot/internal/api/metrics"
)

// AskRequest is a student's question.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the answer returned to the student.
type AskResponse struct {
	Answer     string           `json:"answer"`
	Sources    []string         `json:"sources,omitempty"`
	CourseData []map[string]any `json:"course_data,omitempty"`
}

// degradedAnswer is the body sent when the conversation itself failed. The
// student gets an apology, not a stack trace or a 5xx.
const degradedAnswer = "I'm sorry, something went wrong while looking up your answer. Please try again in a moment."

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "Question cannot be empty", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	s.log.Info("api: question received", "chars", len(req.Question))

	result, err := s.cfg.Responder.Respond(ctx, req.Question)
	if err != nil {
		s.log.Error("api: failed to answer question", "error", err)
		metrics.QuestionsTotal.WithLabelValues("error").Inc()
		s.writeJSON(w, http.StatusOK, AskResponse{Answer: degradedAnswer})
		return
	}

	metrics.QuestionsTotal.WithLabelValues("success").Inc()
	metrics.ConversationRounds.Observe(float64(result.Rounds))
	s.log.Info("api: question answered", "rounds", result.Rounds, "sources", result.Sources)

	s.writeJSON(w, http.StatusOK, AskResponse{
		Answer:     result.FinalText,
		Sources:    result.Sources,
		CourseData: result.CourseData,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"service": "course chatbot",
		"status":  "running",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mcpStatus := "stopped"
	status := "degraded"
	if s.cfg.Health.Healthy() {
		mcpStatus = "running"
		status = "healthy"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     status,
		"mcp_server": mcpStatus,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Keys)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("api: failed to write response", "error", err)
	}
}
