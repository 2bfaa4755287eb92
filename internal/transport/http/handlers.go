package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/numero41/SNTNZ-sub000/internal/domain"
)

// chunkPageSize caps how many sealed chunks one request returns.
const chunkPageSize = 50

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// TextResponse is the response for the current text window
type TextResponse struct {
	LedgerWindow []*domain.WordRecord `json:"ledgerWindow"`
}

// ChunksResponse is the response for sealed chunk history
type ChunksResponse struct {
	Chunks []*domain.Chunk `json:"chunks"`
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.GetStats()
	s.sendSuccess(w, &stats)
}

// handleText handles GET /api/text
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &TextResponse{
		LedgerWindow: s.engine.Window(),
	})
}

// handleChunks handles GET /api/chunks
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	limit := chunkPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > chunkPageSize {
			s.sendError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 50")
			return
		}
		limit = parsed
	}

	chunks, err := s.store.Chunks(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing chunks failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	s.sendSuccess(w, &ChunksResponse{Chunks: chunks})
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
