package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/internal/storage"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusResponse describes the serving configuration and the last ingestion run.
type statusResponse struct {
	Status         string            `json:"status"`
	Collection     string            `json:"collection"`
	VectorStore    string            `json:"vector_store"`
	EmbeddingModel string            `json:"embedding_model"`
	ChatModel      string            `json:"chat_model"`
	TopK           int               `json:"top_k"`
	LastRun        *models.IngestRun `json:"last_run"`
	DiskUsage      map[string]int64  `json:"disk_usage_bytes,omitempty"`
	DiskUsageTotal int64             `json:"disk_usage_total_bytes,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxQuestionBody))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, models.KindInvalidQuestion, "failed to read request body")
		return
	}
	question := string(body)
	s.logger.Debug("ask request",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("bytes", len(body)))

	answer, err := s.asker.Ask(r.Context(), question)
	if err != nil {
		status := statusFor(err)
		kind := models.KindOf(err)
		if status == http.StatusGatewayTimeout {
			kind = models.KindTimeout
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("ask failed", zap.String("kind", kind), zap.Error(err))
		}
		s.respondError(w, status, kind, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

// statusFor maps an Ask error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrInvalidQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.config
	resp := statusResponse{
		Status:         "ok",
		Collection:     cfg.Milvus.Collection,
		VectorStore:    cfg.Vector.Type,
		EmbeddingModel: cfg.Embedding.Model,
		ChatModel:      cfg.Chat.Model,
		TopK:           cfg.Vector.TopK,
	}
	if s.ledger != nil {
		run, err := s.ledger.LastRun(r.Context())
		if err != nil {
			s.logger.Error("status: last run failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, models.KindOf(err), err.Error())
			return
		}
		resp.LastRun = run
	}

	paths := map[string]string{"ledger": cfg.Ingest.LedgerPath}
	if cfg.Vector.Type == config.VectorTypeMemory {
		paths["vectors"] = cfg.Vector.MemoryPath
	}
	usage, total, err := storage.DiskUsage(paths)
	if err != nil {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	} else {
		resp.DiskUsage = usage
		resp.DiskUsageTotal = total
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, kind, message string) {
	s.respondJSON(w, status, errorResponse{Error: message, Kind: kind})
}
