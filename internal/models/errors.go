package models

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Callers match with errors.Is; wrap with fmt.Errorf("%w: ...", Err...).
var (
	// ErrConfiguration indicates a missing credential or required setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrChunking indicates input the chunker cannot treat as text.
	ErrChunking = errors.New("chunking error")
	// ErrEmbeddingService indicates a failed or malformed embedding response.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrStore indicates a vector store rejection.
	ErrStore = errors.New("store error")
	// ErrGenerationService indicates a failed chat completion or empty output.
	ErrGenerationService = errors.New("generation service error")
	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrInvalidQuestion indicates a question rejected before any external call.
	ErrInvalidQuestion = errors.New("invalid question")
)

// Kind names used in API payloads and CLI output.
const (
	KindConfiguration     = "configuration_error"
	KindChunking          = "chunking_error"
	KindEmbeddingService  = "embedding_service_error"
	KindStore             = "store_error"
	KindGenerationService = "generation_service_error"
	KindTimeout           = "timeout"
	KindInvalidQuestion   = "invalid_question"
	KindInternal          = "internal_error"
)

// KindOf maps err to its kind name. Timeout takes precedence over the service kind
// it is wrapped with.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrInvalidQuestion):
		return KindInvalidQuestion
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrChunking):
		return KindChunking
	case errors.Is(err, ErrEmbeddingService):
		return KindEmbeddingService
	case errors.Is(err, ErrStore):
		return KindStore
	case errors.Is(err, ErrGenerationService):
		return KindGenerationService
	default:
		return KindInternal
	}
}

// ErrorForKind is the inverse of KindOf: it returns the sentinel for a kind name,
// or nil for unknown and internal kinds.
func ErrorForKind(kind string) error {
	switch kind {
	case KindTimeout:
		return ErrTimeout
	case KindInvalidQuestion:
		return ErrInvalidQuestion
	case KindConfiguration:
		return ErrConfiguration
	case KindChunking:
		return ErrChunking
	case KindEmbeddingService:
		return ErrEmbeddingService
	case KindStore:
		return ErrStore
	case KindGenerationService:
		return ErrGenerationService
	default:
		return nil
	}
}

// WrapTimeout wraps err with kind, adding ErrTimeout when the call ran past its deadline.
// Returns nil when err is nil.
func WrapTimeout(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %s: %v", kind, ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
