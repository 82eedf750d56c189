package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/docgate/pkg/storage/docstore"
)

// CredentialIssuer mints opaque session credentials for successful batches.
// Implemented by session.Authority.
type CredentialIssuer interface {
	Issue() string
}

// Publisher emits document lifecycle events. Satisfied by kafka.Producer; a
// nil Publisher disables events.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// AcceptedDocument records one persisted item of a batch.
type AcceptedDocument struct {
	OriginalName string `json:"original_name"`
	StorageName  string `json:"stored_name"`
}

// RejectedDocument records one refused item of a batch.
type RejectedDocument struct {
	OriginalName string     `json:"original_name"`
	Reason       ReasonCode `json:"reason"`
	Message      string     `json:"message"`
}

// BatchResult is returned when at least one item of a batch was accepted.
// Accepted and Rejected preserve per-item submission order.
type BatchResult struct {
	Accepted  []AcceptedDocument `json:"accepted"`
	Rejected  []RejectedDocument `json:"rejected,omitempty"`
	SessionID string             `json:"session_id"`
}

// NoItemsAcceptedError is the whole-batch failure: every item was rejected,
// no credential was issued and nothing was persisted.
type NoItemsAcceptedError struct {
	Rejected []RejectedDocument
}

func (e *NoItemsAcceptedError) Error() string {
	return "no documents were accepted"
}

// Service orchestrates per-item validation, persistence and credential
// issuance for batch submissions.
type Service struct {
	store     docstore.Client
	issuer    CredentialIssuer
	publisher Publisher
	validator Validator
	logger    *zap.Logger
}

type Params struct {
	Store     docstore.Client
	Issuer    CredentialIssuer
	Publisher Publisher
	Validator Validator
	Logger    *zap.Logger
}

// NewService constructs an ingest Service.
func NewService(p Params) *Service {
	return &Service{
		store:     p.Store,
		issuer:    p.Issuer,
		publisher: p.Publisher,
		validator: p.Validator,
		logger:    p.Logger,
	}
}

// Ingest processes a batch best-effort: one item's failure never aborts the
// rest. When every item fails the call returns *NoItemsAcceptedError and no
// credential; otherwise a fresh session credential accompanies the result.
func (s *Service) Ingest(ctx context.Context, items []SubmittedItem) (*BatchResult, error) {
	result := &BatchResult{}

	for _, item := range items {
		outcome := s.processItem(ctx, item)
		if outcome.Accepted {
			result.Accepted = append(result.Accepted, AcceptedDocument{
				OriginalName: item.Name,
				StorageName:  outcome.StorageName,
			})
			continue
		}

		name := item.Name
		if name == "" {
			name = "unknown"
		}
		result.Rejected = append(result.Rejected, RejectedDocument{
			OriginalName: name,
			Reason:       outcome.Reason,
			Message:      outcome.Message,
		})
	}

	if len(result.Accepted) == 0 {
		return nil, &NoItemsAcceptedError{Rejected: result.Rejected}
	}

	result.SessionID = s.issuer.Issue()
	s.logger.Info("batch ingested",
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

// processItem validates and persists one item. A panic anywhere in the item
// path is recovered into an unexpected_error rejection so the batch continues.
func (s *Service) processItem(ctx context.Context, item SubmittedItem) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing item",
				zap.String("name", item.Name), zap.Any("panic", r))
			outcome = rejected(ReasonUnexpectedError, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	outcome = s.validator.Validate(item)
	if !outcome.Accepted {
		return outcome
	}

	size := int64(len(outcome.Data))
	if err := s.store.Put(ctx, outcome.StorageName, bytes.NewReader(outcome.Data), size); err != nil {
		s.logger.Error("persist failed",
			zap.String("name", item.Name),
			zap.String("storage_name", outcome.StorageName),
			zap.Error(err))
		return rejected(ReasonPersistFailure, fmt.Sprintf("failed to save file: %v", err))
	}

	s.publishStored(ctx, item, outcome.StorageName, size)
	return outcome
}

// publishStored emits a document.stored event. Event delivery is advisory:
// failures are logged and never demote an already persisted item.
func (s *Service) publishStored(ctx context.Context, item SubmittedItem, storageName string, size int64) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(DocumentStoredEvent{
		OriginalName: item.Name,
		StorageName:  storageName,
		SizeBytes:    size,
		ContentType:  item.ContentType,
		StoredAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("marshal document event", zap.Error(err))
		return
	}

	headers := map[string]string{"event_type": "document.stored"}
	if err := s.publisher.Publish(ctx, []byte(storageName), payload, headers); err != nil {
		s.logger.Warn("publish document event",
			zap.String("storage_name", storageName), zap.Error(err))
	}
}
