package app

import (
	"context"
	"fmt"

	"channel_sync/internal/domain"
)

// AdminService backs the operator API: event introspection, cancellation
// and manual re-queue of terminally failed events.
type AdminService struct {
	queue    domain.EventQueue
	producer *Producer
}

func NewAdminService(q domain.EventQueue, p *Producer) *AdminService {
	return &AdminService{queue: q, producer: p}
}

func (s *AdminService) GetEvent(ctx context.Context, id string) (domain.UpdateEvent, error) {
	return s.queue.Get(ctx, id)
}

func (s *AdminService) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.UpdateEvent, error) {
	return s.queue.List(ctx, f)
}

func (s *AdminService) BatchEvents(ctx context.Context, batchID string) ([]domain.UpdateEvent, error) {
	return s.queue.Batch(ctx, batchID)
}

func (s *AdminService) ListRetryable(ctx context.Context, limit int) ([]domain.UpdateEvent, error) {
	return s.queue.ListRetryable(ctx, limit)
}

func (s *AdminService) Cancel(ctx context.Context, id, reason string) error {
	if reason == "" {
		reason = "cancelled by operator"
	}
	return s.queue.Cancel(ctx, id, reason)
}

// Requeue resubmits a terminal event as a brand new one. Terminal statuses
// never re-enter the pending set themselves.
func (s *AdminService) Requeue(ctx context.Context, id string) (SubmitResult, error) {
	old, err := s.queue.Get(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	if !old.Status.Terminal() {
		return SubmitResult{}, fmt.Errorf("%w: event %s is still %s", domain.ErrConflict, id, old.Status)
	}
	fresh := domain.UpdateEvent{
		Type:          old.Type,
		Priority:      old.Priority,
		Payload:       old.Payload,
		MaxAttempts:   old.MaxAttempts,
		Source:        domain.SourceManual,
		CorrelationID: old.CorrelationID,
		BatchID:       old.BatchID,
	}
	return s.producer.Submit(ctx, &fresh)
}
