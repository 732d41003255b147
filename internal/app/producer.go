package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"channel_sync/internal/adapters/observability"
	"channel_sync/internal/domain"
)

// Producer is the enqueue front door. It fills in defaults and applies a
// per-hotel token bucket: bursts above the limit are still accepted, but
// their schedule is pushed out so one noisy hotel cannot starve the queue.
type Producer struct {
	queue    domain.EventQueue
	perSec   rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewProducer(q domain.EventQueue, perHotelPerSec float64, burst int) *Producer {
	if perHotelPerSec <= 0 {
		perHotelPerSec = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &Producer{
		queue:    q,
		perSec:   rate.Limit(perHotelPerSec),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SubmitResult reports how a submission was accepted.
type SubmitResult struct {
	EventID      string    `json:"event_id"`
	Throttled    bool      `json:"throttled"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

func (p *Producer) limiter(hotelID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[hotelID]
	if !ok {
		l = rate.NewLimiter(p.perSec, p.burst)
		p.limiters[hotelID] = l
	}
	return l
}

// Submit enqueues one event. Validation errors reject the event; throttling
// never does.
func (p *Producer) Submit(ctx context.Context, ev *domain.UpdateEvent) (SubmitResult, error) {
	if ev.Priority == 0 {
		ev.Priority = domain.DefaultPriority(ev.Type)
	}
	if ev.Source == "" {
		ev.Source = domain.SourceManual
	}

	var throttled bool
	res := p.limiter(ev.Payload.HotelID).Reserve()
	if delay := res.Delay(); delay > 0 {
		throttled = true
		at := time.Now().UTC().Add(delay)
		if ev.ScheduledFor.IsZero() || ev.ScheduledFor.Before(at) {
			ev.ScheduledFor = at
		}
	}

	if err := p.queue.Enqueue(ctx, ev); err != nil {
		res.Cancel()
		return SubmitResult{}, err
	}
	observability.ObserveEnqueue(string(ev.Type), string(ev.Source))
	if throttled {
		log.Debug().
			Str("event_id", ev.ID).
			Str("hotel_id", ev.Payload.HotelID).
			Time("scheduled_for", ev.ScheduledFor).
			Msg("submission throttled")
	}
	return SubmitResult{EventID: ev.ID, Throttled: throttled, ScheduledFor: ev.ScheduledFor}, nil
}

// BatchItem is the per-event outcome of a bulk submission.
type BatchItem struct {
	Index  int           `json:"index"`
	Result *SubmitResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// SubmitBatch accepts a bulk operation: every valid event is enqueued under
// one shared batch id, invalid ones are reported per item.
func (p *Producer) SubmitBatch(ctx context.Context, evs []*domain.UpdateEvent) (string, []BatchItem, error) {
	batchID := uuid.NewString()
	items := make([]BatchItem, 0, len(evs))
	for i, ev := range evs {
		ev.BatchID = batchID
		if ev.Source == "" {
			ev.Source = domain.SourceBulk
		}
		r, err := p.Submit(ctx, ev)
		if err != nil {
			items = append(items, BatchItem{Index: i, Error: err.Error()})
			continue
		}
		items = append(items, BatchItem{Index: i, Result: &r})
	}
	return batchID, items, nil
}
