package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"channel_sync/internal/domain"
)

// ---- fakes ----

// memQueue is an in-memory EventQueue mirroring the MySQL repo's state
// machine closely enough for dispatcher and producer tests.
type memQueue struct {
	mu     sync.Mutex
	events map[string]*domain.UpdateEvent
}

func newMemQueue() *memQueue {
	return &memQueue{events: map[string]*domain.UpdateEvent{}}
}

func (q *memQueue) Enqueue(ctx context.Context, ev *domain.UpdateEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.MaxAttempts <= 0 {
		ev.MaxAttempts = domain.DefaultMaxAttempts
	}
	if ev.ScheduledFor.IsZero() {
		ev.ScheduledFor = time.Now().UTC()
	}
	if key := ev.CoalesceKey(); key != "" {
		for _, e := range q.events {
			if e.Status == domain.StatusPending && e.CoalesceKey() == key {
				e.Payload = ev.Payload
				e.Priority = ev.Priority
				if ev.ScheduledFor.After(e.ScheduledFor) {
					e.ScheduledFor = ev.ScheduledFor
				}
				ev.ID = e.ID
				return nil
			}
		}
	}
	cp := *ev
	cp.Status = domain.StatusPending
	cp.CreatedAt = time.Now().UTC()
	q.events[cp.ID] = &cp
	return nil
}

func (q *memQueue) Lease(ctx context.Context, workerID string, limit int, types []domain.EventType) ([]domain.UpdateEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	var out []domain.UpdateEvent
	for _, e := range q.events {
		if len(out) >= limit {
			break
		}
		if e.Status != domain.StatusPending || e.ScheduledFor.After(now) {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		e.Status = domain.StatusProcessing
		e.WorkerID = workerID
		t := now
		e.StartedAt = &t
		out = append(out, *e)
	}
	return out, nil
}

func (q *memQueue) Complete(ctx context.Context, eventID string, results []domain.ChannelResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.StatusProcessing {
		return domain.ErrTerminal
	}
	e.Results = append(e.Results, results...)
	e.Status = domain.StatusCompleted
	t := time.Now().UTC()
	e.CompletedAt = &t
	e.Attempts++
	return nil
}

func (q *memQueue) Fail(ctx context.Context, eventID string, attemptErr domain.AttemptError, backoff time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.events[eventID]
	if !ok {
		return domain.ErrTerminal
	}
	e.Attempts++
	attemptErr.Attempt = e.Attempts
	if attemptErr.At.IsZero() {
		attemptErr.At = time.Now().UTC()
	}
	e.Errors = append(e.Errors, attemptErr)
	retryAt := time.Now().UTC().Add(backoff * time.Duration(e.Attempts))
	e.NextRetryAt = &retryAt
	if attemptErr.Retryable && e.Attempts < e.MaxAttempts {
		e.Status = domain.StatusPending
	} else {
		e.Status = domain.StatusFailed
	}
	return nil
}

func (q *memQueue) Cancel(ctx context.Context, eventID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.events[eventID]
	if !ok || e.Status.Terminal() {
		return domain.ErrTerminal
	}
	e.Status = domain.StatusCancelled
	return nil
}

func (q *memQueue) AppendResults(ctx context.Context, eventID string, results []domain.ChannelResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	e.Results = append(e.Results, results...)
	return nil
}

func (q *memQueue) Get(ctx context.Context, eventID string) (domain.UpdateEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.events[eventID]
	if !ok {
		return domain.UpdateEvent{}, domain.ErrNotFound
	}
	return *e, nil
}

func (q *memQueue) List(ctx context.Context, f domain.EventFilter) ([]domain.UpdateEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.UpdateEvent
	for _, e := range q.events {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.HotelID != "" && e.Payload.HotelID != f.HotelID {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (q *memQueue) Batch(ctx context.Context, batchID string) ([]domain.UpdateEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.UpdateEvent
	for _, e := range q.events {
		if e.BatchID == batchID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (q *memQueue) ListRetryable(ctx context.Context, limit int) ([]domain.UpdateEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	var out []domain.UpdateEvent
	for _, e := range q.events {
		if e.Status == domain.StatusFailed && e.Attempts < e.MaxAttempts &&
			e.NextRetryAt != nil && !e.NextRetryAt.After(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (q *memQueue) PromoteRetryable(ctx context.Context, limit int) (int64, error) {
	return 0, nil
}

func (q *memQueue) Reap(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

// setRetryDue clears the backoff so a pending retry leases immediately.
func (q *memQueue) setRetryDue(eventID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.events[eventID]; ok {
		past := time.Now().UTC().Add(-time.Second)
		e.NextRetryAt = &past
		e.ScheduledFor = past
	}
}

// memStore covers the three repositories the services depend on.
type memStore struct {
	mu      sync.Mutex
	rooms   map[string]domain.RoomMapping
	rates   map[string]domain.RateMapping
	configs map[string]domain.ChannelConfiguration
	samples []domain.HealthSample
	states  []domain.ConnectionState
}

func newMemStore() *memStore {
	return &memStore{
		rooms:   map[string]domain.RoomMapping{},
		rates:   map[string]domain.RateMapping{},
		configs: map[string]domain.ChannelConfiguration{},
	}
}

func cfgKey(hotelID string, ch domain.Channel) string { return hotelID + "/" + string(ch) }

func (s *memStore) CreateRoomMapping(ctx context.Context, m *domain.RoomMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.rooms[m.ID] = *m
	return nil
}

func (s *memStore) UpdateRoomMapping(ctx context.Context, m *domain.RoomMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.rooms[m.ID] = *m
	return nil
}

func (s *memStore) GetRoomMapping(ctx context.Context, id string) (domain.RoomMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rooms[id]
	if !ok {
		return domain.RoomMapping{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memStore) ActiveRoomMappings(ctx context.Context, hotelID, roomTypeID string) ([]domain.RoomMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RoomMapping
	for _, m := range s.rooms {
		if m.IsActive && m.HotelID == hotelID && m.RoomTypeID == roomTypeID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ListRoomMappings(ctx context.Context, hotelID string) ([]domain.RoomMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RoomMapping
	for _, m := range s.rooms {
		if m.HotelID == hotelID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) CreateRateMapping(ctx context.Context, m *domain.RateMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.rates[m.ID] = *m
	return nil
}

func (s *memStore) UpdateRateMapping(ctx context.Context, m *domain.RateMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rates[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.rates[m.ID] = *m
	return nil
}

func (s *memStore) GetRateMapping(ctx context.Context, id string) (domain.RateMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rates[id]
	if !ok {
		return domain.RateMapping{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memStore) ActiveRateMappings(ctx context.Context, roomMappingID string) ([]domain.RateMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RateMapping
	for _, m := range s.rates {
		if m.IsActive && m.RoomMappingID == roomMappingID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) CreateConfig(ctx context.Context, c *domain.ChannelConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cfgKey(c.HotelID, c.Channel)
	if _, ok := s.configs[key]; ok {
		return domain.ErrConflict
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.configs[key] = *c
	return nil
}

func (s *memStore) UpdateConfig(ctx context.Context, c *domain.ChannelConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cfgKey(c.HotelID, c.Channel)
	if _, ok := s.configs[key]; !ok {
		return domain.ErrNotFound
	}
	s.configs[key] = *c
	return nil
}

func (s *memStore) GetConfig(ctx context.Context, hotelID string, ch domain.Channel) (domain.ChannelConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.configs[cfgKey(hotelID, ch)]
	if !ok {
		return domain.ChannelConfiguration{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *memStore) ListConfigs(ctx context.Context, hotelID string) ([]domain.ChannelConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChannelConfiguration
	for _, c := range s.configs {
		if c.HotelID == hotelID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) SetConnectionState(ctx context.Context, hotelID string, ch domain.Channel, st domain.ConnectionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cfgKey(hotelID, ch)
	c, ok := s.configs[key]
	if !ok {
		return domain.ErrNotFound
	}
	c.ConnectionState = st
	s.configs[key] = c
	s.states = append(s.states, st)
	return nil
}

func (s *memStore) Record(ctx context.Context, sample domain.HealthSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *memStore) Get(ctx context.Context, hotelID string, ch domain.Channel) (domain.SyncHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := domain.SyncHealth{HotelID: hotelID, Channel: ch}
	for _, sm := range s.samples {
		if sm.HotelID != hotelID || sm.Channel != ch {
			continue
		}
		switch sm.Status {
		case domain.ResultSuccess:
			h.TotalSyncs++
			h.SuccessfulSyncs++
		case domain.ResultFailed:
			h.TotalSyncs++
			h.FailedSyncs++
		}
	}
	return h, nil
}

func (s *memStore) List(ctx context.Context, hotelID string) ([]domain.SyncHealth, error) {
	s.mu.Lock()
	chs := map[domain.Channel]bool{}
	for _, sm := range s.samples {
		if sm.HotelID == hotelID {
			chs[sm.Channel] = true
		}
	}
	s.mu.Unlock()
	var out []domain.SyncHealth
	for ch := range chs {
		h, _ := s.Get(ctx, hotelID, ch)
		out = append(out, h)
	}
	return out, nil
}

// fakeCache round-trips values through JSON like the Redis cache does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// fakeFX returns scripted conversion rates.
type fakeFX struct {
	rates map[string]decimal.Decimal
	err   error
	calls int
}

func (f *fakeFX) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	r, ok := f.rates[from+"/"+to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate %s/%s", from, to)
	}
	return r, nil
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(ctx context.Context, text, fromLang, toLang string) (string, error) {
	return "[" + toLang + "] " + text, nil
}

// fakeInvoker scripts per-channel adapter results and records every call.
type fakeInvoker struct {
	mu      sync.Mutex
	results map[domain.Channel][]domain.AdapterResult
	calls   []invokedCall
}

type invokedCall struct {
	Channel domain.Channel
	Type    domain.EventType
	Payload any
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{results: map[domain.Channel][]domain.AdapterResult{}}
}

func (f *fakeInvoker) script(ch domain.Channel, rs ...domain.AdapterResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[ch] = append(f.results[ch], rs...)
}

func (f *fakeInvoker) Invoke(ctx context.Context, ch domain.Channel, t domain.EventType, cc domain.CallContext, payload any) domain.AdapterResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invokedCall{Channel: ch, Type: t, Payload: payload})
	queue := f.results[ch]
	if len(queue) == 0 {
		return domain.AdapterResult{OK: true, LatencyMS: 5}
	}
	r := queue[0]
	f.results[ch] = queue[1:]
	return r
}

func okResult() domain.AdapterResult {
	return domain.AdapterResult{OK: true, Response: map[string]any{"status": "ok"}, LatencyMS: 12}
}

func failedResult(code string, retryAfter time.Duration) domain.AdapterResult {
	se := domain.NewSyncError(code, "scripted failure")
	se.RetryAfter = retryAfter
	return domain.AdapterResult{Err: se, LatencyMS: 8}
}
