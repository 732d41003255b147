package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"channel_sync/internal/adapters/observability"
	"channel_sync/internal/domain"
)

// maxBackoff caps the base retry delay handed to the queue; the queue still
// scales it linearly by attempt count.
const maxBackoff = 15 * time.Minute

// Invoker routes one event to one channel adapter. Satisfied by the channel
// registry; tests swap in fakes.
type Invoker interface {
	Invoke(ctx context.Context, ch domain.Channel, t domain.EventType, cc domain.CallContext, payload any) domain.AdapterResult
}

// DispatcherConfig tunes the worker pool.
type DispatcherConfig struct {
	Workers    int
	LeaseBatch int
	// Fanout bounds parallel pushes per event so one burst cannot trip a
	// channel's credential-level rate limits.
	Fanout    int
	WorkerID  string
	IdleSleep time.Duration
	Types     []domain.EventType
}

func (c *DispatcherConfig) fill() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.LeaseBatch <= 0 {
		c.LeaseBatch = 10
	}
	if c.Fanout <= 0 {
		c.Fanout = 4
	}
	if c.WorkerID == "" {
		c.WorkerID = "syncd"
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = 2 * time.Second
	}
}

// Dispatcher drains the event queue: lease, push to every target channel,
// aggregate, complete or fail.
type Dispatcher struct {
	queue   domain.EventQueue
	cfgs    *ConfigService
	maps    *MappingService
	health  *HealthService
	invoker Invoker
	cfg     DispatcherConfig
}

func NewDispatcher(q domain.EventQueue, cfgs *ConfigService, maps *MappingService, health *HealthService, inv Invoker, cfg DispatcherConfig) *Dispatcher {
	cfg.fill()
	return &Dispatcher{queue: q, cfgs: cfgs, maps: maps, health: health, invoker: inv, cfg: cfg}
}

// Run blocks until ctx is done, operating cfg.Workers concurrent lease
// loops.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		id := fmt.Sprintf("%s-%d", d.cfg.WorkerID, i)
		g.Go(func() error { return d.worker(ctx, id) })
	}
	log.Info().Int("workers", d.cfg.Workers).Msg("dispatcher started")
	err := g.Wait()
	log.Info().Msg("dispatcher stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Dispatcher) worker(ctx context.Context, workerID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		evs, err := d.queue.Lease(ctx, workerID, d.cfg.LeaseBatch, d.cfg.Types)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("worker", workerID).Msg("lease failed")
			d.sleep(ctx)
			continue
		}
		if len(evs) == 0 {
			d.sleep(ctx)
			continue
		}
		for i := range evs {
			d.Process(ctx, &evs[i])
		}
	}
}

// sleep idles with jitter so workers spread their polling.
func (d *Dispatcher) sleep(ctx context.Context) {
	idle := d.cfg.IdleSleep
	idle += time.Duration(rand.Int63n(int64(idle / 2)))
	select {
	case <-ctx.Done():
	case <-time.After(idle):
	}
}

type pushOutcome struct {
	result     domain.ChannelResult
	retryAfter time.Duration
	retryDelay time.Duration
}

// Process runs one leased event end to end. Exported so tests and the
// retry scanner can drive single events without the lease loop.
func (d *Dispatcher) Process(ctx context.Context, ev *domain.UpdateEvent) {
	start := time.Now()
	chans := d.expand(ctx, ev)
	if len(chans) == 0 {
		res := domain.ChannelResult{
			Status:  domain.ResultSkipped,
			Code:    domain.CodeChannelDisabled,
			Message: "no dispatchable channels configured",
			At:      time.Now().UTC(),
		}
		d.finishComplete(ctx, ev, []domain.ChannelResult{res}, start)
		return
	}

	var (
		mu        sync.Mutex
		outcomes  []pushOutcome
		cancelled bool
	)
	sem := semaphore.NewWeighted(int64(d.cfg.Fanout))
	var wg sync.WaitGroup
	for _, ch := range chans {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		mu.Lock()
		stop := cancelled
		mu.Unlock()
		if stop {
			sem.Release(1)
			break
		}
		// Cancellation is checked between adapter calls so an admin cancel
		// short-circuits the remaining channels.
		if d.isCancelled(ctx, ev.ID) {
			mu.Lock()
			cancelled = true
			mu.Unlock()
			sem.Release(1)
			break
		}
		wg.Add(1)
		go func(ch domain.Channel) {
			defer wg.Done()
			defer sem.Release(1)
			out := d.pushOne(ctx, ev, ch)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	results := make([]domain.ChannelResult, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, o.result)
	}

	if cancelled {
		if len(results) > 0 {
			if err := d.queue.AppendResults(ctx, ev.ID, results); err != nil {
				log.Warn().Err(err).Str("event_id", ev.ID).Msg("flush of partial results failed")
			}
		}
		observability.ObserveEventOutcome(string(ev.Type), "cancelled", time.Since(start))
		return
	}

	// Aggregate: any retryable channel failure fails the whole event; a
	// purely non-retryable failure set still completes it with the failures
	// surfaced in results.
	var retry *pushOutcome
	for i := range outcomes {
		o := &outcomes[i]
		if o.result.Status == domain.ResultFailed && domain.CodeRetryable(o.result.Code) {
			retry = o
			break
		}
	}
	if retry == nil {
		d.finishComplete(ctx, ev, results, start)
		return
	}

	if len(results) > 0 {
		if err := d.queue.AppendResults(ctx, ev.ID, results); err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("result append failed")
		}
	}
	backoff := retry.retryDelay
	if retry.retryAfter > backoff {
		backoff = retry.retryAfter
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	attErr := domain.AttemptError{
		Attempt:   ev.Attempts,
		At:        time.Now().UTC(),
		Code:      retry.result.Code,
		Message:   retry.result.Message,
		Channel:   retry.result.Channel,
		Retryable: true,
	}
	if err := d.queue.Fail(ctx, ev.ID, attErr, backoff); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("fail transition rejected")
	}
	observability.ObserveEventOutcome(string(ev.Type), "failed", time.Since(start))
	log.Info().
		Str("event_id", ev.ID).
		Str("type", string(ev.Type)).
		Str("code", retry.result.Code).
		Dur("backoff", backoff).
		Msg("event failed, retry scheduled")
}

func (d *Dispatcher) finishComplete(ctx context.Context, ev *domain.UpdateEvent, results []domain.ChannelResult, start time.Time) {
	if err := d.queue.Complete(ctx, ev.ID, results); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("complete transition rejected")
		return
	}
	observability.ObserveEventOutcome(string(ev.Type), "completed", time.Since(start))
	log.Debug().
		Str("event_id", ev.ID).
		Str("type", string(ev.Type)).
		Int("channels", len(results)).
		Msg("event completed")
}

// expand resolves the event's channel list; empty or "all" means every
// dispatchable configured channel of the hotel.
func (d *Dispatcher) expand(ctx context.Context, ev *domain.UpdateEvent) []domain.Channel {
	all := len(ev.Payload.Channels) == 0
	for _, c := range ev.Payload.Channels {
		if string(c) == domain.ChannelAll {
			all = true
			break
		}
	}
	if !all {
		seen := make(map[domain.Channel]bool, len(ev.Payload.Channels))
		out := make([]domain.Channel, 0, len(ev.Payload.Channels))
		for _, c := range ev.Payload.Channels {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
		return out
	}
	cfgs, err := d.cfgs.List(ctx, ev.Payload.HotelID)
	if err != nil {
		log.Warn().Err(err).Str("hotel_id", ev.Payload.HotelID).Msg("channel expansion failed")
		return nil
	}
	var out []domain.Channel
	for i := range cfgs {
		if cfgs[i].Dispatchable() {
			out = append(out, cfgs[i].Channel)
		}
	}
	return out
}

func (d *Dispatcher) isCancelled(ctx context.Context, eventID string) bool {
	cur, err := d.queue.Get(ctx, eventID)
	return err == nil && cur.Status == domain.StatusCancelled
}

// pushOne performs the full per-channel pipeline: config gate, payload
// transform, adapter call, health sample.
func (d *Dispatcher) pushOne(ctx context.Context, ev *domain.UpdateEvent, ch domain.Channel) pushOutcome {
	now := time.Now().UTC()
	cfg, err := d.cfgs.Get(ctx, ev.Payload.HotelID, ch)
	if err != nil {
		return pushOutcome{result: domain.ChannelResult{
			Channel: ch,
			Status:  domain.ResultSkipped,
			Code:    domain.CodeChannelDisabled,
			Message: "channel not configured",
			At:      now,
		}}
	}
	if !cfg.Dispatchable() {
		out := pushOutcome{result: domain.ChannelResult{
			Channel: ch,
			Status:  domain.ResultSkipped,
			Code:    domain.CodeChannelDisabled,
			Message: "channel inactive or disconnected",
			At:      now,
		}}
		d.observe(ctx, ev, ch, out.result)
		return out
	}

	payload, se := d.buildPayload(ctx, ev, &cfg, ch)
	if se != nil {
		out := pushOutcome{retryDelay: cfg.RetryDelay(), retryAfter: se.RetryAfter}
		status := domain.ResultFailed
		if se.Code == domain.CodeMappingMissing {
			status = domain.ResultSkipped
		}
		out.result = domain.ChannelResult{
			Channel: ch,
			Status:  status,
			Code:    se.Code,
			Message: se.Message,
			At:      now,
		}
		d.observe(ctx, ev, ch, out.result)
		observability.ObserveChannelPush(string(ch), string(ev.Resource()), string(status), 0)
		return out
	}

	cc := domain.CallContext{
		HotelID:     ev.Payload.HotelID,
		Credentials: cfg.Credentials,
		Endpoint:    cfg.Endpoint,
		Language:    cfg.PrimaryLanguage,
		Currency:    cfg.BaseCurrency,
		Timeout:     cfg.Timeout(),
	}
	res := d.invoker.Invoke(ctx, ch, ev.Type, cc, payload)

	out := pushOutcome{retryDelay: cfg.RetryDelay()}
	r := domain.ChannelResult{
		Channel:    ch,
		Response:   res.Response,
		DurationMS: res.LatencyMS,
		At:         time.Now().UTC(),
	}
	switch {
	case res.Skipped:
		r.Status = domain.ResultSkipped
		if res.Err != nil {
			r.Code, r.Message = res.Err.Code, res.Err.Message
		}
	case res.OK:
		r.Status = domain.ResultSuccess
	default:
		r.Status = domain.ResultFailed
		if res.Err != nil {
			r.Code, r.Message = res.Err.Code, res.Err.Message
			out.retryAfter = res.Err.RetryAfter
		} else {
			r.Code, r.Message = domain.CodeInternal, "adapter returned no error detail"
		}
	}
	out.result = r
	observability.ObserveChannelPush(string(ch), string(ev.Resource()), string(r.Status), time.Duration(res.LatencyMS)*time.Millisecond)
	d.observe(ctx, ev, ch, r)
	return out
}

func (d *Dispatcher) observe(ctx context.Context, ev *domain.UpdateEvent, ch domain.Channel, r domain.ChannelResult) {
	if d.health == nil {
		return
	}
	d.health.Observe(ctx, domain.HealthSample{
		HotelID:    ev.Payload.HotelID,
		Channel:    ch,
		Resource:   ev.Resource(),
		Status:     r.Status,
		DurationMS: r.DurationMS,
		ErrorCode:  r.Code,
		ErrorMsg:   r.Message,
		Retryable:  domain.CodeRetryable(r.Code),
		At:         r.At,
	})
}
