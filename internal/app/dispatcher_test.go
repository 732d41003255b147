package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"channel_sync/internal/app"
	"channel_sync/internal/domain"
)

func testConfig(hotelID string, ch domain.Channel) domain.ChannelConfiguration {
	return domain.ChannelConfiguration{
		HotelID:         hotelID,
		Channel:         ch,
		PrimaryLanguage: "en",
		Languages: []domain.LanguageOption{
			{Code: "en", Active: true},
		},
		BaseCurrency: "INR",
		Currencies: []domain.CurrencyOption{
			{Code: "INR", Rounding: domain.RoundNone, Decimals: 2, Active: true},
			{Code: "EUR", Rounding: domain.RoundNearest, Decimals: 2, Active: true},
		},
		ConversionMethod: domain.ConvFixed,
		FixedRate:        decimal.RequireFromString("0.011"),
		PriceFrequency:   domain.FreqRealTime,
		Endpoint:         "https://connectivity.example.test",
		BatchSize:        100,
		TimeoutMS:        10000,
		RetryAttempts:    3,
		RetryDelayMS:     1000,
		Active:           true,
		ConnectionState:  domain.ConnConnected,
	}
}

type testEnv struct {
	queue  *memQueue
	store  *memStore
	inv    *fakeInvoker
	cfgs   *app.ConfigService
	maps   *app.MappingService
	health *app.HealthService
	disp   *app.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	q := newMemQueue()
	st := newMemStore()
	inv := newFakeInvoker()
	cfgs := app.NewConfigService(st, newFakeCache(), &fakeFX{}, nil)
	maps := app.NewMappingService(st, newFakeCache())
	health := app.NewHealthService(st, cfgs)
	disp := app.NewDispatcher(q, cfgs, maps, health, inv, app.DispatcherConfig{
		Workers: 1, LeaseBatch: 10, Fanout: 2, WorkerID: "test", IdleSleep: 10 * time.Millisecond,
	})
	return &testEnv{queue: q, store: st, inv: inv, cfgs: cfgs, maps: maps, health: health, disp: disp}
}

func (e *testEnv) seedRateSetup(t *testing.T, ch domain.Channel) {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig("H1", ch)
	if err := e.store.CreateConfig(ctx, &cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	room := domain.RoomMapping{
		HotelID: "H1", RoomTypeID: "RT-STD", Channel: ch,
		ChannelRoomID: "bkg-101", IsActive: true,
		Commission: decimal.NewFromInt(15),
	}
	if err := e.store.CreateRoomMapping(ctx, &room); err != nil {
		t.Fatalf("seed room mapping: %v", err)
	}
	plan := domain.RateMapping{
		RatePlanID: "RP-BAR", RoomMappingID: room.ID, ChannelRatePlanID: "bkg-bar",
		IsActive:         true,
		BaseRateModifier: domain.RateModifier{Kind: domain.ModifierPercentage, Value: decimal.NewFromInt(10)},
	}
	if err := e.store.CreateRateMapping(ctx, &plan); err != nil {
		t.Fatalf("seed rate mapping: %v", err)
	}
}

func rateEvent(chans ...domain.Channel) *domain.UpdateEvent {
	return &domain.UpdateEvent{
		Type:     domain.EventRateUpdate,
		Priority: 3,
		Payload: domain.EventPayload{
			HotelID:    "H1",
			RoomTypeID: "RT-STD",
			DateRange: domain.DateRange{
				Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			},
			Channels: chans,
			Data: map[string]any{
				"base_rate":       5000,
				"currency":        "INR",
				"target_currency": "EUR",
			},
		},
	}
}

func leaseOne(t *testing.T, q *memQueue) domain.UpdateEvent {
	t.Helper()
	evs, err := q.Lease(context.Background(), "test", 10, nil)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("leased %d events, want 1", len(evs))
	}
	return evs[0]
}

func TestDispatchHappyPathRateUpdate(t *testing.T) {
	e := newTestEnv(t)
	e.seedRateSetup(t, domain.ChannelBookingCom)
	ctx := context.Background()

	ev := rateEvent(domain.ChannelBookingCom)
	if err := e.queue.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	leased := leaseOne(t, e.queue)
	e.disp.Process(ctx, &leased)

	got, err := e.queue.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if len(got.Results) != 1 || got.Results[0].Status != domain.ResultSuccess {
		t.Fatalf("results = %+v, want single success", got.Results)
	}
	if got.Results[0].Channel != domain.ChannelBookingCom {
		t.Fatalf("result channel = %s", got.Results[0].Channel)
	}

	if len(e.inv.calls) != 1 {
		t.Fatalf("adapter calls = %d, want 1", len(e.inv.calls))
	}
	push, ok := e.inv.calls[0].Payload.(domain.RatePush)
	if !ok {
		t.Fatalf("payload type %T, want RatePush", e.inv.calls[0].Payload)
	}
	if push.Currency != "EUR" || push.ChannelRoomID != "bkg-101" {
		t.Fatalf("push = %+v", push)
	}
	if len(push.Plans) != 1 {
		t.Fatalf("plans = %d, want 1", len(push.Plans))
	}
	// 5000 * 1.10 * 0.011 rounded to 2 decimals.
	want := decimal.RequireFromString("60.50")
	for day, rate := range push.Plans[0].Nightly {
		if !rate.Equal(want) {
			t.Fatalf("nightly[%s] = %s, want %s", day, rate, want)
		}
	}
	if len(push.Plans[0].Nightly) != 3 {
		t.Fatalf("nightly days = %d, want 3 (inclusive range)", len(push.Plans[0].Nightly))
	}

	h, _ := e.store.Get(ctx, "H1", domain.ChannelBookingCom)
	if h.TotalSyncs != 1 || h.SuccessfulSyncs != 1 {
		t.Fatalf("health = %+v, want one successful sync", h)
	}
}

func TestDispatchRetryableFailureThenSuccess(t *testing.T) {
	e := newTestEnv(t)
	e.seedRateSetup(t, domain.ChannelBookingCom)
	ctx := context.Background()

	e.inv.script(domain.ChannelBookingCom,
		failedResult(domain.CodeRateLimited, 5*time.Second),
		okResult(),
	)

	ev := rateEvent(domain.ChannelBookingCom)
	if err := e.queue.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	before := time.Now().UTC()
	leased := leaseOne(t, e.queue)
	e.disp.Process(ctx, &leased)

	got, _ := e.queue.Get(ctx, ev.ID)
	if got.Status != domain.StatusPending {
		t.Fatalf("status after failure = %s, want pending", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}
	if len(got.Errors) != 1 || got.Errors[0].Code != domain.CodeRateLimited {
		t.Fatalf("errors = %+v", got.Errors)
	}
	if got.NextRetryAt == nil || got.NextRetryAt.Before(before.Add(5*time.Second)) {
		t.Fatalf("next_retry_at = %v, want >= now+5s (retry_after floor)", got.NextRetryAt)
	}

	e.queue.setRetryDue(ev.ID)
	leased = leaseOne(t, e.queue)
	e.disp.Process(ctx, &leased)

	got, _ = e.queue.Get(ctx, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("final status = %s, want completed", got.Status)
	}
	if got.Attempts != 2 {
		t.Fatalf("final attempts = %d, want 2", got.Attempts)
	}
	if len(got.Results) != 2 {
		t.Fatalf("results = %d entries, want failed then success", len(got.Results))
	}
}

func TestDispatchPartialFailureCompletes(t *testing.T) {
	e := newTestEnv(t)
	e.seedRateSetup(t, domain.ChannelBookingCom)
	e.seedRateSetup(t, domain.ChannelAirbnb)
	ctx := context.Background()

	e.inv.script(domain.ChannelAirbnb, failedResult(domain.CodeValidationFailed, 0))

	ev := rateEvent(domain.ChannelBookingCom, domain.ChannelAirbnb)
	if err := e.queue.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	leased := leaseOne(t, e.queue)
	e.disp.Process(ctx, &leased)

	got, _ := e.queue.Get(ctx, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed despite non-retryable failure", got.Status)
	}
	statuses := map[domain.Channel]domain.ResultStatus{}
	for _, r := range got.Results {
		statuses[r.Channel] = r.Status
	}
	if statuses[domain.ChannelBookingCom] != domain.ResultSuccess {
		t.Fatalf("booking_com = %s, want success", statuses[domain.ChannelBookingCom])
	}
	if statuses[domain.ChannelAirbnb] != domain.ResultFailed {
		t.Fatalf("airbnb = %s, want failed", statuses[domain.ChannelAirbnb])
	}

	// A non-retryable validation failure must not flip the connection state.
	cfg, _ := e.store.GetConfig(ctx, "H1", domain.ChannelAirbnb)
	if cfg.ConnectionState != domain.ConnConnected {
		t.Fatalf("airbnb connection state = %s, want connected", cfg.ConnectionState)
	}
	h, _ := e.store.Get(ctx, "H1", domain.ChannelAirbnb)
	if h.FailedSyncs != 1 {
		t.Fatalf("airbnb failed syncs = %d, want 1", h.FailedSyncs)
	}
}

func TestDispatchSkipsDisabledChannel(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cfg := testConfig("H1", domain.ChannelBookingCom)
	cfg.ConnectionState = domain.ConnDisconnected
	if err := e.store.CreateConfig(ctx, &cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	ev := rateEvent(domain.ChannelBookingCom)
	if err := e.queue.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	leased := leaseOne(t, e.queue)
	e.disp.Process(ctx, &leased)

	got, _ := e.queue.Get(ctx, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if len(got.Results) != 1 || got.Results[0].Status != domain.ResultSkipped ||
		got.Results[0].Code != domain.CodeChannelDisabled {
		t.Fatalf("results = %+v, want skipped channel_disabled", got.Results)
	}
	if len(e.inv.calls) != 0 {
		t.Fatalf("adapter was called for a disconnected channel")
	}
}

func TestDispatchMappingMissingSkips(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	cfg := testConfig("H1", domain.ChannelBookingCom)
	if err := e.store.CreateConfig(ctx, &cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	ev := rateEvent(domain.ChannelBookingCom)
	if err := e.queue.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	leased := leaseOne(t, e.queue)
	e.disp.Process(ctx, &leased)

	got, _ := e.queue.Get(ctx, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if len(got.Results) != 1 || got.Results[0].Code != domain.CodeMappingMissing ||
		got.Results[0].Status != domain.ResultSkipped {
		t.Fatalf("results = %+v, want skipped mapping_missing", got.Results)
	}
}

func TestDispatchExpandsAllToDispatchableSet(t *testing.T) {
	e := newTestEnv(t)
	e.seedRateSetup(t, domain.ChannelBookingCom)
	e.seedRateSetup(t, domain.ChannelExpedia)
	ctx := context.Background()
	// A disconnected channel must not be part of the "all" expansion.
	off := testConfig("H1", domain.ChannelAgoda)
	off.ConnectionState = domain.ConnDisconnected
	if err := e.store.CreateConfig(ctx, &off); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	ev := rateEvent() // empty channel list means "all"
	if err := e.queue.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	leased := leaseOne(t, e.queue)
	e.disp.Process(ctx, &leased)

	got, _ := e.queue.Get(ctx, ev.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if len(got.Results) != 2 {
		t.Fatalf("results = %d, want 2 dispatchable channels", len(got.Results))
	}
	for _, r := range got.Results {
		if r.Channel == domain.ChannelAgoda {
			t.Fatalf("disconnected agoda received a push")
		}
	}
}

func TestDispatchObservesCancellation(t *testing.T) {
	e := newTestEnv(t)
	e.seedRateSetup(t, domain.ChannelBookingCom)
	ctx := context.Background()

	ev := rateEvent(domain.ChannelBookingCom)
	if err := e.queue.Enqueue(ctx, ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	leased := leaseOne(t, e.queue)
	if err := e.queue.Cancel(ctx, ev.ID, "operator"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	e.disp.Process(ctx, &leased)

	got, _ := e.queue.Get(ctx, ev.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if len(e.inv.calls) != 0 {
		t.Fatalf("adapter called after cancellation")
	}
}
