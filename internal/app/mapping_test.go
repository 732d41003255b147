package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"channel_sync/internal/app"
	"channel_sync/internal/domain"
)

func intp(v int) *int { return &v }

func pct(v int64) domain.RateModifier {
	return domain.RateModifier{Kind: domain.ModifierPercentage, Value: decimal.NewFromInt(v)}
}

func TestChannelRateTransformOrder(t *testing.T) {
	// A Saturday inside the seasonal window so every stage fires.
	date := time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	room := &domain.RoomMapping{
		RateModifier: &domain.RateModifier{Kind: domain.ModifierFixed, Value: decimal.NewFromInt(-100)},
	}
	plan := &domain.RateMapping{
		BaseRateModifier: pct(10),
		Seasonal: []domain.SeasonalRule{
			{
				From:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
				To:       time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
				Modifier: pct(20),
			},
		},
		DayOfWeek: []domain.DowRule{
			{Weekday: 6, Modifier: domain.RateModifier{Kind: domain.ModifierMultiplier, Value: decimal.RequireFromString("1.5")}},
		},
	}
	var seen decimal.Decimal
	convert := func(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
		seen = amount
		return amount.Mul(decimal.NewFromInt(2)), nil
	}

	got, err := app.ChannelRate(context.Background(), decimal.NewFromInt(1000), date, room, plan, convert)
	if err != nil {
		t.Fatalf("ChannelRate: %v", err)
	}
	// 1000 +10% = 1100, +20% = 1320, x1.5 = 1980, -100 = 1880, then convert.
	if want := decimal.NewFromInt(1880); !seen.Equal(want) {
		t.Fatalf("pre-conversion amount = %s, want %s", seen, want)
	}
	if want := decimal.NewFromInt(3760); !got.Equal(want) {
		t.Fatalf("final = %s, want %s", got, want)
	}
}

func TestChannelRateSkipsInapplicableRules(t *testing.T) {
	// A Monday outside the seasonal window.
	date := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	room := &domain.RoomMapping{}
	plan := &domain.RateMapping{
		BaseRateModifier: pct(10),
		Seasonal: []domain.SeasonalRule{
			{
				From:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
				To:       time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
				Modifier: pct(50),
			},
		},
		DayOfWeek: []domain.DowRule{{Weekday: 6, Modifier: pct(50)}},
	}

	got, err := app.ChannelRate(context.Background(), decimal.NewFromInt(5000), date, room, plan, nil)
	if err != nil {
		t.Fatalf("ChannelRate: %v", err)
	}
	if want := decimal.NewFromInt(5500); !got.Equal(want) {
		t.Fatalf("rate = %s, want %s (base modifier only)", got, want)
	}
}

func TestChannelRateFirstMatchingSeasonalWins(t *testing.T) {
	date := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	plan := &domain.RateMapping{
		BaseRateModifier: domain.RateModifier{Kind: domain.ModifierPercentage, Value: decimal.Zero},
		Seasonal: []domain.SeasonalRule{
			{
				From:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
				To:       time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
				Modifier: pct(10),
			},
			{
				From:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
				To:       time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
				Modifier: pct(90),
			},
		},
	}

	got, err := app.ChannelRate(context.Background(), decimal.NewFromInt(100), date, &domain.RoomMapping{}, plan, nil)
	if err != nil {
		t.Fatalf("ChannelRate: %v", err)
	}
	if want := decimal.NewFromInt(110); !got.Equal(want) {
		t.Fatalf("rate = %s, want %s (only first matching seasonal rule)", got, want)
	}
}

func TestClampRestrictions(t *testing.T) {
	plan := &domain.RateMapping{
		MinStay:      intp(2),
		MaxStay:      intp(10),
		MaxOccupancy: intp(3),
	}
	in := domain.StayConstraints{
		MinStay:      intp(1),
		MaxStay:      intp(14),
		MinOccupancy: intp(1),
	}

	out := app.ClampRestrictions(in, plan)
	if out.MinStay == nil || *out.MinStay != 2 {
		t.Fatalf("min_stay = %v, want 2 (plan floor wins)", out.MinStay)
	}
	if out.MaxStay == nil || *out.MaxStay != 10 {
		t.Fatalf("max_stay = %v, want 10 (plan ceiling wins)", out.MaxStay)
	}
	if out.MinOccupancy == nil || *out.MinOccupancy != 1 {
		t.Fatalf("min_occupancy = %v, want 1 (plan has no bound)", out.MinOccupancy)
	}
	if out.MaxOccupancy == nil || *out.MaxOccupancy != 3 {
		t.Fatalf("max_occupancy = %v, want 3", out.MaxOccupancy)
	}
}

func TestClampRestrictionsKeepsTighterInput(t *testing.T) {
	plan := &domain.RateMapping{MinStay: intp(1), MaxStay: intp(30)}
	in := domain.StayConstraints{MinStay: intp(3), MaxStay: intp(7)}

	out := app.ClampRestrictions(in, plan)
	if *out.MinStay != 3 || *out.MaxStay != 7 {
		t.Fatalf("clamp = [%d,%d], want [3,7]", *out.MinStay, *out.MaxStay)
	}
}

func TestActiveRoomMappingsCached(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	svc := app.NewMappingService(st, newFakeCache())

	room := domain.RoomMapping{
		HotelID: "H1", RoomTypeID: "RT-STD", Channel: domain.ChannelBookingCom,
		ChannelRoomID: "bkg-101", IsActive: true,
	}
	if err := svc.CreateRoomMapping(ctx, &room); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.ActiveRoomMappings(ctx, "H1", "RT-STD")
	if err != nil || len(first) != 1 {
		t.Fatalf("first read = %v, %v", first, err)
	}

	// Mutate the backing store directly; the cached copy must still be served.
	st.mu.Lock()
	for id, m := range st.rooms {
		m.IsActive = false
		st.rooms[id] = m
	}
	st.mu.Unlock()

	second, err := svc.ActiveRoomMappings(ctx, "H1", "RT-STD")
	if err != nil || len(second) != 1 {
		t.Fatalf("cached read = %v, %v", second, err)
	}

	// An update through the service evicts the cache.
	upd := room
	upd.IsActive = false
	if err := svc.UpdateRoomMapping(ctx, &upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	third, err := svc.ActiveRoomMappings(ctx, "H1", "RT-STD")
	if err != nil {
		t.Fatalf("read after evict: %v", err)
	}
	if len(third) != 0 {
		t.Fatalf("mappings after deactivation = %d, want 0", len(third))
	}
}

func TestCreateRoomMappingRejectsInvalid(t *testing.T) {
	svc := app.NewMappingService(newMemStore(), nil)
	m := domain.RoomMapping{HotelID: "H1", Channel: domain.ChannelBookingCom}
	if err := svc.CreateRoomMapping(context.Background(), &m); err == nil {
		t.Fatalf("expected validation error for missing identifiers")
	}
}
