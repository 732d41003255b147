package channels

import (
	"context"
	"fmt"

	"channel_sync/internal/domain"
)

// airbnb maps room types onto listings. The listing API has no separate
// restriction surface, so that capability is reported as skipped.
type airbnb struct {
	p *pusher
}

func newAirbnb(p *pusher) *airbnb { return &airbnb{p: p} }

func (a *airbnb) Channel() domain.Channel { return domain.ChannelAirbnb }

func (a *airbnb) PushRates(ctx context.Context, cc domain.CallContext, p domain.RatePush) domain.AdapterResult {
	days := make([]map[string]any, 0)
	for _, plan := range p.Plans {
		for day, rate := range plan.Nightly {
			days = append(days, map[string]any{
				"date":        day,
				"daily_price": rate.String(),
			})
		}
		// Listings carry a single price calendar; the first plan wins.
		break
	}
	return a.p.postJSON(ctx, cc, fmt.Sprintf("/listings/%s/calendar", p.ChannelRoomID), map[string]any{
		"currency":   p.Currency,
		"operations": days,
	})
}

func (a *airbnb) PushAvailability(ctx context.Context, cc domain.CallContext, p domain.AvailabilityPush) domain.AdapterResult {
	available := p.Available > 0 && !p.StopSell
	return a.p.postJSON(ctx, cc, fmt.Sprintf("/listings/%s/calendar", p.ChannelRoomID), map[string]any{
		"start_date": p.DateRange.Start.Format("2006-01-02"),
		"end_date":   p.DateRange.End.Format("2006-01-02"),
		"available":  available,
	})
}

func (a *airbnb) PushRestrictions(ctx context.Context, cc domain.CallContext, p domain.RestrictionPush) domain.AdapterResult {
	return skipResult(domain.ChannelAirbnb, "restrictions")
}

func (a *airbnb) PushContent(ctx context.Context, cc domain.CallContext, p domain.ContentPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, fmt.Sprintf("/listings/%s", p.ChannelRoomID), map[string]any{
		"locale":  p.Language,
		"name":    p.Name,
		"summary": p.Description,
		"photos":  p.Images,
	})
}

func (a *airbnb) PushBookingModification(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, fmt.Sprintf("/reservations/%s/alteration", p.ReservationRef), map[string]any{
		"changes": p.ChangeSet,
	})
}

func (a *airbnb) PushCancellation(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, fmt.Sprintf("/reservations/%s/cancel", p.ReservationRef), nil)
}

func (a *airbnb) AcknowledgeReservation(ctx context.Context, cc domain.CallContext, reservation map[string]any) domain.AdapterResult {
	code, _ := reservation["confirmation_code"].(string)
	if code == "" {
		return failResult(domain.CodeValidationFailed, "confirmation_code missing", 0)
	}
	return a.p.postJSON(ctx, cc, fmt.Sprintf("/reservations/%s/accept", code), nil)
}
