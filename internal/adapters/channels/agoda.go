package channels

import (
	"context"

	"channel_sync/internal/domain"
)

type agoda struct {
	p *pusher
}

func newAgoda(p *pusher) *agoda { return &agoda{p: p} }

func (a *agoda) Channel() domain.Channel { return domain.ChannelAgoda }

func (a *agoda) PushRates(ctx context.Context, cc domain.CallContext, p domain.RatePush) domain.AdapterResult {
	plans := make([]map[string]any, 0, len(p.Plans))
	for _, plan := range p.Plans {
		nightly := make(map[string]string, len(plan.Nightly))
		for day, rate := range plan.Nightly {
			nightly[day] = rate.String()
		}
		plans = append(plans, map[string]any{
			"rate_plan_code": plan.ChannelRatePlanID,
			"meal_plan":      plan.MealPlan,
			"daily_rates":    nightly,
		})
	}
	return a.p.postJSON(ctx, cc, "/ycs/rates", map[string]any{
		"property_code": cc.Credentials.HotelCode,
		"room_code":     p.ChannelRoomID,
		"currency":      p.Currency,
		"rate_plans":    plans,
	})
}

func (a *agoda) PushAvailability(ctx context.Context, cc domain.CallContext, p domain.AvailabilityPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/ycs/allotment", map[string]any{
		"property_code": cc.Credentials.HotelCode,
		"room_code":     p.ChannelRoomID,
		"from":          p.DateRange.Start.Format("2006-01-02"),
		"to":            p.DateRange.End.Format("2006-01-02"),
		"allotment":     p.Available,
		"close_out":     p.StopSell,
	})
}

func (a *agoda) PushRestrictions(ctx context.Context, cc domain.CallContext, p domain.RestrictionPush) domain.AdapterResult {
	body := map[string]any{
		"property_code": cc.Credentials.HotelCode,
		"room_code":     p.ChannelRoomID,
		"from":          p.DateRange.Start.Format("2006-01-02"),
		"to":            p.DateRange.End.Format("2006-01-02"),
	}
	if p.ChannelRatePlanID != "" {
		body["rate_plan_code"] = p.ChannelRatePlanID
	}
	if p.StopSell != nil {
		body["close_out"] = *p.StopSell
	}
	if p.ClosedToArrival != nil {
		body["cta"] = *p.ClosedToArrival
	}
	if p.ClosedToDeparture != nil {
		body["ctd"] = *p.ClosedToDeparture
	}
	if p.Stay.MinStay != nil {
		body["min_stay"] = *p.Stay.MinStay
	}
	if p.Stay.MaxStay != nil {
		body["max_stay"] = *p.Stay.MaxStay
	}
	return a.p.postJSON(ctx, cc, "/ycs/restrictions", body)
}

func (a *agoda) PushContent(ctx context.Context, cc domain.CallContext, p domain.ContentPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/ycs/content/rooms", map[string]any{
		"property_code": cc.Credentials.HotelCode,
		"room_code":     p.ChannelRoomID,
		"language":      p.Language,
		"room_name":     p.Name,
		"description":   p.Description,
		"images":        p.Images,
	})
}

func (a *agoda) PushBookingModification(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/ycs/bookings/amend", map[string]any{
		"property_code": cc.Credentials.HotelCode,
		"booking_id":    p.ReservationRef,
		"amendments":    p.ChangeSet,
	})
}

func (a *agoda) PushCancellation(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/ycs/bookings/cancel", map[string]any{
		"property_code": cc.Credentials.HotelCode,
		"booking_id":    p.ReservationRef,
	})
}

func (a *agoda) AcknowledgeReservation(ctx context.Context, cc domain.CallContext, reservation map[string]any) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/ycs/bookings/ack", map[string]any{
		"property_code": cc.Credentials.HotelCode,
		"booking_id":    reservation["booking_id"],
	})
}
