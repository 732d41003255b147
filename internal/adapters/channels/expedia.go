package channels

import (
	"context"

	"channel_sync/internal/domain"
)

// expedia speaks the EPS-style JSON connectivity API. Hotels.com rides the
// same platform with a different endpoint, see hotelscom.go.
type expedia struct {
	p *pusher
}

func newExpedia(p *pusher) *expedia { return &expedia{p: p} }

func (a *expedia) Channel() domain.Channel { return domain.ChannelExpedia }

func (a *expedia) PushRates(ctx context.Context, cc domain.CallContext, p domain.RatePush) domain.AdapterResult {
	plans := make([]map[string]any, 0, len(p.Plans))
	for _, plan := range p.Plans {
		nightly := make(map[string]string, len(plan.Nightly))
		for day, rate := range plan.Nightly {
			nightly[day] = rate.String()
		}
		plans = append(plans, map[string]any{
			"ratePlanId": plan.ChannelRatePlanID,
			"mealPlan":   plan.MealPlan,
			"rates":      nightly,
		})
	}
	return a.p.postJSON(ctx, cc, "/v3/rates", map[string]any{
		"propertyId": cc.Credentials.HotelCode,
		"roomTypeId": p.ChannelRoomID,
		"currency":   p.Currency,
		"ratePlans":  plans,
	})
}

func (a *expedia) PushAvailability(ctx context.Context, cc domain.CallContext, p domain.AvailabilityPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/v3/availability", map[string]any{
		"propertyId": cc.Credentials.HotelCode,
		"roomTypeId": p.ChannelRoomID,
		"dateStart":  p.DateRange.Start.Format("2006-01-02"),
		"dateEnd":    p.DateRange.End.Format("2006-01-02"),
		"available":  p.Available,
		"closed":     p.StopSell,
	})
}

func (a *expedia) PushRestrictions(ctx context.Context, cc domain.CallContext, p domain.RestrictionPush) domain.AdapterResult {
	body := map[string]any{
		"propertyId": cc.Credentials.HotelCode,
		"roomTypeId": p.ChannelRoomID,
		"dateStart":  p.DateRange.Start.Format("2006-01-02"),
		"dateEnd":    p.DateRange.End.Format("2006-01-02"),
	}
	if p.ChannelRatePlanID != "" {
		body["ratePlanId"] = p.ChannelRatePlanID
	}
	if p.StopSell != nil {
		body["closed"] = *p.StopSell
	}
	if p.ClosedToArrival != nil {
		body["closedToArrival"] = *p.ClosedToArrival
	}
	if p.ClosedToDeparture != nil {
		body["closedToDeparture"] = *p.ClosedToDeparture
	}
	if p.Stay.MinStay != nil {
		body["minLOS"] = *p.Stay.MinStay
	}
	if p.Stay.MaxStay != nil {
		body["maxLOS"] = *p.Stay.MaxStay
	}
	return a.p.postJSON(ctx, cc, "/v3/restrictions", body)
}

func (a *expedia) PushContent(ctx context.Context, cc domain.CallContext, p domain.ContentPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/v3/content/rooms", map[string]any{
		"propertyId":  cc.Credentials.HotelCode,
		"roomTypeId":  p.ChannelRoomID,
		"locale":      p.Language,
		"name":        p.Name,
		"description": p.Description,
		"images":      p.Images,
	})
}

func (a *expedia) PushBookingModification(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/v3/bookings/modify", map[string]any{
		"propertyId":    cc.Credentials.HotelCode,
		"itineraryId":   p.ReservationRef,
		"modifications": p.ChangeSet,
	})
}

func (a *expedia) PushCancellation(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/v3/bookings/cancel", map[string]any{
		"propertyId":  cc.Credentials.HotelCode,
		"itineraryId": p.ReservationRef,
	})
}

func (a *expedia) AcknowledgeReservation(ctx context.Context, cc domain.CallContext, reservation map[string]any) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/v3/bookings/confirm", map[string]any{
		"propertyId":  cc.Credentials.HotelCode,
		"itineraryId": reservation["itineraryId"],
	})
}
