package channels

import (
	"context"

	"channel_sync/internal/domain"
)

// directWeb is the hotel's own booking engine. It reads rates and
// availability straight from the PMS, so every push is a local no-op that
// succeeds immediately.
type directWeb struct{}

func newDirectWeb() directWeb { return directWeb{} }

func (directWeb) Channel() domain.Channel { return domain.ChannelDirectWeb }

func ack(kind string) domain.AdapterResult {
	return domain.AdapterResult{OK: true, Response: map[string]any{"synced": kind}, LatencyMS: 1}
}

func (directWeb) PushRates(ctx context.Context, cc domain.CallContext, p domain.RatePush) domain.AdapterResult {
	return ack("rates")
}

func (directWeb) PushAvailability(ctx context.Context, cc domain.CallContext, p domain.AvailabilityPush) domain.AdapterResult {
	return ack("availability")
}

func (directWeb) PushRestrictions(ctx context.Context, cc domain.CallContext, p domain.RestrictionPush) domain.AdapterResult {
	return ack("restrictions")
}

func (directWeb) PushContent(ctx context.Context, cc domain.CallContext, p domain.ContentPush) domain.AdapterResult {
	return ack("content")
}

func (directWeb) PushBookingModification(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return ack("booking")
}

func (directWeb) PushCancellation(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return ack("cancellation")
}

func (directWeb) AcknowledgeReservation(ctx context.Context, cc domain.CallContext, reservation map[string]any) domain.AdapterResult {
	return ack("reservation")
}
