package channels

import (
	"context"
	"fmt"

	"channel_sync/internal/domain"
)

// Registry resolves a channel identifier to its adapter. The set is fixed
// at construction; tests build registries with fakes via NewRegistry.
type Registry struct {
	adapters map[domain.Channel]domain.ChannelAdapter
}

func NewRegistry(adapters ...domain.ChannelAdapter) *Registry {
	m := make(map[domain.Channel]domain.ChannelAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Channel()] = a
	}
	return &Registry{adapters: m}
}

// Default wires every supported channel.
func Default() *Registry {
	p := newPusher()
	return NewRegistry(
		newBookingCom(p),
		newExpedia(p),
		newAirbnb(p),
		newAgoda(p),
		newHotelsCom(p),
		newGDS(p, domain.ChannelAmadeus),
		newGDS(p, domain.ChannelSabre),
		newGDS(p, domain.ChannelGalileo),
		newGDS(p, domain.ChannelWorldspan),
		newDirectWeb(),
	)
}

func (r *Registry) Get(ch domain.Channel) (domain.ChannelAdapter, bool) {
	a, ok := r.adapters[ch]
	return a, ok
}

// Invoke routes an event type to the matching adapter capability.
func (r *Registry) Invoke(ctx context.Context, ch domain.Channel, t domain.EventType, cc domain.CallContext, payload any) domain.AdapterResult {
	a, ok := r.adapters[ch]
	if !ok {
		return failResult(domain.CodeChannelDisabled, fmt.Sprintf("no adapter for channel %s", ch), 0)
	}
	switch t {
	case domain.EventRateUpdate:
		p, ok := payload.(domain.RatePush)
		if !ok {
			return badPayload(t)
		}
		return a.PushRates(ctx, cc, p)
	case domain.EventAvailabilityUpdate:
		p, ok := payload.(domain.AvailabilityPush)
		if !ok {
			return badPayload(t)
		}
		return a.PushAvailability(ctx, cc, p)
	case domain.EventRestrictionUpdate, domain.EventStopSellUpdate:
		p, ok := payload.(domain.RestrictionPush)
		if !ok {
			return badPayload(t)
		}
		return a.PushRestrictions(ctx, cc, p)
	case domain.EventRoomTypeUpdate:
		p, ok := payload.(domain.ContentPush)
		if !ok {
			return badPayload(t)
		}
		return a.PushContent(ctx, cc, p)
	case domain.EventBookingModification:
		p, ok := payload.(domain.BookingPush)
		if !ok {
			return badPayload(t)
		}
		return a.PushBookingModification(ctx, cc, p)
	case domain.EventCancellation:
		p, ok := payload.(domain.BookingPush)
		if !ok {
			return badPayload(t)
		}
		return a.PushCancellation(ctx, cc, p)
	default:
		return failResult(domain.CodeValidationFailed, fmt.Sprintf("no capability for event type %s", t), 0)
	}
}

func badPayload(t domain.EventType) domain.AdapterResult {
	return failResult(domain.CodeInternal, fmt.Sprintf("payload type mismatch for %s", t), 0)
}
