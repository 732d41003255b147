package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"channel_sync/internal/domain"
)

// buildPayload turns an event's channel-neutral payload into the typed push
// for one channel, applying mappings and currency/language transforms. A nil
// error with a nil payload never happens; a SyncError classifies why the
// channel cannot be pushed.
func (d *Dispatcher) buildPayload(ctx context.Context, ev *domain.UpdateEvent, cfg *domain.ChannelConfiguration, ch domain.Channel) (any, *domain.SyncError) {
	switch ev.Type {
	case domain.EventRateUpdate:
		return d.buildRatePush(ctx, ev, cfg, ch)
	case domain.EventAvailabilityUpdate:
		return d.buildAvailabilityPush(ctx, ev, cfg, ch)
	case domain.EventRestrictionUpdate, domain.EventStopSellUpdate:
		return d.buildRestrictionPush(ctx, ev, cfg, ch)
	case domain.EventRoomTypeUpdate:
		return d.buildContentPush(ctx, ev, cfg, ch)
	case domain.EventBookingModification, domain.EventCancellation:
		return domain.BookingPush{
			ReservationRef: dataString(ev.Payload.Data, "reservation_ref"),
			ChangeSet:      dataMap(ev.Payload.Data, "changes"),
			Cancelled:      ev.Type == domain.EventCancellation,
		}, nil
	}
	return nil, domain.NewSyncError(domain.CodeInternal, fmt.Sprintf("no payload builder for %s", ev.Type))
}

// roomMappingFor picks the active mapping binding the event's room type to
// one channel.
func (d *Dispatcher) roomMappingFor(ctx context.Context, ev *domain.UpdateEvent, ch domain.Channel) (*domain.RoomMapping, *domain.SyncError) {
	ms, err := d.maps.ActiveRoomMappings(ctx, ev.Payload.HotelID, ev.Payload.RoomTypeID)
	if err != nil {
		return nil, domain.NewSyncError(domain.CodeInternal, err.Error())
	}
	for i := range ms {
		if ms[i].Channel == ch {
			return &ms[i], nil
		}
	}
	se := domain.NewSyncError(domain.CodeMappingMissing,
		fmt.Sprintf("no active room mapping for %s on %s", ev.Payload.RoomTypeID, ch))
	se.Channel = ch
	return nil, se
}

func (d *Dispatcher) buildRatePush(ctx context.Context, ev *domain.UpdateEvent, cfg *domain.ChannelConfiguration, ch domain.Channel) (any, *domain.SyncError) {
	room, se := d.roomMappingFor(ctx, ev, ch)
	if se != nil {
		return nil, se
	}
	plans, err := d.maps.ActiveRateMappings(ctx, room.ID)
	if err != nil {
		return nil, domain.NewSyncError(domain.CodeInternal, err.Error())
	}
	if len(plans) == 0 {
		se := domain.NewSyncError(domain.CodeMappingMissing,
			fmt.Sprintf("no active rate mapping under room mapping %s", room.ID))
		se.Channel = ch
		return nil, se
	}

	base, ok := dataDecimal(ev.Payload.Data, "base_rate")
	if !ok {
		return nil, domain.NewSyncError(domain.CodeValidationFailed, "base_rate not numeric")
	}
	if cur := dataString(ev.Payload.Data, "currency"); cur != "" && cur != cfg.BaseCurrency {
		return nil, domain.NewSyncError(domain.CodeValidationFailed,
			fmt.Sprintf("base_rate currency %s does not match configured base %s", cur, cfg.BaseCurrency))
	}
	target := dataString(ev.Payload.Data, "target_currency")
	if target == "" {
		target = cfg.BaseCurrency
	}
	convert := d.cfgs.Converter(cfg, target)

	push := domain.RatePush{
		ChannelRoomID: room.ChannelRoomID,
		DateRange:     ev.Payload.DateRange,
		Currency:      target,
		Commission:    room.Commission,
	}
	for i := range plans {
		plan := &plans[i]
		nightly := make(map[string]decimal.Decimal)
		for day := ev.Payload.DateRange.Start; !day.After(ev.Payload.DateRange.End); day = day.AddDate(0, 0, 1) {
			r, cerr := ChannelRate(ctx, base, day, room, plan, convert)
			if cerr != nil {
				return nil, asSyncError(cerr, ch)
			}
			nightly[day.Format("2006-01-02")] = r
		}
		push.Plans = append(push.Plans, domain.RatePlanPush{
			ChannelRatePlanID: plan.ChannelRatePlanID,
			MealPlan:          plan.MealPlan,
			Nightly:           nightly,
		})
	}
	return push, nil
}

func (d *Dispatcher) buildAvailabilityPush(ctx context.Context, ev *domain.UpdateEvent, _ *domain.ChannelConfiguration, ch domain.Channel) (any, *domain.SyncError) {
	room, se := d.roomMappingFor(ctx, ev, ch)
	if se != nil {
		return nil, se
	}
	avail, ok := dataInt(ev.Payload.Data, "available")
	if !ok || avail < 0 {
		return nil, domain.NewSyncError(domain.CodeValidationFailed, "available must be a non-negative integer")
	}
	return domain.AvailabilityPush{
		ChannelRoomID: room.ChannelRoomID,
		DateRange:     ev.Payload.DateRange,
		Available:     avail,
		StopSell:      dataBool(ev.Payload.Data, "stop_sell"),
	}, nil
}

func (d *Dispatcher) buildRestrictionPush(ctx context.Context, ev *domain.UpdateEvent, _ *domain.ChannelConfiguration, ch domain.Channel) (any, *domain.SyncError) {
	room, se := d.roomMappingFor(ctx, ev, ch)
	if se != nil {
		return nil, se
	}
	push := domain.RestrictionPush{
		ChannelRoomID: room.ChannelRoomID,
		DateRange:     ev.Payload.DateRange,
	}
	if v, ok := dataBoolPtr(ev.Payload.Data, "stop_sell"); ok {
		push.StopSell = v
	}
	if ev.Type == domain.EventStopSellUpdate && push.StopSell == nil {
		t := true
		push.StopSell = &t
	}
	if v, ok := dataBoolPtr(ev.Payload.Data, "closed_to_arrival"); ok {
		push.ClosedToArrival = v
	}
	if v, ok := dataBoolPtr(ev.Payload.Data, "closed_to_departure"); ok {
		push.ClosedToDeparture = v
	}
	stay := domain.StayConstraints{}
	if v, ok := dataInt(ev.Payload.Data, "min_stay"); ok {
		stay.MinStay = &v
	}
	if v, ok := dataInt(ev.Payload.Data, "max_stay"); ok {
		stay.MaxStay = &v
	}
	if v, ok := dataInt(ev.Payload.Data, "min_occupancy"); ok {
		stay.MinOccupancy = &v
	}
	if v, ok := dataInt(ev.Payload.Data, "max_occupancy"); ok {
		stay.MaxOccupancy = &v
	}

	// Restrictions ride the first active rate plan; its stay limits clamp
	// the PMS input.
	plans, err := d.maps.ActiveRateMappings(ctx, room.ID)
	if err != nil {
		return nil, domain.NewSyncError(domain.CodeInternal, err.Error())
	}
	if len(plans) > 0 {
		push.ChannelRatePlanID = plans[0].ChannelRatePlanID
		stay = ClampRestrictions(stay, &plans[0])
	}
	push.Stay = stay
	return push, nil
}

func (d *Dispatcher) buildContentPush(ctx context.Context, ev *domain.UpdateEvent, cfg *domain.ChannelConfiguration, ch domain.Channel) (any, *domain.SyncError) {
	room, se := d.roomMappingFor(ctx, ev, ch)
	if se != nil {
		return nil, se
	}
	lang := dataString(ev.Payload.Data, "language")
	if lang == "" {
		lang = cfg.PrimaryLanguage
	}
	name, err := d.cfgs.Localize(ctx, cfg, lang, dataTexts(ev.Payload.Data, "name"))
	if err != nil {
		return nil, asSyncError(err, ch)
	}
	desc, err := d.cfgs.Localize(ctx, cfg, lang, dataTexts(ev.Payload.Data, "description"))
	if err != nil {
		return nil, asSyncError(err, ch)
	}
	images := dataStrings(ev.Payload.Data, "images")

	rules := cfg.ContentRules
	if rules.MinDescriptionLen > 0 && len(desc) < rules.MinDescriptionLen {
		return nil, domain.NewSyncError(domain.CodeValidationFailed,
			fmt.Sprintf("description shorter than %d chars", rules.MinDescriptionLen))
	}
	if rules.MaxDescriptionLen > 0 && len(desc) > rules.MaxDescriptionLen {
		return nil, domain.NewSyncError(domain.CodeValidationFailed,
			fmt.Sprintf("description longer than %d chars", rules.MaxDescriptionLen))
	}
	if len(images) < rules.MinImages {
		return nil, domain.NewSyncError(domain.CodeValidationFailed,
			fmt.Sprintf("at least %d images required", rules.MinImages))
	}

	code := lang
	if l, ok := cfg.Language(lang); ok && l.ChannelCode != "" {
		code = l.ChannelCode
	}
	return domain.ContentPush{
		ChannelRoomID: room.ChannelRoomID,
		Language:      code,
		Name:          name,
		Description:   desc,
		Images:        images,
	}, nil
}

// asSyncError coerces service errors into a channel-tagged SyncError.
func asSyncError(err error, ch domain.Channel) *domain.SyncError {
	if se, ok := err.(*domain.SyncError); ok {
		if se.Channel == "" {
			se.Channel = ch
		}
		return se
	}
	se := domain.NewSyncError(domain.CodeInternal, err.Error())
	se.Channel = ch
	return se
}

// JSON payloads decode numbers as float64 and nested objects as maps; the
// helpers below normalize what the builders need.

func dataString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func dataBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func dataBoolPtr(m map[string]any, key string) (*bool, bool) {
	if b, ok := m[key].(bool); ok {
		return &b, true
	}
	return nil, false
}

func dataInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func dataDecimal(m map[string]any, key string) (decimal.Decimal, bool) {
	switch v := m[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	case decimal.Decimal:
		return v, true
	}
	return decimal.Zero, false
}

func dataMap(m map[string]any, key string) map[string]any {
	mm, _ := m[key].(map[string]any)
	return mm
}

// dataTexts reads a per-language text block; a bare string is treated as
// already being in every language.
func dataTexts(m map[string]any, key string) map[string]string {
	switch v := m[key].(type) {
	case string:
		return map[string]string{"": v}
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, t := range v {
			if s, ok := t.(string); ok {
				out[k] = s
			}
		}
		return out
	case map[string]string:
		return v
	}
	return nil
}

func dataStrings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
