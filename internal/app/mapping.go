package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"channel_sync/internal/adapters/observability"
	"channel_sync/internal/domain"
)

const mappingTTLSec = 60

// MappingService owns room and rate mapping lifecycle and the outbound rate
// transform chain.
type MappingService struct {
	repo  domain.MappingRepository
	cache domain.Cache
}

func NewMappingService(repo domain.MappingRepository, cache domain.Cache) *MappingService {
	return &MappingService{repo: repo, cache: cache}
}

func roomMapKey(hotelID, roomTypeID string) string {
	return fmt.Sprintf("map:room:%s:%s", hotelID, roomTypeID)
}

func rateMapKey(roomMappingID string) string {
	return fmt.Sprintf("map:rate:%s", roomMappingID)
}

func (s *MappingService) CreateRoomMapping(ctx context.Context, m *domain.RoomMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateRoomMapping(ctx, m); err != nil {
		return err
	}
	s.evictRoom(ctx, m.HotelID, m.RoomTypeID)
	return nil
}

func (s *MappingService) UpdateRoomMapping(ctx context.Context, m *domain.RoomMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateRoomMapping(ctx, m); err != nil {
		return err
	}
	s.evictRoom(ctx, m.HotelID, m.RoomTypeID)
	return nil
}

func (s *MappingService) GetRoomMapping(ctx context.Context, id string) (domain.RoomMapping, error) {
	return s.repo.GetRoomMapping(ctx, id)
}

func (s *MappingService) ListRoomMappings(ctx context.Context, hotelID string) ([]domain.RoomMapping, error) {
	return s.repo.ListRoomMappings(ctx, hotelID)
}

// ActiveRoomMappings is on the dispatch hot path; reads go through the
// cache with a short TTL, writes above evict eagerly.
func (s *MappingService) ActiveRoomMappings(ctx context.Context, hotelID, roomTypeID string) ([]domain.RoomMapping, error) {
	key := roomMapKey(hotelID, roomTypeID)
	if s.cache != nil {
		var ms []domain.RoomMapping
		if ok, err := s.cache.Get(ctx, key, &ms); err == nil && ok {
			observability.ObserveCache("mapping", "hit")
			return ms, nil
		}
		observability.ObserveCache("mapping", "miss")
	}
	ms, err := s.repo.ActiveRoomMappings(ctx, hotelID, roomTypeID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, ms, mappingTTLSec)
	}
	return ms, nil
}

func (s *MappingService) CreateRateMapping(ctx context.Context, m *domain.RateMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateRateMapping(ctx, m); err != nil {
		return err
	}
	s.evictRate(ctx, m.RoomMappingID)
	return nil
}

func (s *MappingService) UpdateRateMapping(ctx context.Context, m *domain.RateMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateRateMapping(ctx, m); err != nil {
		return err
	}
	s.evictRate(ctx, m.RoomMappingID)
	return nil
}

func (s *MappingService) GetRateMapping(ctx context.Context, id string) (domain.RateMapping, error) {
	return s.repo.GetRateMapping(ctx, id)
}

func (s *MappingService) ActiveRateMappings(ctx context.Context, roomMappingID string) ([]domain.RateMapping, error) {
	key := rateMapKey(roomMappingID)
	if s.cache != nil {
		var ms []domain.RateMapping
		if ok, err := s.cache.Get(ctx, key, &ms); err == nil && ok {
			observability.ObserveCache("mapping", "hit")
			return ms, nil
		}
		observability.ObserveCache("mapping", "miss")
	}
	ms, err := s.repo.ActiveRateMappings(ctx, roomMappingID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, ms, mappingTTLSec)
	}
	return ms, nil
}

func (s *MappingService) evictRoom(ctx context.Context, hotelID, roomTypeID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, roomMapKey(hotelID, roomTypeID))
		observability.ObserveCache("mapping", "del")
	}
}

func (s *MappingService) evictRate(ctx context.Context, roomMappingID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, rateMapKey(roomMappingID))
		observability.ObserveCache("mapping", "del")
	}
}

// ChannelRate runs the outbound rate transform chain in its fixed order:
// base modifier, first matching seasonal rule, day-of-week rule, room-level
// modifier, then currency conversion (FX, markup, rounding) via convert.
func ChannelRate(ctx context.Context, base decimal.Decimal, date time.Time, room *domain.RoomMapping, plan *domain.RateMapping, convert func(context.Context, decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	out := plan.BaseRateModifier.Apply(base)
	for _, sr := range plan.Seasonal {
		if sr.Contains(date) {
			out = sr.Modifier.Apply(out)
			break
		}
	}
	for _, dr := range plan.DayOfWeek {
		if dr.Weekday == int(date.Weekday()) {
			out = dr.Modifier.Apply(out)
			break
		}
	}
	if room.RateModifier != nil {
		out = room.RateModifier.Apply(out)
	}
	if convert != nil {
		return convert(ctx, out)
	}
	return out, nil
}

// ClampRestrictions narrows PMS restriction input to a rate mapping's stay
// limits: the tighter bound on each side wins.
func ClampRestrictions(in domain.StayConstraints, plan *domain.RateMapping) domain.StayConstraints {
	out := in
	out.MinStay = tighterMin(in.MinStay, plan.MinStay)
	out.MaxStay = tighterMax(in.MaxStay, plan.MaxStay)
	out.MinOccupancy = tighterMin(in.MinOccupancy, plan.MinOccupancy)
	out.MaxOccupancy = tighterMax(in.MaxOccupancy, plan.MaxOccupancy)
	return out
}

func tighterMin(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

func tighterMax(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	default:
		return a
	}
}
