package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventQueue is the durable priority queue of update events. Only queue
// operations mutate events; lease is a linearizable CAS on status.
type EventQueue interface {
	Enqueue(ctx context.Context, ev *UpdateEvent) error
	Lease(ctx context.Context, workerID string, limit int, types []EventType) ([]UpdateEvent, error)
	Complete(ctx context.Context, eventID string, results []ChannelResult) error
	Fail(ctx context.Context, eventID string, attemptErr AttemptError, backoff time.Duration) error
	Cancel(ctx context.Context, eventID, reason string) error
	AppendResults(ctx context.Context, eventID string, results []ChannelResult) error

	Get(ctx context.Context, eventID string) (UpdateEvent, error)
	List(ctx context.Context, f EventFilter) ([]UpdateEvent, error)
	Batch(ctx context.Context, batchID string) ([]UpdateEvent, error)
	ListRetryable(ctx context.Context, limit int) ([]UpdateEvent, error)
	PromoteRetryable(ctx context.Context, limit int) (int64, error)
	Reap(ctx context.Context, olderThan time.Time) (int64, error)
}

// MappingRepository stores room and rate mappings. Uniqueness of active
// mappings per (channel, channel_room_id) and (room type, channel) is
// enforced at write time so reads are deterministic.
type MappingRepository interface {
	CreateRoomMapping(ctx context.Context, m *RoomMapping) error
	UpdateRoomMapping(ctx context.Context, m *RoomMapping) error
	GetRoomMapping(ctx context.Context, id string) (RoomMapping, error)
	ActiveRoomMappings(ctx context.Context, hotelID, roomTypeID string) ([]RoomMapping, error)
	ListRoomMappings(ctx context.Context, hotelID string) ([]RoomMapping, error)

	CreateRateMapping(ctx context.Context, m *RateMapping) error
	UpdateRateMapping(ctx context.Context, m *RateMapping) error
	GetRateMapping(ctx context.Context, id string) (RateMapping, error)
	ActiveRateMappings(ctx context.Context, roomMappingID string) ([]RateMapping, error)
}

// ConfigRepository stores per (hotel, channel) channel configurations.
type ConfigRepository interface {
	CreateConfig(ctx context.Context, c *ChannelConfiguration) error
	UpdateConfig(ctx context.Context, c *ChannelConfiguration) error
	GetConfig(ctx context.Context, hotelID string, ch Channel) (ChannelConfiguration, error)
	ListConfigs(ctx context.Context, hotelID string) ([]ChannelConfiguration, error)
	SetConnectionState(ctx context.Context, hotelID string, ch Channel, s ConnectionState) error
}

// HealthRepository materializes sync health counters.
type HealthRepository interface {
	Record(ctx context.Context, s HealthSample) error
	Get(ctx context.Context, hotelID string, ch Channel) (SyncHealth, error)
	List(ctx context.Context, hotelID string) ([]SyncHealth, error)
}

// Cache is a small JSON value cache (Redis in production, in-memory fakes
// in tests).
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// FXProvider resolves a live conversion rate between two currencies.
type FXProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Translator is the machine-translation fallback used when a language has
// auto_translate enabled and no stored translation.
type Translator interface {
	Translate(ctx context.Context, text, fromLang, toLang string) (string, error)
}

// CallContext carries everything an adapter call needs besides the payload.
type CallContext struct {
	HotelID     string
	Credentials Credentials
	Endpoint    string
	Language    string
	Currency    string
	Timeout     time.Duration
}

// AdapterResult is the typed outcome of one adapter call. Adapters never
// retry internally and never panic across this boundary.
type AdapterResult struct {
	OK        bool
	Skipped   bool
	Response  map[string]any
	Err       *SyncError
	LatencyMS int64
}

// ChannelAdapter is the fixed capability set every channel plug-in offers.
// Unsupported capabilities return a skipped result, not a failure.
type ChannelAdapter interface {
	Channel() Channel
	PushRates(ctx context.Context, cc CallContext, p RatePush) AdapterResult
	PushAvailability(ctx context.Context, cc CallContext, p AvailabilityPush) AdapterResult
	PushRestrictions(ctx context.Context, cc CallContext, p RestrictionPush) AdapterResult
	PushContent(ctx context.Context, cc CallContext, p ContentPush) AdapterResult
	PushBookingModification(ctx context.Context, cc CallContext, p BookingPush) AdapterResult
	PushCancellation(ctx context.Context, cc CallContext, p BookingPush) AdapterResult
	AcknowledgeReservation(ctx context.Context, cc CallContext, reservation map[string]any) AdapterResult
}

// RatePush is the transformed per-channel rate payload.
type RatePush struct {
	ChannelRoomID string          `json:"channel_room_id"`
	Plans         []RatePlanPush  `json:"plans"`
	DateRange     DateRange       `json:"date_range"`
	Currency      string          `json:"currency"`
	Commission    decimal.Decimal `json:"commission"`
}

// RatePlanPush carries one channel rate plan's nightly rates keyed by
// YYYY-MM-DD.
type RatePlanPush struct {
	ChannelRatePlanID string                     `json:"channel_rate_plan_id"`
	MealPlan          string                     `json:"meal_plan,omitempty"`
	Nightly           map[string]decimal.Decimal `json:"nightly"`
}

// AvailabilityPush is the transformed per-channel availability payload.
type AvailabilityPush struct {
	ChannelRoomID string    `json:"channel_room_id"`
	DateRange     DateRange `json:"date_range"`
	Available     int       `json:"available"`
	StopSell      bool      `json:"stop_sell"`
}

// RestrictionPush is the transformed per-channel restriction payload.
type RestrictionPush struct {
	ChannelRoomID     string          `json:"channel_room_id"`
	ChannelRatePlanID string          `json:"channel_rate_plan_id,omitempty"`
	DateRange         DateRange       `json:"date_range"`
	StopSell          *bool           `json:"stop_sell,omitempty"`
	ClosedToArrival   *bool           `json:"closed_to_arrival,omitempty"`
	ClosedToDeparture *bool           `json:"closed_to_departure,omitempty"`
	Stay              StayConstraints `json:"stay"`
}

// ContentPush is the localized room content payload.
type ContentPush struct {
	ChannelRoomID string   `json:"channel_room_id"`
	Language      string   `json:"language"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Images        []string `json:"images,omitempty"`
}

// BookingPush notifies a channel of a PMS-side booking change.
type BookingPush struct {
	ReservationRef string         `json:"reservation_ref"`
	ChangeSet      map[string]any `json:"change_set,omitempty"`
	Cancelled      bool           `json:"cancelled"`
}

// ReservationSink is the reservations collaborator callback invoked when a
// channel pushes an inbound reservation.
type ReservationSink interface {
	OnExternalReservation(ctx context.Context, ch Channel, payload map[string]any) error
}
