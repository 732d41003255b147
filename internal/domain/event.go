package domain

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventRateUpdate          EventType = "rate_update"
	EventAvailabilityUpdate  EventType = "availability_update"
	EventRestrictionUpdate   EventType = "restriction_update"
	EventRoomTypeUpdate      EventType = "room_type_update"
	EventBookingModification EventType = "booking_modification"
	EventCancellation        EventType = "cancellation"
	EventStopSellUpdate      EventType = "stop_sell_update"
)

type EventStatus string

const (
	StatusPending    EventStatus = "pending"
	StatusProcessing EventStatus = "processing"
	StatusCompleted  EventStatus = "completed"
	StatusFailed     EventStatus = "failed"
	StatusCancelled  EventStatus = "cancelled"
)

// Terminal reports whether the status never transitions again.
func (s EventStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type EventSource string

const (
	SourceManual    EventSource = "manual"
	SourceSystem    EventSource = "system"
	SourceWebhook   EventSource = "webhook"
	SourceScheduler EventSource = "scheduler"
	SourceBulk      EventSource = "bulk_operation"
)

// Resource is the sync dimension an event touches. Ordering is enforced per
// (hotel, resource) at lease time, so the mapping from event type to
// resource decides which events may overlap in flight.
type Resource string

const (
	ResourceRates        Resource = "rates"
	ResourceAvailability Resource = "availability"
	ResourceRestrictions Resource = "restrictions"
	ResourceContent      Resource = "content"
	ResourceBookings     Resource = "bookings"
)

// ResourceOf maps an event type to the resource it mutates.
func ResourceOf(t EventType) Resource {
	switch t {
	case EventRateUpdate:
		return ResourceRates
	case EventAvailabilityUpdate:
		return ResourceAvailability
	case EventRestrictionUpdate, EventStopSellUpdate:
		return ResourceRestrictions
	case EventRoomTypeUpdate:
		return ResourceContent
	default:
		return ResourceBookings
	}
}

// DefaultPriority returns the enqueue priority for an event type
// (1 = highest, 5 = lowest).
func DefaultPriority(t EventType) int {
	switch t {
	case EventBookingModification, EventCancellation:
		return 2
	case EventRateUpdate, EventAvailabilityUpdate, EventRestrictionUpdate, EventStopSellUpdate:
		return 3
	default:
		return 4
	}
}

// DateRange is an inclusive stay-date window; End must be strictly after
// Start.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: date range required", ErrValidation)
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("%w: date range end must be after start", ErrValidation)
	}
	return nil
}

// Overlaps reports whether two ranges share at least one date cell.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}

// EventPayload is the channel-facing body of an update event. Data holds the
// type-specific fields (rates, totals, restriction flags, change sets).
type EventPayload struct {
	HotelID    string         `json:"hotel_id"`
	RoomTypeID string         `json:"room_type_id,omitempty"`
	DateRange  DateRange      `json:"date_range"`
	Channels   []Channel      `json:"channels,omitempty"` // empty = "all"
	Data       map[string]any `json:"data,omitempty"`
}

// ResultStatus classifies one channel's outcome for one event.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
	ResultSkipped ResultStatus = "skipped"
)

// ChannelResult records the outcome of a single adapter call.
type ChannelResult struct {
	Channel    Channel        `json:"channel"`
	Status     ResultStatus   `json:"status"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	DurationMS int64          `json:"processing_time_ms"`
	At         time.Time      `json:"timestamp"`
}

// AttemptError is one entry of an event's error log.
type AttemptError struct {
	Attempt   int            `json:"attempt_number"`
	At        time.Time      `json:"timestamp"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Channel   Channel        `json:"channel,omitempty"`
	Retryable bool           `json:"retryable"`
	Context   map[string]any `json:"context,omitempty"`
}

// UpdateEvent is the durable queue record. Mutated only by the queue; the
// dispatcher works on leased copies.
type UpdateEvent struct {
	ID       string       `json:"id"`
	Type     EventType    `json:"event_type"`
	Priority int          `json:"priority"` // 1..5, 1 highest
	Status   EventStatus  `json:"status"`
	Payload  EventPayload `json:"payload"`

	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	WorkerID    string     `json:"worker_id,omitempty"`

	Errors  []AttemptError  `json:"errors,omitempty"`
	Results []ChannelResult `json:"results,omitempty"`

	Source        EventSource `json:"source"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	BatchID       string      `json:"batch_id,omitempty"`
	ScheduledFor  time.Time   `json:"scheduled_for"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const DefaultMaxAttempts = 3

// MaxPayloadBytes bounds the serialized Data block accepted at enqueue.
const MaxPayloadBytes = 256 << 10

// Resource returns the sync dimension this event belongs to.
func (e *UpdateEvent) Resource() Resource { return ResourceOf(e.Type) }

// Validate enforces the enqueue-time schema per event type.
func (e *UpdateEvent) Validate() error {
	switch e.Type {
	case EventRateUpdate, EventAvailabilityUpdate, EventRestrictionUpdate,
		EventRoomTypeUpdate, EventBookingModification, EventCancellation,
		EventStopSellUpdate:
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, e.Type)
	}
	if e.Payload.HotelID == "" {
		return fmt.Errorf("%w: hotel_id required", ErrValidation)
	}
	if e.Priority < 1 || e.Priority > 5 {
		return fmt.Errorf("%w: priority out of range", ErrValidation)
	}
	if err := e.Payload.DateRange.Validate(); err != nil {
		return err
	}
	for _, c := range e.Payload.Channels {
		if _, err := ParseChannel(string(c)); err != nil {
			return err
		}
	}
	switch e.Type {
	case EventRateUpdate:
		if _, ok := e.Payload.Data["base_rate"]; !ok {
			return fmt.Errorf("%w: rate_update requires base_rate", ErrValidation)
		}
		if _, ok := e.Payload.Data["currency"]; !ok {
			return fmt.Errorf("%w: rate_update requires currency", ErrValidation)
		}
	case EventAvailabilityUpdate:
		if _, ok := e.Payload.Data["available"]; !ok {
			return fmt.Errorf("%w: availability_update requires available", ErrValidation)
		}
	case EventBookingModification, EventCancellation:
		if _, ok := e.Payload.Data["reservation_ref"]; !ok {
			return fmt.Errorf("%w: %s requires reservation_ref", ErrValidation, e.Type)
		}
	}
	if e.Payload.RoomTypeID == "" {
		switch e.Type {
		case EventRateUpdate, EventAvailabilityUpdate, EventRestrictionUpdate, EventStopSellUpdate:
			return fmt.Errorf("%w: %s requires room_type_id", ErrValidation, e.Type)
		}
	}
	return nil
}

// CoalesceKey is the idempotency key for pending-event replacement. Empty
// when the producer supplied no correlation id.
func (e *UpdateEvent) CoalesceKey() string {
	if e.CorrelationID == "" {
		return ""
	}
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		e.CorrelationID, e.Type, e.Payload.HotelID, e.Payload.RoomTypeID,
		e.Payload.DateRange.Start.Unix(), e.Payload.DateRange.End.Unix())
}

// EventFilter drives operator event listings.
type EventFilter struct {
	HotelID       string
	Status        EventStatus
	Type          EventType
	BatchID       string
	CorrelationID string
	Limit         int
}
