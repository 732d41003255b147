package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ModifierKind string

const (
	ModifierPercentage ModifierKind = "percentage"
	ModifierFixed      ModifierKind = "fixed"
	ModifierMultiplier ModifierKind = "multiplier"
)

// RateModifier adjusts a rate. Percentage values are deltas (+10 means
// +10%), fixed values are absolute amounts in the base currency, multiplier
// values scale directly.
type RateModifier struct {
	Kind  ModifierKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// Apply returns the modified rate. Unknown kinds pass the rate through.
func (m RateModifier) Apply(rate decimal.Decimal) decimal.Decimal {
	switch m.Kind {
	case ModifierPercentage:
		return rate.Add(rate.Mul(m.Value).Div(decimal.NewFromInt(100)))
	case ModifierFixed:
		return rate.Add(m.Value)
	case ModifierMultiplier:
		return rate.Mul(m.Value)
	}
	return rate
}

func (m RateModifier) Validate() error {
	switch m.Kind {
	case ModifierPercentage, ModifierFixed, ModifierMultiplier:
		return nil
	}
	return fmt.Errorf("%w: unknown modifier kind %q", ErrValidation, m.Kind)
}

// SeasonalRule applies a modifier inside an inclusive date window.
type SeasonalRule struct {
	From     time.Time    `json:"from"`
	To       time.Time    `json:"to"`
	Modifier RateModifier `json:"modifier"`
}

// Contains reports whether d falls inside the rule window (inclusive).
func (s SeasonalRule) Contains(d time.Time) bool {
	return !d.Before(s.From) && !d.After(s.To)
}

// DowRule applies a modifier on one weekday (0 = Sunday).
type DowRule struct {
	Weekday  int          `json:"dow"`
	Modifier RateModifier `json:"modifier"`
}

// RoomMapping binds a PMS room type to one channel's room identifier.
// Active mappings are unique per (channel, channel_room_id) and per
// (room type, channel); the store enforces both.
type RoomMapping struct {
	ID              string  `json:"id"`
	HotelID         string  `json:"hotel_id"`
	RoomTypeID      string  `json:"room_type_id"`
	Channel         Channel `json:"channel"`
	ChannelRoomID   string  `json:"channel_room_id"`
	ChannelRoomName string  `json:"channel_room_name,omitempty"`
	IsActive        bool    `json:"is_active"`

	Commission      decimal.Decimal `json:"commission"` // percent, 0..100
	RateModifier    *RateModifier   `json:"rate_modifier,omitempty"`
	MinAdvanceDays  *int            `json:"min_advance_days,omitempty"`
	MaxAdvanceDays  *int            `json:"max_advance_days,omitempty"`
	ChannelSpecific map[string]any  `json:"channel_specific,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *RoomMapping) Validate() error {
	if m.HotelID == "" || m.RoomTypeID == "" || m.ChannelRoomID == "" {
		return fmt.Errorf("%w: hotel_id, room_type_id and channel_room_id required", ErrValidation)
	}
	if _, err := ParseChannel(string(m.Channel)); err != nil {
		return err
	}
	if m.Commission.IsNegative() || m.Commission.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: commission must be within [0,100]", ErrValidation)
	}
	if m.RateModifier != nil {
		if err := m.RateModifier.Validate(); err != nil {
			return err
		}
		if m.RateModifier.Kind == ModifierMultiplier {
			return fmt.Errorf("%w: room mapping modifier must be percentage or fixed", ErrValidation)
		}
	}
	if m.MinAdvanceDays != nil && m.MaxAdvanceDays != nil && *m.MinAdvanceDays > *m.MaxAdvanceDays {
		return fmt.Errorf("%w: min advance days exceeds max", ErrValidation)
	}
	return nil
}

// RateMapping binds a PMS rate plan to a channel rate plan under one room
// mapping, with the transform rules applied on every outgoing rate.
type RateMapping struct {
	ID                string `json:"id"`
	RatePlanID        string `json:"rate_plan_id"`
	RoomMappingID     string `json:"room_mapping_id"`
	ChannelRatePlanID string `json:"channel_rate_plan_id"`
	IsActive          bool   `json:"is_active"`

	BaseRateModifier   RateModifier `json:"base_rate_modifier"`
	MealPlan           string       `json:"meal_plan,omitempty"`
	CancellationPolicy string       `json:"cancellation_policy,omitempty"`
	FreeCancelHours    int          `json:"free_cancel_hours,omitempty"`

	MinAdvanceDays *int `json:"min_advance_days,omitempty"`
	MaxAdvanceDays *int `json:"max_advance_days,omitempty"`
	MinStay        *int `json:"min_stay,omitempty"`
	MaxStay        *int `json:"max_stay,omitempty"`
	MinOccupancy   *int `json:"min_occupancy,omitempty"`
	MaxOccupancy   *int `json:"max_occupancy,omitempty"`

	Seasonal  []SeasonalRule `json:"seasonal,omitempty"`
	DayOfWeek []DowRule      `json:"day_of_week,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *RateMapping) Validate() error {
	if m.RatePlanID == "" || m.RoomMappingID == "" || m.ChannelRatePlanID == "" {
		return fmt.Errorf("%w: rate_plan_id, room_mapping_id and channel_rate_plan_id required", ErrValidation)
	}
	if err := m.BaseRateModifier.Validate(); err != nil {
		return err
	}
	if m.MinStay != nil && m.MaxStay != nil && *m.MinStay > *m.MaxStay {
		return fmt.Errorf("%w: min stay exceeds max stay", ErrValidation)
	}
	if m.MinOccupancy != nil && m.MaxOccupancy != nil && *m.MinOccupancy > *m.MaxOccupancy {
		return fmt.Errorf("%w: min occupancy exceeds max occupancy", ErrValidation)
	}
	for _, r := range m.Seasonal {
		if err := r.Modifier.Validate(); err != nil {
			return err
		}
		if r.To.Before(r.From) {
			return fmt.Errorf("%w: seasonal rule window inverted", ErrValidation)
		}
	}
	for _, r := range m.DayOfWeek {
		if r.Weekday < 0 || r.Weekday > 6 {
			return fmt.Errorf("%w: day-of-week out of range", ErrValidation)
		}
		if err := r.Modifier.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// StayConstraints is the restriction set pushed to channels after clamping
// PMS input against a rate mapping's limits.
type StayConstraints struct {
	MinStay      *int `json:"min_stay,omitempty"`
	MaxStay      *int `json:"max_stay,omitempty"`
	MinOccupancy *int `json:"min_occupancy,omitempty"`
	MaxOccupancy *int `json:"max_occupancy,omitempty"`
}
