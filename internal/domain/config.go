package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ConnectionState string

const (
	ConnConnected    ConnectionState = "connected"
	ConnDisconnected ConnectionState = "disconnected"
	ConnError        ConnectionState = "error"
	ConnTesting      ConnectionState = "testing"
)

type ConversionMethod string

const (
	ConvLive  ConversionMethod = "live_rate"
	ConvFixed ConversionMethod = "fixed_rate"
	ConvDaily ConversionMethod = "daily_rate"
)

type RoundingPolicy string

const (
	RoundNone    RoundingPolicy = "none"
	RoundUp      RoundingPolicy = "up"
	RoundDown    RoundingPolicy = "down"
	RoundNearest RoundingPolicy = "nearest"
)

type PriceUpdateFrequency string

const (
	FreqRealTime PriceUpdateFrequency = "real_time"
	FreqHourly   PriceUpdateFrequency = "hourly"
	FreqDaily    PriceUpdateFrequency = "daily"
	FreqManual   PriceUpdateFrequency = "manual"
)

// LanguageOption is one entry of a configuration's supported language list.
type LanguageOption struct {
	Code          string `json:"code" validate:"required,min=2,max=5"`
	ChannelCode   string `json:"channel_code"`
	Quality       string `json:"quality" validate:"omitempty,oneof=professional machine community"`
	Fallback      string `json:"fallback,omitempty"`
	AutoTranslate bool   `json:"auto_translate"`
	Active        bool   `json:"active"`
}

// CurrencyOption is one entry of a configuration's supported currency list.
type CurrencyOption struct {
	Code     string          `json:"code" validate:"required,len=3"`
	Markup   decimal.Decimal `json:"markup"` // percent, [-50,100]
	Rounding RoundingPolicy  `json:"rounding" validate:"oneof=none up down nearest"`
	Decimals int             `json:"decimals" validate:"min=0,max=4"`
	Active   bool            `json:"active"`
}

// Credentials are the per-channel API secrets handed to adapters. Never
// logged.
type Credentials struct {
	APIKey    string `json:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	HotelCode string `json:"hotel_code,omitempty"`
}

// SyncSchedule holds per-resource sync intervals in minutes; zero disables
// scheduled pushes for that resource.
type SyncSchedule struct {
	RatesMinutes        int `json:"rates_minutes" validate:"min=0"`
	AvailabilityMinutes int `json:"availability_minutes" validate:"min=0"`
	RestrictionsMinutes int `json:"restrictions_minutes" validate:"min=0"`
	ContentMinutes      int `json:"content_minutes" validate:"min=0"`
}

// ContentRules validate outgoing content payloads.
type ContentRules struct {
	MinDescriptionLen int `json:"min_description_len" validate:"min=0"`
	MaxDescriptionLen int `json:"max_description_len" validate:"min=0"`
	MinImages         int `json:"min_images" validate:"min=0"`
}

// ChannelConfiguration is the per (hotel, channel) integration record.
type ChannelConfiguration struct {
	ID      string  `json:"id"`
	HotelID string  `json:"hotel_id" validate:"required"`
	Channel Channel `json:"channel" validate:"required"`

	PrimaryLanguage string           `json:"primary_language" validate:"required"`
	Languages       []LanguageOption `json:"languages" validate:"min=1,dive"`
	BaseCurrency    string           `json:"base_currency" validate:"required,len=3"`
	Currencies      []CurrencyOption `json:"currencies" validate:"min=1,dive"`

	ConversionMethod ConversionMethod     `json:"conversion_method" validate:"oneof=live_rate fixed_rate daily_rate"`
	FixedRate        decimal.Decimal      `json:"fixed_rate"` // required > 0 when method is fixed_rate
	PriceFrequency   PriceUpdateFrequency `json:"price_frequency" validate:"oneof=real_time hourly daily manual"`

	Credentials   Credentials  `json:"credentials"`
	Endpoint      string       `json:"endpoint" validate:"omitempty,url"`
	BatchSize     int          `json:"batch_size" validate:"min=1,max=1000"`
	TimeoutMS     int          `json:"timeout_ms" validate:"min=5000,max=300000"`
	RetryAttempts int          `json:"retry_attempts" validate:"min=0,max=10"`
	RetryDelayMS  int          `json:"retry_delay_ms" validate:"min=0"`
	Schedule      SyncSchedule `json:"schedule"`

	Active          bool            `json:"active"`
	ConnectionState ConnectionState `json:"connection_state"`
	ContentRules    ContentRules    `json:"content_rules"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckInvariants enforces the cross-field rules the struct tags cannot
// express. Callers run the validator first.
func (c *ChannelConfiguration) CheckInvariants() error {
	if _, err := ParseChannel(string(c.Channel)); err != nil {
		return err
	}
	var primaryOK bool
	for _, l := range c.Languages {
		if l.Active && l.Code == c.PrimaryLanguage {
			primaryOK = true
			break
		}
	}
	if !primaryOK {
		return fmt.Errorf("%w: primary language must be active in supported languages", ErrValidation)
	}
	var baseOK bool
	for _, cu := range c.Currencies {
		if cu.Active && cu.Code == c.BaseCurrency {
			baseOK = true
		}
		lo := decimal.NewFromInt(-50)
		hi := decimal.NewFromInt(100)
		if cu.Markup.LessThan(lo) || cu.Markup.GreaterThan(hi) {
			return fmt.Errorf("%w: markup for %s must be within [-50,100]", ErrValidation, cu.Code)
		}
	}
	if !baseOK {
		return fmt.Errorf("%w: base currency must be active in supported currencies", ErrValidation)
	}
	if c.ConversionMethod == ConvFixed && !c.FixedRate.IsPositive() {
		return fmt.Errorf("%w: fixed_rate conversion requires fixed_rate > 0", ErrValidation)
	}
	return nil
}

// Currency returns the supported currency entry for code, if active.
func (c *ChannelConfiguration) Currency(code string) (CurrencyOption, bool) {
	for _, cu := range c.Currencies {
		if cu.Active && cu.Code == code {
			return cu, true
		}
	}
	return CurrencyOption{}, false
}

// Language returns the supported language entry for code, if active.
func (c *ChannelConfiguration) Language(code string) (LanguageOption, bool) {
	for _, l := range c.Languages {
		if l.Active && l.Code == code {
			return l, true
		}
	}
	return LanguageOption{}, false
}

// Timeout returns the per-call adapter timeout as a duration.
func (c *ChannelConfiguration) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RetryDelay returns the configured base delay between attempts.
func (c *ChannelConfiguration) RetryDelay() time.Duration {
	if c.RetryDelayMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Dispatchable reports whether the dispatcher should push to this channel
// at all: the record is active and the connection is not administratively
// severed. "error" still dispatches so a recovered channel heals itself.
func (c *ChannelConfiguration) Dispatchable() bool {
	return c.Active && c.ConnectionState != ConnDisconnected
}
