package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"channel_sync/internal/adapters/observability"
	"channel_sync/internal/domain"
)

// configTTLSec bounds staleness of cached configurations; writes invalidate
// eagerly so the TTL only matters across processes.
const configTTLSec = 60

// ConfigService owns channel configuration lifecycle plus the currency and
// language transforms derived from a configuration.
type ConfigService struct {
	repo      domain.ConfigRepository
	cache     domain.Cache
	fx        domain.FXProvider
	translate domain.Translator
	validate  *validator.Validate
}

func NewConfigService(repo domain.ConfigRepository, cache domain.Cache, fx domain.FXProvider, tr domain.Translator) *ConfigService {
	return &ConfigService{
		repo:      repo,
		cache:     cache,
		fx:        fx,
		translate: tr,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func configKey(hotelID string, ch domain.Channel) string {
	return fmt.Sprintf("cfg:%s:%s", hotelID, ch)
}

func (s *ConfigService) check(c *domain.ChannelConfiguration) error {
	if err := s.validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return c.CheckInvariants()
}

func (s *ConfigService) Create(ctx context.Context, c *domain.ChannelConfiguration) error {
	if err := s.check(c); err != nil {
		return err
	}
	if err := s.repo.CreateConfig(ctx, c); err != nil {
		return err
	}
	s.evict(ctx, c.HotelID, c.Channel)
	return nil
}

func (s *ConfigService) Update(ctx context.Context, c *domain.ChannelConfiguration) error {
	if err := s.check(c); err != nil {
		return err
	}
	if err := s.repo.UpdateConfig(ctx, c); err != nil {
		return err
	}
	s.evict(ctx, c.HotelID, c.Channel)
	return nil
}

// Get is the dispatcher's hot path, hence the read-through cache.
func (s *ConfigService) Get(ctx context.Context, hotelID string, ch domain.Channel) (domain.ChannelConfiguration, error) {
	key := configKey(hotelID, ch)
	if s.cache != nil {
		var c domain.ChannelConfiguration
		if ok, err := s.cache.Get(ctx, key, &c); err == nil && ok {
			observability.ObserveCache("config", "hit")
			return c, nil
		}
		observability.ObserveCache("config", "miss")
	}
	c, err := s.repo.GetConfig(ctx, hotelID, ch)
	if err != nil {
		return domain.ChannelConfiguration{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, c, configTTLSec)
	}
	return c, nil
}

func (s *ConfigService) List(ctx context.Context, hotelID string) ([]domain.ChannelConfiguration, error) {
	return s.repo.ListConfigs(ctx, hotelID)
}

func (s *ConfigService) SetConnectionState(ctx context.Context, hotelID string, ch domain.Channel, st domain.ConnectionState) error {
	if err := s.repo.SetConnectionState(ctx, hotelID, ch, st); err != nil {
		return err
	}
	s.evict(ctx, hotelID, ch)
	return nil
}

func (s *ConfigService) evict(ctx context.Context, hotelID string, ch domain.Channel) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, configKey(hotelID, ch))
		observability.ObserveCache("config", "del")
	}
}

// fxTTLSec maps the configured price update frequency to how long a looked
// up FX rate may be reused.
func fxTTLSec(f domain.PriceUpdateFrequency) int {
	switch f {
	case domain.FreqRealTime:
		return 60
	case domain.FreqHourly:
		return 3600
	default:
		return 86400
	}
}

// rate resolves base->target per the configured conversion method.
func (s *ConfigService) rate(ctx context.Context, cfg *domain.ChannelConfiguration, target string) (decimal.Decimal, error) {
	if target == cfg.BaseCurrency {
		return decimal.NewFromInt(1), nil
	}
	if cfg.ConversionMethod == domain.ConvFixed {
		return cfg.FixedRate, nil
	}

	key := fmt.Sprintf("fx:%s:%s", cfg.BaseCurrency, target)
	if s.cache != nil {
		var cached decimal.Decimal
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			observability.ObserveFX("hit")
			return cached, nil
		}
	}
	if s.fx == nil {
		return decimal.Zero, domain.NewSyncError(domain.CodeFXUnavailable, "no fx provider configured")
	}
	r, err := s.fx.Rate(ctx, cfg.BaseCurrency, target)
	if err != nil {
		observability.ObserveFX("error")
		se := domain.NewSyncError(domain.CodeFXUnavailable, err.Error())
		se.Context = map[string]any{"from": cfg.BaseCurrency, "to": target}
		return decimal.Zero, se
	}
	observability.ObserveFX("lookup")
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, r, fxTTLSec(cfg.PriceFrequency))
	}
	return r, nil
}

// Convert turns a base-currency amount into the target currency, applying
// the target's markup and rounding policy. The target must be an active
// supported currency of the configuration.
func (s *ConfigService) Convert(ctx context.Context, cfg *domain.ChannelConfiguration, amount decimal.Decimal, target string) (decimal.Decimal, error) {
	if target == "" {
		target = cfg.BaseCurrency
	}
	cu, ok := cfg.Currency(target)
	if !ok {
		return decimal.Zero, domain.NewSyncError(domain.CodeValidationFailed,
			fmt.Sprintf("currency %s not active on %s", target, cfg.Channel))
	}
	r, err := s.rate(ctx, cfg, target)
	if err != nil {
		return decimal.Zero, err
	}
	out := amount.Mul(r)
	if !cu.Markup.IsZero() {
		out = out.Add(out.Mul(cu.Markup).Div(decimal.NewFromInt(100)))
	}
	switch cu.Rounding {
	case domain.RoundUp:
		out = out.RoundCeil(int32(cu.Decimals))
	case domain.RoundDown:
		out = out.RoundFloor(int32(cu.Decimals))
	case domain.RoundNearest:
		out = out.Round(int32(cu.Decimals))
	}
	return out, nil
}

// Converter binds Convert to a configuration and target currency so rate
// assembly can treat conversion as a single step.
func (s *ConfigService) Converter(cfg *domain.ChannelConfiguration, target string) func(context.Context, decimal.Decimal) (decimal.Decimal, error) {
	return func(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
		return s.Convert(ctx, cfg, amount, target)
	}
}

// Localize picks the text for a requested language from a per-language
// text map, walking the configured fallback chain: requested language, its
// configured fallback, the primary language, then machine translation when
// the language permits it.
func (s *ConfigService) Localize(ctx context.Context, cfg *domain.ChannelConfiguration, lang string, texts map[string]string) (string, error) {
	if lang == "" {
		lang = cfg.PrimaryLanguage
	}
	// Producers may send a bare string instead of a per-language block; it
	// is stored under the empty key and applies to every language.
	if t := texts[""]; t != "" {
		return t, nil
	}
	chain := []string{lang}
	if l, ok := cfg.Language(lang); ok && l.Fallback != "" {
		chain = append(chain, l.Fallback)
	}
	chain = append(chain, cfg.PrimaryLanguage)
	for _, code := range chain {
		if t := texts[code]; t != "" {
			return t, nil
		}
	}
	if l, ok := cfg.Language(lang); ok && l.AutoTranslate && s.translate != nil {
		if src := texts[cfg.PrimaryLanguage]; src != "" {
			t, err := s.translate.Translate(ctx, src, cfg.PrimaryLanguage, lang)
			if err == nil && t != "" {
				return t, nil
			}
		}
	}
	se := domain.NewSyncError(domain.CodeMissingTranslation,
		fmt.Sprintf("no translation for %s", lang))
	se.Channel = cfg.Channel
	return "", se
}

// IsNotFound unwraps repository not-found errors for handlers.
func IsNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
