package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"channel_sync/internal/domain"
)

func (r *Repo) CreateConfig(ctx context.Context, c *domain.ChannelConfiguration) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ConnectionState == "" {
		c.ConnectionState = domain.ConnTesting
	}
	_, err := r.db.ExecContext(ctx, insertConfigSQL,
		c.ID, c.HotelID, string(c.Channel), c.PrimaryLanguage, jsonOrNil(c.Languages),
		c.BaseCurrency, jsonOrNil(c.Currencies), string(c.ConversionMethod), c.FixedRate,
		string(c.PriceFrequency), jsonOrNil(c.Credentials), c.Endpoint,
		c.BatchSize, c.TimeoutMS, c.RetryAttempts, c.RetryDelayMS,
		jsonOrNil(c.Schedule), c.Active, string(c.ConnectionState), jsonOrNil(c.ContentRules),
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: configuration already exists for (%s, %s)", domain.ErrConflict, c.HotelID, c.Channel)
	}
	return err
}

func (r *Repo) UpdateConfig(ctx context.Context, c *domain.ChannelConfiguration) error {
	res, err := r.db.ExecContext(ctx, updateConfigSQL,
		c.PrimaryLanguage, jsonOrNil(c.Languages), c.BaseCurrency, jsonOrNil(c.Currencies),
		string(c.ConversionMethod), c.FixedRate, string(c.PriceFrequency),
		jsonOrNil(c.Credentials), c.Endpoint, c.BatchSize, c.TimeoutMS,
		c.RetryAttempts, c.RetryDelayMS, jsonOrNil(c.Schedule), c.Active,
		jsonOrNil(c.ContentRules), c.HotelID, string(c.Channel),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetConfig(ctx, c.HotelID, c.Channel); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetConfig(ctx context.Context, hotelID string, ch domain.Channel) (domain.ChannelConfiguration, error) {
	return scanConfig(r.db.QueryRowContext(ctx, getConfigSQL, hotelID, string(ch)))
}

func (r *Repo) ListConfigs(ctx context.Context, hotelID string) ([]domain.ChannelConfiguration, error) {
	rows, err := r.db.QueryContext(ctx, listConfigsSQL, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChannelConfiguration
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) SetConnectionState(ctx context.Context, hotelID string, ch domain.Channel, s domain.ConnectionState) error {
	_, err := r.db.ExecContext(ctx, setConnectionStateSQL, string(s), hotelID, string(ch))
	return err
}

func scanConfig(row rowScanner) (domain.ChannelConfiguration, error) {
	var c domain.ChannelConfiguration
	var channel, method, freq, state, fixedRate string
	var langsRaw, currsRaw, credsRaw, schedRaw, rulesRaw []byte
	var endpoint sql.NullString
	if err := row.Scan(
		&c.ID, &c.HotelID, &channel, &c.PrimaryLanguage, &langsRaw,
		&c.BaseCurrency, &currsRaw, &method, &fixedRate, &freq,
		&credsRaw, &endpoint, &c.BatchSize, &c.TimeoutMS, &c.RetryAttempts,
		&c.RetryDelayMS, &schedRaw, &c.Active, &state, &rulesRaw,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ChannelConfiguration{}, domain.ErrNotFound
		}
		return domain.ChannelConfiguration{}, err
	}
	c.Channel = domain.Channel(channel)
	c.ConversionMethod = domain.ConversionMethod(method)
	c.PriceFrequency = domain.PriceUpdateFrequency(freq)
	c.ConnectionState = domain.ConnectionState(state)
	c.Endpoint = endpoint.String
	c.FixedRate, _ = decimal.NewFromString(fixedRate)
	_ = json.Unmarshal(langsRaw, &c.Languages)
	_ = json.Unmarshal(currsRaw, &c.Currencies)
	_ = json.Unmarshal(credsRaw, &c.Credentials)
	_ = json.Unmarshal(schedRaw, &c.Schedule)
	_ = json.Unmarshal(rulesRaw, &c.ContentRules)
	return c, nil
}
