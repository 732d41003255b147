package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"channel_sync/internal/domain"
)

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func jsonOrNil(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

// isDuplicate detects MySQL unique-key violations (errno 1062).
func isDuplicate(err error) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func (r *Repo) CreateRoomMapping(ctx context.Context, m *domain.RoomMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var mod any
	if m.RateModifier != nil {
		mod = jsonOrNil(m.RateModifier)
	}
	_, err := r.db.ExecContext(ctx, insertRoomMappingSQL,
		m.ID, m.HotelID, m.RoomTypeID, string(m.Channel), m.ChannelRoomID, m.ChannelRoomName,
		m.IsActive, m.Commission, mod, nullInt(m.MinAdvanceDays), nullInt(m.MaxAdvanceDays),
		jsonOrNil(m.ChannelSpecific),
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: active mapping already exists for this room/channel", domain.ErrConflict)
	}
	return err
}

func (r *Repo) UpdateRoomMapping(ctx context.Context, m *domain.RoomMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	var mod any
	if m.RateModifier != nil {
		mod = jsonOrNil(m.RateModifier)
	}
	res, err := r.db.ExecContext(ctx, updateRoomMappingSQL,
		m.ChannelRoomID, m.ChannelRoomName, m.IsActive, m.Commission,
		mod, nullInt(m.MinAdvanceDays), nullInt(m.MaxAdvanceDays),
		jsonOrNil(m.ChannelSpecific), m.ID,
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: active mapping already exists for this room/channel", domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetRoomMapping(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetRoomMapping(ctx context.Context, id string) (domain.RoomMapping, error) {
	return scanRoomMapping(r.db.QueryRowContext(ctx, getRoomMappingSQL, id))
}

func (r *Repo) ActiveRoomMappings(ctx context.Context, hotelID, roomTypeID string) ([]domain.RoomMapping, error) {
	return r.queryRoomMappings(ctx, activeRoomMappingsSQL, hotelID, roomTypeID)
}

func (r *Repo) ListRoomMappings(ctx context.Context, hotelID string) ([]domain.RoomMapping, error) {
	return r.queryRoomMappings(ctx, listRoomMappingsSQL, hotelID)
}

func (r *Repo) queryRoomMappings(ctx context.Context, q string, args ...any) ([]domain.RoomMapping, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomMapping
	for rows.Next() {
		m, err := scanRoomMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanRoomMapping(row rowScanner) (domain.RoomMapping, error) {
	var m domain.RoomMapping
	var channel, commission string
	var name sql.NullString
	var modRaw, specificRaw []byte
	var minAdv, maxAdv sql.NullInt64
	if err := row.Scan(
		&m.ID, &m.HotelID, &m.RoomTypeID, &channel, &m.ChannelRoomID, &name,
		&m.IsActive, &commission, &modRaw, &minAdv, &maxAdv,
		&specificRaw, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RoomMapping{}, domain.ErrNotFound
		}
		return domain.RoomMapping{}, err
	}
	m.Channel = domain.Channel(channel)
	m.ChannelRoomName = name.String
	m.Commission, _ = decimal.NewFromString(commission)
	if len(modRaw) > 0 {
		var mod domain.RateModifier
		if err := json.Unmarshal(modRaw, &mod); err == nil {
			m.RateModifier = &mod
		}
	}
	if minAdv.Valid {
		v := int(minAdv.Int64)
		m.MinAdvanceDays = &v
	}
	if maxAdv.Valid {
		v := int(maxAdv.Int64)
		m.MaxAdvanceDays = &v
	}
	_ = json.Unmarshal(specificRaw, &m.ChannelSpecific)
	return m, nil
}

func (r *Repo) CreateRateMapping(ctx context.Context, m *domain.RateMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, insertRateMappingSQL,
		m.ID, m.RatePlanID, m.RoomMappingID, m.ChannelRatePlanID, m.IsActive,
		jsonOrNil(m.BaseRateModifier), m.MealPlan, m.CancellationPolicy, m.FreeCancelHours,
		nullInt(m.MinAdvanceDays), nullInt(m.MaxAdvanceDays), nullInt(m.MinStay), nullInt(m.MaxStay),
		nullInt(m.MinOccupancy), nullInt(m.MaxOccupancy),
		jsonOrNil(m.Seasonal), jsonOrNil(m.DayOfWeek),
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: channel rate plan already mapped for this room mapping", domain.ErrConflict)
	}
	return err
}

func (r *Repo) UpdateRateMapping(ctx context.Context, m *domain.RateMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, updateRateMappingSQL,
		m.ChannelRatePlanID, m.IsActive, jsonOrNil(m.BaseRateModifier),
		m.MealPlan, m.CancellationPolicy, m.FreeCancelHours,
		nullInt(m.MinAdvanceDays), nullInt(m.MaxAdvanceDays), nullInt(m.MinStay), nullInt(m.MaxStay),
		nullInt(m.MinOccupancy), nullInt(m.MaxOccupancy),
		jsonOrNil(m.Seasonal), jsonOrNil(m.DayOfWeek), m.ID,
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: channel rate plan already mapped for this room mapping", domain.ErrConflict)
	}
	return err
}

func (r *Repo) GetRateMapping(ctx context.Context, id string) (domain.RateMapping, error) {
	return scanRateMapping(r.db.QueryRowContext(ctx, getRateMappingSQL, id))
}

func (r *Repo) ActiveRateMappings(ctx context.Context, roomMappingID string) ([]domain.RateMapping, error) {
	rows, err := r.db.QueryContext(ctx, activeRateMappingsSQL, roomMappingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RateMapping
	for rows.Next() {
		m, err := scanRateMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanRateMapping(row rowScanner) (domain.RateMapping, error) {
	var m domain.RateMapping
	var modRaw, seasonalRaw, dowRaw []byte
	var mealPlan, cancelPolicy sql.NullString
	var minAdv, maxAdv, minStay, maxStay, minOcc, maxOcc sql.NullInt64
	if err := row.Scan(
		&m.ID, &m.RatePlanID, &m.RoomMappingID, &m.ChannelRatePlanID, &m.IsActive,
		&modRaw, &mealPlan, &cancelPolicy, &m.FreeCancelHours,
		&minAdv, &maxAdv, &minStay, &maxStay,
		&minOcc, &maxOcc, &seasonalRaw, &dowRaw,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RateMapping{}, domain.ErrNotFound
		}
		return domain.RateMapping{}, err
	}
	m.MealPlan = mealPlan.String
	m.CancellationPolicy = cancelPolicy.String
	_ = json.Unmarshal(modRaw, &m.BaseRateModifier)
	_ = json.Unmarshal(seasonalRaw, &m.Seasonal)
	_ = json.Unmarshal(dowRaw, &m.DayOfWeek)
	for p, v := range map[**int]sql.NullInt64{
		&m.MinAdvanceDays: minAdv, &m.MaxAdvanceDays: maxAdv,
		&m.MinStay: minStay, &m.MaxStay: maxStay,
		&m.MinOccupancy: minOcc, &m.MaxOccupancy: maxOcc,
	} {
		if v.Valid {
			n := int(v.Int64)
			*p = &n
		}
	}
	return m, nil
}
