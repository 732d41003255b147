package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"channel_sync/internal/domain"
)

// emaAlpha approximates an average over the last 100 calls.
const emaAlpha = 2.0 / 101.0

// uptimeWindow is the rolling window for the uptime percentage.
const uptimeWindow = 24 * time.Hour

// hourBucket aggregates one hour of adapter call outcomes.
type hourBucket struct {
	Hour    int64 `json:"h"` // unix hour
	Total   int64 `json:"t"`
	Success int64 `json:"s"`
}

// Record folds one adapter call outcome into the (hotel, channel) counters.
// Skipped results touch last_sync only: they count toward neither totals
// nor uptime.
func (r *Repo) Record(ctx context.Context, s domain.HealthSample) error {
	if s.At.IsZero() {
		s.At = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		total, success, failed int64
		avgMS                  float64
		bucketsRaw, lastRaw    []byte
		lastCode               string
		lastMsg                sql.NullString
		lastAt                 sql.NullTime
	)
	err = tx.QueryRowContext(ctx, healthLoadSQL, s.HotelID, string(s.Channel)).
		Scan(&total, &success, &failed, &avgMS, &bucketsRaw, &lastRaw, &lastCode, &lastMsg, &lastAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var buckets []hourBucket
	_ = json.Unmarshal(bucketsRaw, &buckets)
	lastSync := map[domain.Resource]time.Time{}
	_ = json.Unmarshal(lastRaw, &lastSync)

	lastSync[s.Resource] = s.At

	if s.Status != domain.ResultSkipped {
		total++
		if s.Status == domain.ResultSuccess {
			success++
		} else {
			failed++
		}
		if s.DurationMS > 0 {
			if avgMS == 0 {
				avgMS = float64(s.DurationMS)
			} else {
				avgMS += emaAlpha * (float64(s.DurationMS) - avgMS)
			}
		}
		buckets = foldBucket(buckets, s)
	}
	if s.Status == domain.ResultFailed {
		lastCode = s.ErrorCode
		lastMsg = sql.NullString{String: s.ErrorMsg, Valid: true}
		lastAt = sql.NullTime{Time: s.At, Valid: true}
	}

	uptime := uptimeOf(buckets, s.At)
	bj, _ := json.Marshal(buckets)
	lj, _ := json.Marshal(lastSync)

	var msg, at any
	if lastMsg.Valid {
		msg = lastMsg.String
	}
	if lastAt.Valid {
		at = lastAt.Time
	}
	if _, err := tx.ExecContext(ctx, healthUpsertSQL,
		s.HotelID, string(s.Channel), total, success, failed,
		avgMS, uptime, string(bj), string(lj),
		lastCode, msg, at,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func foldBucket(buckets []hourBucket, s domain.HealthSample) []hourBucket {
	hour := s.At.Unix() / 3600
	cutoff := hour - int64(uptimeWindow/time.Hour)
	out := buckets[:0]
	for _, b := range buckets {
		if b.Hour >= cutoff {
			out = append(out, b)
		}
	}
	for i := range out {
		if out[i].Hour == hour {
			out[i].Total++
			if s.Status == domain.ResultSuccess {
				out[i].Success++
			}
			return out
		}
	}
	b := hourBucket{Hour: hour, Total: 1}
	if s.Status == domain.ResultSuccess {
		b.Success = 1
	}
	return append(out, b)
}

func uptimeOf(buckets []hourBucket, now time.Time) float64 {
	cutoff := now.Unix()/3600 - int64(uptimeWindow/time.Hour)
	var total, success int64
	for _, b := range buckets {
		if b.Hour >= cutoff {
			total += b.Total
			success += b.Success
		}
	}
	if total == 0 {
		return 100
	}
	return 100 * float64(success) / float64(total)
}

func (r *Repo) Get(ctx context.Context, hotelID string, ch domain.Channel) (domain.SyncHealth, error) {
	return scanHealth(r.db.QueryRowContext(ctx, getHealthSQL, hotelID, string(ch)))
}

func (r *Repo) List(ctx context.Context, hotelID string) ([]domain.SyncHealth, error) {
	rows, err := r.db.QueryContext(ctx, listHealthSQL, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SyncHealth
	for rows.Next() {
		h, err := scanHealth(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHealth(row rowScanner) (domain.SyncHealth, error) {
	var h domain.SyncHealth
	var channel string
	var lastRaw []byte
	var lastMsg sql.NullString
	var lastAt sql.NullTime
	if err := row.Scan(
		&h.HotelID, &channel, &h.TotalSyncs, &h.SuccessfulSyncs, &h.FailedSyncs,
		&h.AvgResponseMS, &h.UptimePercent, &lastRaw,
		&h.LastErrorCode, &lastMsg, &lastAt, &h.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SyncHealth{}, domain.ErrNotFound
		}
		return domain.SyncHealth{}, err
	}
	h.Channel = domain.Channel(channel)
	h.LastErrorMessage = lastMsg.String
	if lastAt.Valid {
		t := lastAt.Time
		h.LastErrorAt = &t
	}
	h.LastSync = map[domain.Resource]time.Time{}
	_ = json.Unmarshal(lastRaw, &h.LastSync)
	return h, nil
}
