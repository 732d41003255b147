package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"channel_sync/internal/domain"
)

const dateLayout = "2006-01-02"

// Repo implements the durable store ports over MySQL. One instance is
// shared by the API server and the sync daemon.
type Repo struct {
	db *sql.DB
	// leaseSeconds is the re-lease grace: adapter timeout ceiling plus the
	// 60s crash allowance.
	leaseSeconds int
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db, leaseSeconds: 360}
}

// NewWithLease overrides the lease deadline window; tests use short values.
func NewWithLease(db *sql.DB, lease time.Duration) *Repo {
	s := int(lease.Seconds())
	if s < 1 {
		s = 1
	}
	return &Repo{db: db, leaseSeconds: s}
}

// Enqueue persists an event. When the producer supplied a correlation id,
// a still-pending event with the same coalesce key is replaced in place:
// the later payload wins and the schedule moves to the later of the two.
func (r *Repo) Enqueue(ctx context.Context, ev *domain.UpdateEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.MaxAttempts <= 0 {
		ev.MaxAttempts = domain.DefaultMaxAttempts
	}
	if ev.ScheduledFor.IsZero() {
		ev.ScheduledFor = time.Now().UTC()
	}
	if ev.Source == "" {
		ev.Source = domain.SourceSystem
	}

	channels, _ := json.Marshal(ev.Payload.Channels)
	data, err := json.Marshal(ev.Payload.Data)
	if err != nil {
		return fmt.Errorf("%w: payload not serializable", domain.ErrValidation)
	}
	if len(data) > domain.MaxPayloadBytes {
		return fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrValidation, domain.MaxPayloadBytes)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if ev.CoalesceKey() != "" {
		var existingID string
		var schedFor time.Time
		err := tx.QueryRowContext(ctx, selectCoalesceSQL,
			ev.CorrelationID, ev.Type, ev.Payload.HotelID, ev.Payload.RoomTypeID,
			ev.Payload.DateRange.Start.Format(dateLayout), ev.Payload.DateRange.End.Format(dateLayout),
		).Scan(&existingID, &schedFor)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, coalesceUpdateSQL,
				string(channels), string(data), ev.Priority, ev.ScheduledFor,
				string(ev.Source), ev.BatchID, existingID,
			); err != nil {
				return err
			}
			ev.ID = existingID
			return tx.Commit()
		case errors.Is(err, sql.ErrNoRows):
			// fall through to insert
		default:
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, insertEventSQL,
		ev.ID, string(ev.Type), string(ev.Resource()), ev.Priority,
		ev.Payload.HotelID, ev.Payload.RoomTypeID,
		ev.Payload.DateRange.Start.Format(dateLayout), ev.Payload.DateRange.End.Format(dateLayout),
		string(channels), string(data),
		ev.MaxAttempts, ev.ScheduledFor,
		string(ev.Source), ev.CorrelationID, ev.BatchID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Lease atomically claims up to limit due events for a worker. Expired
// leases are recovered first (counting an attempt), then candidates are
// picked by priority and age, skipping anything that overlaps an in-flight
// or older pending event on the same (hotel, resource).
func (r *Repo) Lease(ctx context.Context, workerID string, limit int, types []domain.EventType) ([]domain.UpdateEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, recoverExpiredSQL); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, expireExhaustedSQL); err != nil {
		return nil, err
	}

	q := leaseSelectPrefix
	args := []any{}
	if len(types) > 0 {
		ph := make([]string, len(types))
		for i, t := range types {
			ph[i] = "?"
			args = append(args, string(t))
		}
		q += " AND e.event_type IN (" + strings.Join(ph, ",") + ")"
	}
	q += leaseSelectSuffix
	args = append(args, limit)

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, leaseMarkSQL, workerID, r.leaseSeconds, id); err != nil {
			return nil, err
		}
	}

	out := make([]domain.UpdateEvent, 0, len(ids))
	for _, id := range ids {
		ev, err := scanEvent(tx.QueryRowContext(ctx, getEventSQL, id))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Complete moves a processing event to its terminal success state,
// appending this attempt's results after any recorded by a prior lease.
func (r *Repo) Complete(ctx context.Context, eventID string, results []domain.ChannelResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	merged, err := mergeResults(ctx, tx, eventID, results, "processing")
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, completeSQL, merged, eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTerminal
	}
	return tx.Commit()
}

// Fail records an attempt error. Retryable failures with attempts left go
// back to pending with a linear backoff (delay x attempts); everything else
// is terminal.
func (r *Repo) Fail(ctx context.Context, eventID string, attemptErr domain.AttemptError, backoff time.Duration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	var errorsRaw, resultsRaw []byte
	if err := tx.QueryRowContext(ctx, failLoadSQL, eventID).
		Scan(&attempts, &maxAttempts, &errorsRaw, &resultsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTerminal
		}
		return err
	}

	attempts++
	attemptErr.Attempt = attempts
	if attemptErr.At.IsZero() {
		attemptErr.At = time.Now().UTC()
	}
	var errLog []domain.AttemptError
	_ = json.Unmarshal(errorsRaw, &errLog)
	errLog = append(errLog, attemptErr)
	errJSON, _ := json.Marshal(errLog)

	now := time.Now().UTC()
	retryAt := now.Add(backoff * time.Duration(attempts))
	if attemptErr.Retryable && attempts < maxAttempts {
		if _, err := tx.ExecContext(ctx, failRetrySQL, attempts, string(errJSON), retryAt, retryAt, eventID); err != nil {
			return err
		}
	} else {
		if _, err := tx.ExecContext(ctx, failTerminalSQL, attempts, string(errJSON), retryAt, eventID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Cancel terminates a pending or processing event. Workers observe the
// status flip between channel calls and short-circuit.
func (r *Repo) Cancel(ctx context.Context, eventID, reason string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var attempts int
	var errorsRaw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT attempts, errors FROM sync_events WHERE id = ? AND status IN ('pending','processing') FOR UPDATE`,
		eventID).Scan(&attempts, &errorsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTerminal
	}
	if err != nil {
		return err
	}

	var errLog []domain.AttemptError
	_ = json.Unmarshal(errorsRaw, &errLog)
	errLog = append(errLog, domain.AttemptError{
		Attempt: attempts,
		At:      time.Now().UTC(),
		Code:    domain.CodeCancelled,
		Message: reason,
	})
	errJSON, _ := json.Marshal(errLog)

	res, err := tx.ExecContext(ctx, cancelSQL, string(errJSON), eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTerminal
	}
	return tx.Commit()
}

// AppendResults flushes partial per-channel results without changing event
// status; used when a worker observes cancellation mid-event.
func (r *Repo) AppendResults(ctx context.Context, eventID string, results []domain.ChannelResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	merged, err := mergeResults(ctx, tx, eventID, results, "")
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, appendResultsSQL, merged, eventID); err != nil {
		return err
	}
	return tx.Commit()
}

func mergeResults(ctx context.Context, tx *sql.Tx, eventID string, add []domain.ChannelResult, requireStatus string) (string, error) {
	q := `SELECT results FROM sync_events WHERE id = ?`
	args := []any{eventID}
	if requireStatus != "" {
		q += ` AND status = ?`
		args = append(args, requireStatus)
	}
	q += ` FOR UPDATE`

	var raw []byte
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrTerminal
		}
		return "", err
	}
	var existing []domain.ChannelResult
	_ = json.Unmarshal(raw, &existing)
	existing = append(existing, add...)
	b, _ := json.Marshal(existing)
	return string(b), nil
}

func (r *Repo) Get(ctx context.Context, eventID string) (domain.UpdateEvent, error) {
	return scanEvent(r.db.QueryRowContext(ctx, getEventSQL, eventID))
}

func (r *Repo) List(ctx context.Context, f domain.EventFilter) ([]domain.UpdateEvent, error) {
	var where []string
	var args []any
	if f.HotelID != "" {
		where = append(where, "hotel_id = ?")
		args = append(args, f.HotelID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		where = append(where, "event_type = ?")
		args = append(args, string(f.Type))
	}
	if f.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, f.BatchID)
	}
	if f.CorrelationID != "" {
		where = append(where, "correlation_id = ?")
		args = append(args, f.CorrelationID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + eventColumns + ` FROM sync_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	return r.queryEvents(ctx, q, args...)
}

func (r *Repo) Batch(ctx context.Context, batchID string) ([]domain.UpdateEvent, error) {
	return r.queryEvents(ctx, batchEventsSQL, batchID)
}

func (r *Repo) ListRetryable(ctx context.Context, limit int) ([]domain.UpdateEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, listRetryableSQL, limit)
}

// PromoteRetryable returns eligible failed events to the pending set.
func (r *Repo) PromoteRetryable(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	res, err := r.db.ExecContext(ctx, promoteRetryableSQL, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reap deletes terminal events past the retention window.
func (r *Repo) Reap(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, reapSQL, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) queryEvents(ctx context.Context, q string, args ...any) ([]domain.UpdateEvent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UpdateEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.UpdateEvent, error) {
	var ev domain.UpdateEvent
	var (
		evType, resource, status, source    string
		roomType, workerID, corrID, batchID sql.NullString
		dateStart, dateEnd                  time.Time
		channelsRaw, dataRaw                []byte
		errorsRaw, resultsRaw               []byte
		nextRetry, started, completed       sql.NullTime
	)
	if err := row.Scan(
		&ev.ID, &evType, &resource, &ev.Priority, &status,
		&ev.Payload.HotelID, &roomType, &dateStart, &dateEnd, &channelsRaw, &dataRaw,
		&ev.Attempts, &ev.MaxAttempts, &nextRetry, &ev.ScheduledFor,
		&started, &completed, &ev.DurationMS, &workerID,
		&errorsRaw, &resultsRaw, &source, &corrID, &batchID,
		&ev.CreatedAt, &ev.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UpdateEvent{}, domain.ErrNotFound
		}
		return domain.UpdateEvent{}, err
	}

	ev.Type = domain.EventType(evType)
	ev.Status = domain.EventStatus(status)
	ev.Source = domain.EventSource(source)
	ev.Payload.RoomTypeID = roomType.String
	ev.WorkerID = workerID.String
	ev.CorrelationID = corrID.String
	ev.BatchID = batchID.String

	ev.Payload.DateRange.Start = dateStart
	ev.Payload.DateRange.End = dateEnd
	if nextRetry.Valid {
		t := nextRetry.Time
		ev.NextRetryAt = &t
	}
	if started.Valid {
		t := started.Time
		ev.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		ev.CompletedAt = &t
	}
	_ = json.Unmarshal(channelsRaw, &ev.Payload.Channels)
	_ = json.Unmarshal(dataRaw, &ev.Payload.Data)
	_ = json.Unmarshal(errorsRaw, &ev.Errors)
	_ = json.Unmarshal(resultsRaw, &ev.Results)
	return ev, nil
}
