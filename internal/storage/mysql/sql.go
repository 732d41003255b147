package mysql

// ---------------------------------------------------------------------------
// EVENT QUEUE
// ---------------------------------------------------------------------------

const insertEventSQL = `
INSERT INTO sync_events
  (id, event_type, resource, priority, status,
   hotel_id, room_type_id, date_start, date_end, channels, data,
   attempts, max_attempts, next_retry_at, scheduled_for,
   errors, results, source, correlation_id, batch_id,
   created_at, updated_at)
VALUES
  (?, ?, ?, ?, 'pending',
   ?, ?, ?, ?, ?, ?,
   0, ?, NULL, ?,
   '[]', '[]', ?, ?, ?,
   NOW(6), NOW(6))
`

const selectCoalesceSQL = `
SELECT id, scheduled_for
FROM sync_events
WHERE correlation_id = ? AND event_type = ? AND hotel_id = ?
  AND room_type_id = ? AND date_start = ? AND date_end = ?
  AND status = 'pending'
FOR UPDATE
`

// Coalescing replaces the pending payload and keeps the later schedule.
const coalesceUpdateSQL = `
UPDATE sync_events
SET channels = ?, data = ?, priority = ?,
    scheduled_for = GREATEST(scheduled_for, ?),
    source = ?, batch_id = ?, updated_at = NOW(6)
WHERE id = ?
`

// Expired leases are recovered before each lease cycle. Recovery counts as
// a spent attempt.
const recoverExpiredSQL = `
UPDATE sync_events
SET status = 'pending', attempts = attempts + 1, worker_id = NULL,
    lease_deadline = NULL, updated_at = NOW(6)
WHERE status = 'processing' AND lease_deadline < NOW(6)
  AND attempts + 1 < max_attempts
`

const expireExhaustedSQL = `
UPDATE sync_events
SET status = 'failed', attempts = attempts + 1, worker_id = NULL,
    lease_deadline = NULL, updated_at = NOW(6)
WHERE status = 'processing' AND lease_deadline < NOW(6)
  AND attempts + 1 >= max_attempts
`

// Candidate selection: pending, due, and not overlapping any in-flight or
// earlier pending event on the same (hotel, resource). The second arm of the
// exclusion keeps producer order for overlapping date windows.
const leaseSelectPrefix = `
SELECT e.id
FROM sync_events e
WHERE e.status = 'pending' AND e.scheduled_for <= NOW(6)
  AND NOT EXISTS (
    SELECT 1 FROM sync_events p
    WHERE p.hotel_id = e.hotel_id AND p.resource = e.resource
      AND p.id <> e.id
      AND (p.status = 'processing'
           OR (p.status = 'pending' AND p.created_at < e.created_at))
      AND p.date_start <= e.date_end AND p.date_end >= e.date_start
  )
`

const leaseSelectSuffix = `
ORDER BY e.priority ASC, e.created_at ASC
LIMIT ?
FOR UPDATE SKIP LOCKED
`

const leaseMarkSQL = `
UPDATE sync_events
SET status = 'processing', worker_id = ?, started_at = NOW(6),
    lease_deadline = DATE_ADD(NOW(6), INTERVAL ? SECOND), updated_at = NOW(6)
WHERE id = ? AND status = 'pending'
`

const completeSQL = `
UPDATE sync_events
SET status = 'completed', attempts = attempts + 1, completed_at = NOW(6),
    duration_ms = TIMESTAMPDIFF(MICROSECOND, started_at, NOW(6)) DIV 1000,
    results = ?, worker_id = worker_id, lease_deadline = NULL,
    updated_at = NOW(6)
WHERE id = ? AND status = 'processing'
`

const failLoadSQL = `
SELECT attempts, max_attempts, errors, results
FROM sync_events
WHERE id = ? AND status = 'processing'
FOR UPDATE
`

const failRetrySQL = `
UPDATE sync_events
SET status = 'pending', attempts = ?, errors = ?,
    next_retry_at = ?, scheduled_for = ?, worker_id = NULL,
    lease_deadline = NULL, updated_at = NOW(6)
WHERE id = ?
`

const failTerminalSQL = `
UPDATE sync_events
SET status = 'failed', attempts = ?, errors = ?,
    next_retry_at = ?, completed_at = NOW(6),
    duration_ms = TIMESTAMPDIFF(MICROSECOND, started_at, NOW(6)) DIV 1000,
    worker_id = NULL, lease_deadline = NULL, updated_at = NOW(6)
WHERE id = ?
`

const cancelSQL = `
UPDATE sync_events
SET status = 'cancelled', errors = ?, completed_at = NOW(6),
    worker_id = NULL, lease_deadline = NULL, updated_at = NOW(6)
WHERE id = ? AND status IN ('pending', 'processing')
`

const appendResultsSQL = `
UPDATE sync_events
SET results = ?, updated_at = NOW(6)
WHERE id = ?
`

const eventColumns = `
  id, event_type, resource, priority, status,
  hotel_id, room_type_id, date_start, date_end, channels, data,
  attempts, max_attempts, next_retry_at, scheduled_for,
  started_at, completed_at, duration_ms, worker_id,
  errors, results, source, correlation_id, batch_id,
  created_at, updated_at
`

const getEventSQL = `SELECT ` + eventColumns + ` FROM sync_events WHERE id = ?`

const batchEventsSQL = `SELECT ` + eventColumns + ` FROM sync_events WHERE batch_id = ? ORDER BY created_at ASC`

const listRetryableSQL = `SELECT ` + eventColumns + `
FROM sync_events
WHERE status = 'failed' AND attempts < max_attempts AND next_retry_at <= NOW(6)
ORDER BY next_retry_at ASC
LIMIT ?`

const promoteRetryableSQL = `
UPDATE sync_events
SET status = 'pending', updated_at = NOW(6)
WHERE status = 'failed' AND attempts < max_attempts AND next_retry_at <= NOW(6)
LIMIT ?
`

const reapSQL = `
DELETE FROM sync_events
WHERE status IN ('completed', 'cancelled') AND updated_at < ?
LIMIT 5000
`

// ---------------------------------------------------------------------------
// ROOM / RATE MAPPINGS
// ---------------------------------------------------------------------------

const insertRoomMappingSQL = `
INSERT INTO room_mappings
  (id, hotel_id, room_type_id, channel, channel_room_id, channel_room_name,
   is_active, commission, rate_modifier, min_advance_days, max_advance_days,
   channel_specific, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6), NOW(6))
`

const updateRoomMappingSQL = `
UPDATE room_mappings
SET channel_room_id = ?, channel_room_name = ?, is_active = ?, commission = ?,
    rate_modifier = ?, min_advance_days = ?, max_advance_days = ?,
    channel_specific = ?, updated_at = NOW(6)
WHERE id = ?
`

const roomMappingColumns = `
  id, hotel_id, room_type_id, channel, channel_room_id, channel_room_name,
  is_active, commission, rate_modifier, min_advance_days, max_advance_days,
  channel_specific, created_at, updated_at
`

const getRoomMappingSQL = `SELECT ` + roomMappingColumns + ` FROM room_mappings WHERE id = ?`

const activeRoomMappingsSQL = `SELECT ` + roomMappingColumns + `
FROM room_mappings
WHERE hotel_id = ? AND room_type_id = ? AND is_active = 1
ORDER BY channel`

const listRoomMappingsSQL = `SELECT ` + roomMappingColumns + `
FROM room_mappings
WHERE hotel_id = ?
ORDER BY room_type_id, channel`

const insertRateMappingSQL = `
INSERT INTO rate_mappings
  (id, rate_plan_id, room_mapping_id, channel_rate_plan_id, is_active,
   base_rate_modifier, meal_plan, cancellation_policy, free_cancel_hours,
   min_advance_days, max_advance_days, min_stay, max_stay,
   min_occupancy, max_occupancy, seasonal, day_of_week,
   created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6), NOW(6))
`

const updateRateMappingSQL = `
UPDATE rate_mappings
SET channel_rate_plan_id = ?, is_active = ?, base_rate_modifier = ?,
    meal_plan = ?, cancellation_policy = ?, free_cancel_hours = ?,
    min_advance_days = ?, max_advance_days = ?, min_stay = ?, max_stay = ?,
    min_occupancy = ?, max_occupancy = ?, seasonal = ?, day_of_week = ?,
    updated_at = NOW(6)
WHERE id = ?
`

const rateMappingColumns = `
  id, rate_plan_id, room_mapping_id, channel_rate_plan_id, is_active,
  base_rate_modifier, meal_plan, cancellation_policy, free_cancel_hours,
  min_advance_days, max_advance_days, min_stay, max_stay,
  min_occupancy, max_occupancy, seasonal, day_of_week,
  created_at, updated_at
`

const getRateMappingSQL = `SELECT ` + rateMappingColumns + ` FROM rate_mappings WHERE id = ?`

const activeRateMappingsSQL = `SELECT ` + rateMappingColumns + `
FROM rate_mappings
WHERE room_mapping_id = ? AND is_active = 1
ORDER BY channel_rate_plan_id`

// ---------------------------------------------------------------------------
// CHANNEL CONFIGURATIONS
// ---------------------------------------------------------------------------

const insertConfigSQL = `
INSERT INTO channel_configs
  (id, hotel_id, channel, primary_language, languages, base_currency,
   currencies, conversion_method, fixed_rate, price_frequency,
   credentials, endpoint, batch_size, timeout_ms, retry_attempts,
   retry_delay_ms, schedule, active, connection_state, content_rules,
   created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6), NOW(6))
`

const updateConfigSQL = `
UPDATE channel_configs
SET primary_language = ?, languages = ?, base_currency = ?, currencies = ?,
    conversion_method = ?, fixed_rate = ?, price_frequency = ?,
    credentials = ?, endpoint = ?, batch_size = ?, timeout_ms = ?,
    retry_attempts = ?, retry_delay_ms = ?, schedule = ?, active = ?,
    content_rules = ?, updated_at = NOW(6)
WHERE hotel_id = ? AND channel = ?
`

const configColumns = `
  id, hotel_id, channel, primary_language, languages, base_currency,
  currencies, conversion_method, fixed_rate, price_frequency,
  credentials, endpoint, batch_size, timeout_ms, retry_attempts,
  retry_delay_ms, schedule, active, connection_state, content_rules,
  created_at, updated_at
`

const getConfigSQL = `SELECT ` + configColumns + ` FROM channel_configs WHERE hotel_id = ? AND channel = ?`

const listConfigsSQL = `SELECT ` + configColumns + ` FROM channel_configs WHERE hotel_id = ? ORDER BY channel`

const setConnectionStateSQL = `
UPDATE channel_configs
SET connection_state = ?, updated_at = NOW(6)
WHERE hotel_id = ? AND channel = ?
`

// ---------------------------------------------------------------------------
// SYNC HEALTH
// ---------------------------------------------------------------------------

const healthLoadSQL = `
SELECT total_syncs, successful_syncs, failed_syncs, avg_response_ms,
       buckets, last_sync, last_error_code, last_error_message, last_error_at
FROM sync_health
WHERE hotel_id = ? AND channel = ?
FOR UPDATE
`

const healthUpsertSQL = `
INSERT INTO sync_health
  (hotel_id, channel, total_syncs, successful_syncs, failed_syncs,
   avg_response_ms, uptime_percent, buckets, last_sync,
   last_error_code, last_error_message, last_error_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6))
ON DUPLICATE KEY UPDATE
  total_syncs       = VALUES(total_syncs),
  successful_syncs  = VALUES(successful_syncs),
  failed_syncs      = VALUES(failed_syncs),
  avg_response_ms   = VALUES(avg_response_ms),
  uptime_percent    = VALUES(uptime_percent),
  buckets           = VALUES(buckets),
  last_sync         = VALUES(last_sync),
  last_error_code   = VALUES(last_error_code),
  last_error_message = VALUES(last_error_message),
  last_error_at     = VALUES(last_error_at),
  updated_at        = CURRENT_TIMESTAMP(6)
`

const healthColumns = `
  hotel_id, channel, total_syncs, successful_syncs, failed_syncs,
  avg_response_ms, uptime_percent, last_sync,
  last_error_code, last_error_message, last_error_at, updated_at
`

const getHealthSQL = `SELECT ` + healthColumns + ` FROM sync_health WHERE hotel_id = ? AND channel = ?`

const listHealthSQL = `SELECT ` + healthColumns + ` FROM sync_health WHERE hotel_id = ? ORDER BY channel`
