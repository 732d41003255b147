package mysql

// Schema returns the DDL statements in creation order. Integration tests
// apply them against a throwaway container; deployments run them via the
// ops migration tooling.
func Schema() []string {
	return []string{schemaEvents, schemaRoomMappings, schemaRateMappings, schemaConfigs, schemaHealth}
}

const schemaEvents = `
CREATE TABLE IF NOT EXISTS sync_events (
  id             CHAR(36)     NOT NULL PRIMARY KEY,
  event_type     VARCHAR(32)  NOT NULL,
  resource       VARCHAR(16)  NOT NULL,
  priority       TINYINT      NOT NULL,
  status         VARCHAR(16)  NOT NULL,
  hotel_id       VARCHAR(64)  NOT NULL,
  room_type_id   VARCHAR(64)  NOT NULL DEFAULT '',
  date_start     DATE         NOT NULL,
  date_end       DATE         NOT NULL,
  channels       JSON         NOT NULL,
  data           JSON         NOT NULL,
  attempts       INT          NOT NULL DEFAULT 0,
  max_attempts   INT          NOT NULL DEFAULT 3,
  next_retry_at  DATETIME(6)  NULL,
  scheduled_for  DATETIME(6)  NOT NULL,
  started_at     DATETIME(6)  NULL,
  completed_at   DATETIME(6)  NULL,
  duration_ms    BIGINT       NOT NULL DEFAULT 0,
  worker_id      VARCHAR(64)  NULL,
  lease_deadline DATETIME(6)  NULL,
  errors         JSON         NOT NULL,
  results        JSON         NOT NULL,
  source         VARCHAR(16)  NOT NULL,
  correlation_id VARCHAR(64)  NOT NULL DEFAULT '',
  batch_id       VARCHAR(64)  NOT NULL DEFAULT '',
  created_at     DATETIME(6)  NOT NULL,
  updated_at     DATETIME(6)  NOT NULL,
  KEY idx_lease    (status, priority, scheduled_for),
  KEY idx_retry    (status, next_retry_at),
  KEY idx_hotel    (hotel_id, status, event_type),
  KEY idx_batch    (batch_id, status),
  KEY idx_corr     (correlation_id),
  KEY idx_overlap  (hotel_id, resource, status, date_start, date_end),
  KEY idx_reap     (status, updated_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`

const schemaRoomMappings = `
CREATE TABLE IF NOT EXISTS room_mappings (
  id                CHAR(36)      NOT NULL PRIMARY KEY,
  hotel_id          VARCHAR(64)   NOT NULL,
  room_type_id      VARCHAR(64)   NOT NULL,
  channel           VARCHAR(32)   NOT NULL,
  channel_room_id   VARCHAR(128)  NOT NULL,
  channel_room_name VARCHAR(255)  NOT NULL DEFAULT '',
  is_active         TINYINT(1)    NOT NULL DEFAULT 1,
  commission        DECIMAL(6,3)  NOT NULL DEFAULT 0,
  rate_modifier     JSON          NULL,
  min_advance_days  INT           NULL,
  max_advance_days  INT           NULL,
  channel_specific  JSON          NULL,
  created_at        DATETIME(6)   NOT NULL,
  updated_at        DATETIME(6)   NOT NULL,
  active_room  VARCHAR(128) GENERATED ALWAYS AS
    (IF(is_active = 1, CONCAT(room_type_id, ':', channel), id)) STORED,
  active_chroom VARCHAR(192) GENERATED ALWAYS AS
    (IF(is_active = 1, CONCAT(channel, ':', channel_room_id), id)) STORED,
  UNIQUE KEY uq_active_room   (active_room),
  UNIQUE KEY uq_active_chroom (active_chroom),
  KEY idx_room_active (room_type_id, is_active),
  KEY idx_hotel (hotel_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`

const schemaRateMappings = `
CREATE TABLE IF NOT EXISTS rate_mappings (
  id                   CHAR(36)     NOT NULL PRIMARY KEY,
  rate_plan_id         VARCHAR(64)  NOT NULL,
  room_mapping_id      CHAR(36)     NOT NULL,
  channel_rate_plan_id VARCHAR(128) NOT NULL,
  is_active            TINYINT(1)   NOT NULL DEFAULT 1,
  base_rate_modifier   JSON         NOT NULL,
  meal_plan            VARCHAR(32)  NOT NULL DEFAULT '',
  cancellation_policy  VARCHAR(64)  NOT NULL DEFAULT '',
  free_cancel_hours    INT          NOT NULL DEFAULT 0,
  min_advance_days     INT          NULL,
  max_advance_days     INT          NULL,
  min_stay             INT          NULL,
  max_stay             INT          NULL,
  min_occupancy        INT          NULL,
  max_occupancy        INT          NULL,
  seasonal             JSON         NULL,
  day_of_week          JSON         NULL,
  created_at           DATETIME(6)  NOT NULL,
  updated_at           DATETIME(6)  NOT NULL,
  UNIQUE KEY uq_room_plan (room_mapping_id, channel_rate_plan_id),
  KEY idx_rate_plan (rate_plan_id),
  CONSTRAINT fk_rate_room FOREIGN KEY (room_mapping_id) REFERENCES room_mappings (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`

const schemaConfigs = `
CREATE TABLE IF NOT EXISTS channel_configs (
  id                CHAR(36)      NOT NULL PRIMARY KEY,
  hotel_id          VARCHAR(64)   NOT NULL,
  channel           VARCHAR(32)   NOT NULL,
  primary_language  VARCHAR(8)    NOT NULL,
  languages         JSON          NOT NULL,
  base_currency     CHAR(3)       NOT NULL,
  currencies        JSON          NOT NULL,
  conversion_method VARCHAR(16)   NOT NULL,
  fixed_rate        DECIMAL(18,8) NOT NULL DEFAULT 0,
  price_frequency   VARCHAR(16)   NOT NULL,
  credentials       JSON          NOT NULL,
  endpoint          VARCHAR(512)  NOT NULL DEFAULT '',
  batch_size        INT           NOT NULL,
  timeout_ms        INT           NOT NULL,
  retry_attempts    INT           NOT NULL,
  retry_delay_ms    INT           NOT NULL DEFAULT 0,
  schedule          JSON          NOT NULL,
  active            TINYINT(1)    NOT NULL DEFAULT 1,
  connection_state  VARCHAR(16)   NOT NULL DEFAULT 'testing',
  content_rules     JSON          NOT NULL,
  created_at        DATETIME(6)   NOT NULL,
  updated_at        DATETIME(6)   NOT NULL,
  UNIQUE KEY uq_hotel_channel (hotel_id, channel)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`

const schemaHealth = `
CREATE TABLE IF NOT EXISTS sync_health (
  hotel_id           VARCHAR(64)  NOT NULL,
  channel            VARCHAR(32)  NOT NULL,
  total_syncs        BIGINT       NOT NULL DEFAULT 0,
  successful_syncs   BIGINT       NOT NULL DEFAULT 0,
  failed_syncs       BIGINT       NOT NULL DEFAULT 0,
  avg_response_ms    DOUBLE       NOT NULL DEFAULT 0,
  uptime_percent     DOUBLE       NOT NULL DEFAULT 100,
  buckets            JSON         NOT NULL,
  last_sync          JSON         NOT NULL,
  last_error_code    VARCHAR(64)  NOT NULL DEFAULT '',
  last_error_message TEXT         NULL,
  last_error_at      DATETIME(6)  NULL,
  updated_at         DATETIME(6)  NOT NULL,
  PRIMARY KEY (hotel_id, channel)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
`
