package domain

import "time"

// SyncHealth materializes per (hotel, channel) sync counters for O(1)
// operator reads. Written only by workers; eventual consistency accepted.
type SyncHealth struct {
	HotelID string  `json:"hotel_id"`
	Channel Channel `json:"channel"`

	TotalSyncs      int64 `json:"total_syncs"`
	SuccessfulSyncs int64 `json:"successful_syncs"`
	FailedSyncs     int64 `json:"failed_syncs"`

	ConnectionState ConnectionState `json:"connection_state"`
	AvgResponseMS   float64         `json:"avg_response_ms"` // EMA over roughly the last 100 calls
	UptimePercent   float64         `json:"uptime_percent"`  // rolling 24h window

	LastSync map[Resource]time.Time `json:"last_sync,omitempty"`

	LastErrorCode    string     `json:"last_error_code,omitempty"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`
	LastErrorAt      *time.Time `json:"last_error_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// HealthScore is successes over totals, 0 when nothing synced yet.
func (h *SyncHealth) HealthScore() float64 {
	if h.TotalSyncs <= 0 {
		return 0
	}
	return float64(h.SuccessfulSyncs) / float64(h.TotalSyncs)
}

// HealthSample is one adapter call outcome folded into the counters.
type HealthSample struct {
	HotelID    string
	Channel    Channel
	Resource   Resource
	Status     ResultStatus
	DurationMS int64
	ErrorCode  string
	ErrorMsg   string
	Retryable  bool
	At         time.Time
}
