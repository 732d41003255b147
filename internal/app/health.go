package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"channel_sync/internal/domain"
)

// HealthService folds adapter call outcomes into the health counters and
// drives the connection state machine on the configuration record.
type HealthService struct {
	repo domain.HealthRepository
	cfgs *ConfigService
}

func NewHealthService(repo domain.HealthRepository, cfgs *ConfigService) *HealthService {
	return &HealthService{repo: repo, cfgs: cfgs}
}

// Observe records one sample. Health bookkeeping is best-effort: a failed
// write never fails the sync that produced the sample.
func (s *HealthService) Observe(ctx context.Context, sample domain.HealthSample) {
	if err := s.repo.Record(ctx, sample); err != nil {
		log.Warn().Err(err).
			Str("hotel_id", sample.HotelID).
			Str("channel", string(sample.Channel)).
			Msg("health record failed")
	}
	if sample.Status == domain.ResultSkipped {
		return
	}

	cfg, err := s.cfgs.Get(ctx, sample.HotelID, sample.Channel)
	if err != nil {
		return
	}
	// Administrative disconnects stay put until an operator reconnects.
	if cfg.ConnectionState == domain.ConnDisconnected {
		return
	}

	want := cfg.ConnectionState
	switch sample.Status {
	case domain.ResultSuccess:
		want = domain.ConnConnected
	case domain.ResultFailed:
		if sample.ErrorCode == domain.CodeAuthFailed || sample.Retryable {
			want = domain.ConnError
		}
	}
	if want != cfg.ConnectionState {
		if err := s.cfgs.SetConnectionState(ctx, sample.HotelID, sample.Channel, want); err != nil {
			log.Warn().Err(err).
				Str("hotel_id", sample.HotelID).
				Str("channel", string(sample.Channel)).
				Str("state", string(want)).
				Msg("connection state update failed")
		}
	}
}

// Get returns the health snapshot with the live connection state joined in
// from the configuration record.
func (s *HealthService) Get(ctx context.Context, hotelID string, ch domain.Channel) (domain.SyncHealth, error) {
	h, err := s.repo.Get(ctx, hotelID, ch)
	if err != nil {
		return domain.SyncHealth{}, err
	}
	if cfg, cerr := s.cfgs.Get(ctx, hotelID, ch); cerr == nil {
		h.ConnectionState = cfg.ConnectionState
	}
	return h, nil
}

func (s *HealthService) List(ctx context.Context, hotelID string) ([]domain.SyncHealth, error) {
	hs, err := s.repo.List(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	cfgs, cerr := s.cfgs.List(ctx, hotelID)
	if cerr != nil {
		return hs, nil
	}
	states := make(map[domain.Channel]domain.ConnectionState, len(cfgs))
	for _, c := range cfgs {
		states[c.Channel] = c.ConnectionState
	}
	for i := range hs {
		if st, ok := states[hs[i].Channel]; ok {
			hs[i].ConnectionState = st
		}
	}
	return hs, nil
}
