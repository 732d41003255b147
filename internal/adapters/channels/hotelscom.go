package channels

import "channel_sync/internal/domain"

// hotelsCom rides the same connectivity platform as Expedia and only
// differs in its channel identity and endpoint, so it reuses the EPS
// adapter shape wholesale.
type hotelsCom struct {
	expedia
}

func newHotelsCom(p *pusher) *hotelsCom { return &hotelsCom{expedia{p: p}} }

func (a *hotelsCom) Channel() domain.Channel { return domain.ChannelHotelsCom }

var _ domain.ChannelAdapter = (*hotelsCom)(nil)
