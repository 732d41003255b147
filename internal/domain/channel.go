package domain

import "fmt"

// Channel identifies an external distribution channel. The set is closed:
// supporting a new channel means adding an adapter, not a row.
type Channel string

const (
	ChannelBookingCom Channel = "booking_com"
	ChannelExpedia    Channel = "expedia"
	ChannelAirbnb     Channel = "airbnb"
	ChannelAgoda      Channel = "agoda"
	ChannelHotelsCom  Channel = "hotels_com"
	ChannelAmadeus    Channel = "amadeus"
	ChannelSabre      Channel = "sabre"
	ChannelGalileo    Channel = "galileo"
	ChannelWorldspan  Channel = "worldspan"
	ChannelDirectWeb  Channel = "direct_web"
)

// ChannelAll is the sentinel accepted in event payloads; it expands to the
// active configured channel set at dispatch time.
const ChannelAll = "all"

// AllChannels lists every known channel identifier in a stable order.
func AllChannels() []Channel {
	return []Channel{
		ChannelBookingCom,
		ChannelExpedia,
		ChannelAirbnb,
		ChannelAgoda,
		ChannelHotelsCom,
		ChannelAmadeus,
		ChannelSabre,
		ChannelGalileo,
		ChannelWorldspan,
		ChannelDirectWeb,
	}
}

// ParseChannel validates a channel identifier coming from the wire.
func ParseChannel(s string) (Channel, error) {
	for _, c := range AllChannels() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown channel %q", ErrValidation, s)
}

// IsGDS reports whether the channel is a legacy GDS rather than an OTA.
func (c Channel) IsGDS() bool {
	switch c {
	case ChannelAmadeus, ChannelSabre, ChannelGalileo, ChannelWorldspan:
		return true
	}
	return false
}
