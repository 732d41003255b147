package channels

import (
	"context"
	"encoding/xml"
	"fmt"

	"channel_sync/internal/domain"
)

// bookingCom speaks the OTA-style XML dialect of the Booking.com
// connectivity API.
type bookingCom struct {
	p *pusher
}

func newBookingCom(p *pusher) *bookingCom { return &bookingCom{p: p} }

func (a *bookingCom) Channel() domain.Channel { return domain.ChannelBookingCom }

type bcomRateAmountNotif struct {
	XMLName  xml.Name       `xml:"RateAmountNotifRQ"`
	HotelID  string         `xml:"hotel_id,attr"`
	Currency string         `xml:"currency,attr"`
	Rooms    []bcomRoomRate `xml:"room"`
}

type bcomRoomRate struct {
	RoomID string     `xml:"id,attr"`
	RateID string     `xml:"rate_id,attr"`
	Dates  []bcomRate `xml:"date"`
}

type bcomRate struct {
	Value string `xml:"value,attr"`
	Rate  string `xml:",chardata"`
}

func (a *bookingCom) PushRates(ctx context.Context, cc domain.CallContext, p domain.RatePush) domain.AdapterResult {
	notif := bcomRateAmountNotif{HotelID: cc.Credentials.HotelCode, Currency: p.Currency}
	for _, plan := range p.Plans {
		room := bcomRoomRate{RoomID: p.ChannelRoomID, RateID: plan.ChannelRatePlanID}
		for day, rate := range plan.Nightly {
			room.Dates = append(room.Dates, bcomRate{Value: day, Rate: rate.String()})
		}
		notif.Rooms = append(notif.Rooms, room)
	}
	body, err := xml.Marshal(notif)
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/rates", body)
}

type bcomAvailabilityNotif struct {
	XMLName xml.Name `xml:"AvailabilityNotifRQ"`
	HotelID string   `xml:"hotel_id,attr"`
	RoomID  string   `xml:"room_id,attr"`
	From    string   `xml:"from,attr"`
	To      string   `xml:"to,attr"`
	Rooms   int      `xml:"rooms_to_sell"`
	Closed  int      `xml:"closed"`
}

func (a *bookingCom) PushAvailability(ctx context.Context, cc domain.CallContext, p domain.AvailabilityPush) domain.AdapterResult {
	closed := 0
	if p.StopSell {
		closed = 1
	}
	body, err := xml.Marshal(bcomAvailabilityNotif{
		HotelID: cc.Credentials.HotelCode,
		RoomID:  p.ChannelRoomID,
		From:    p.DateRange.Start.Format("2006-01-02"),
		To:      p.DateRange.End.Format("2006-01-02"),
		Rooms:   p.Available,
		Closed:  closed,
	})
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/availability", body)
}

type bcomRestrictionNotif struct {
	XMLName xml.Name `xml:"RestrictionNotifRQ"`
	HotelID string   `xml:"hotel_id,attr"`
	RoomID  string   `xml:"room_id,attr"`
	RateID  string   `xml:"rate_id,attr,omitempty"`
	From    string   `xml:"from,attr"`
	To      string   `xml:"to,attr"`
	Closed  *bool    `xml:"closed,omitempty"`
	CTA     *bool    `xml:"closed_to_arrival,omitempty"`
	CTD     *bool    `xml:"closed_to_departure,omitempty"`
	MinStay *int     `xml:"min_stay,omitempty"`
	MaxStay *int     `xml:"max_stay,omitempty"`
}

func (a *bookingCom) PushRestrictions(ctx context.Context, cc domain.CallContext, p domain.RestrictionPush) domain.AdapterResult {
	body, err := xml.Marshal(bcomRestrictionNotif{
		HotelID: cc.Credentials.HotelCode,
		RoomID:  p.ChannelRoomID,
		RateID:  p.ChannelRatePlanID,
		From:    p.DateRange.Start.Format("2006-01-02"),
		To:      p.DateRange.End.Format("2006-01-02"),
		Closed:  p.StopSell,
		CTA:     p.ClosedToArrival,
		CTD:     p.ClosedToDeparture,
		MinStay: p.Stay.MinStay,
		MaxStay: p.Stay.MaxStay,
	})
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/restrictions", body)
}

func (a *bookingCom) PushContent(ctx context.Context, cc domain.CallContext, p domain.ContentPush) domain.AdapterResult {
	// Content goes over the JSON content API, unlike the OTA XML endpoints.
	return a.p.postJSON(ctx, cc, "/content/rooms", map[string]any{
		"hotel_id":    cc.Credentials.HotelCode,
		"room_id":     p.ChannelRoomID,
		"language":    p.Language,
		"name":        p.Name,
		"description": p.Description,
		"photos":      p.Images,
	})
}

func (a *bookingCom) PushBookingModification(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/reservations/modify", map[string]any{
		"hotel_id":       cc.Credentials.HotelCode,
		"reservation_id": p.ReservationRef,
		"changes":        p.ChangeSet,
	})
}

func (a *bookingCom) PushCancellation(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	return a.p.postJSON(ctx, cc, "/reservations/cancel", map[string]any{
		"hotel_id":       cc.Credentials.HotelCode,
		"reservation_id": p.ReservationRef,
	})
}

func (a *bookingCom) AcknowledgeReservation(ctx context.Context, cc domain.CallContext, reservation map[string]any) domain.AdapterResult {
	ref, _ := reservation["reservation_id"].(string)
	if ref == "" {
		return failResult(domain.CodeValidationFailed, "reservation_id missing", 0)
	}
	return a.p.postJSON(ctx, cc, fmt.Sprintf("/reservations/%s/ack", ref), map[string]any{
		"hotel_id": cc.Credentials.HotelCode,
	})
}
