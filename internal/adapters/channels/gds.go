package channels

import (
	"context"
	"encoding/xml"

	"channel_sync/internal/domain"
)

// gds covers the four GDS connections (Amadeus, Sabre, Galileo,
// Worldspan). They all take OTA-style XML over the same switch gateway;
// only the channel identity differs. GDS channels carry no room content,
// that capability is skipped.
type gds struct {
	p  *pusher
	ch domain.Channel
}

func newGDS(p *pusher, ch domain.Channel) *gds { return &gds{p: p, ch: ch} }

func (a *gds) Channel() domain.Channel { return a.ch }

type otaRateUpdate struct {
	XMLName   xml.Name      `xml:"OTA_HotelRateAmountNotifRQ"`
	HotelCode string        `xml:"HotelCode,attr"`
	Currency  string        `xml:"CurrencyCode,attr"`
	Rates     []otaRateLine `xml:"RateAmountMessage"`
}

type otaRateLine struct {
	InvTypeCode string `xml:"InvTypeCode,attr"`
	RatePlan    string `xml:"RatePlanCode,attr"`
	Date        string `xml:"Date,attr"`
	Amount      string `xml:"AmountAfterTax,attr"`
}

func (a *gds) PushRates(ctx context.Context, cc domain.CallContext, p domain.RatePush) domain.AdapterResult {
	msg := otaRateUpdate{HotelCode: cc.Credentials.HotelCode, Currency: p.Currency}
	for _, plan := range p.Plans {
		for day, rate := range plan.Nightly {
			msg.Rates = append(msg.Rates, otaRateLine{
				InvTypeCode: p.ChannelRoomID,
				RatePlan:    plan.ChannelRatePlanID,
				Date:        day,
				Amount:      rate.String(),
			})
		}
	}
	body, err := xml.Marshal(msg)
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/ota/rates", body)
}

type otaAvailUpdate struct {
	XMLName     xml.Name `xml:"OTA_HotelAvailNotifRQ"`
	HotelCode   string   `xml:"HotelCode,attr"`
	InvTypeCode string   `xml:"InvTypeCode,attr"`
	Start       string   `xml:"Start,attr"`
	End         string   `xml:"End,attr"`
	Count       int      `xml:"BookingLimit,attr"`
	Closed      bool     `xml:"Closed,attr"`
}

func (a *gds) PushAvailability(ctx context.Context, cc domain.CallContext, p domain.AvailabilityPush) domain.AdapterResult {
	body, err := xml.Marshal(otaAvailUpdate{
		HotelCode:   cc.Credentials.HotelCode,
		InvTypeCode: p.ChannelRoomID,
		Start:       p.DateRange.Start.Format("2006-01-02"),
		End:         p.DateRange.End.Format("2006-01-02"),
		Count:       p.Available,
		Closed:      p.StopSell,
	})
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/ota/availability", body)
}

type otaRestrictionUpdate struct {
	XMLName     xml.Name `xml:"OTA_HotelBookingRuleNotifRQ"`
	HotelCode   string   `xml:"HotelCode,attr"`
	InvTypeCode string   `xml:"InvTypeCode,attr"`
	RatePlan    string   `xml:"RatePlanCode,attr,omitempty"`
	Start       string   `xml:"Start,attr"`
	End         string   `xml:"End,attr"`
	Closed      *bool    `xml:"Closed,attr,omitempty"`
	CTA         *bool    `xml:"ClosedToArrival,attr,omitempty"`
	CTD         *bool    `xml:"ClosedToDeparture,attr,omitempty"`
	MinLOS      *int     `xml:"MinLOS,attr,omitempty"`
	MaxLOS      *int     `xml:"MaxLOS,attr,omitempty"`
}

func (a *gds) PushRestrictions(ctx context.Context, cc domain.CallContext, p domain.RestrictionPush) domain.AdapterResult {
	body, err := xml.Marshal(otaRestrictionUpdate{
		HotelCode:   cc.Credentials.HotelCode,
		InvTypeCode: p.ChannelRoomID,
		RatePlan:    p.ChannelRatePlanID,
		Start:       p.DateRange.Start.Format("2006-01-02"),
		End:         p.DateRange.End.Format("2006-01-02"),
		Closed:      p.StopSell,
		CTA:         p.ClosedToArrival,
		CTD:         p.ClosedToDeparture,
		MinLOS:      p.Stay.MinStay,
		MaxLOS:      p.Stay.MaxStay,
	})
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/ota/restrictions", body)
}

func (a *gds) PushContent(ctx context.Context, cc domain.CallContext, p domain.ContentPush) domain.AdapterResult {
	return skipResult(a.ch, "content")
}

type otaResNotif struct {
	XMLName   xml.Name `xml:"OTA_HotelResModifyNotifRQ"`
	HotelCode string   `xml:"HotelCode,attr"`
	ResID     string   `xml:"ResID_Value,attr"`
	Cancel    bool     `xml:"Cancel,attr"`
}

func (a *gds) PushBookingModification(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	body, err := xml.Marshal(otaResNotif{
		HotelCode: cc.Credentials.HotelCode,
		ResID:     p.ReservationRef,
	})
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/ota/reservations", body)
}

func (a *gds) PushCancellation(ctx context.Context, cc domain.CallContext, p domain.BookingPush) domain.AdapterResult {
	body, err := xml.Marshal(otaResNotif{
		HotelCode: cc.Credentials.HotelCode,
		ResID:     p.ReservationRef,
		Cancel:    true,
	})
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/ota/reservations", body)
}

func (a *gds) AcknowledgeReservation(ctx context.Context, cc domain.CallContext, reservation map[string]any) domain.AdapterResult {
	ref, _ := reservation["res_id"].(string)
	if ref == "" {
		return failResult(domain.CodeValidationFailed, "res_id missing", 0)
	}
	body, err := xml.Marshal(otaResNotif{HotelCode: cc.Credentials.HotelCode, ResID: ref})
	if err != nil {
		return failResult(domain.CodeValidationFailed, err.Error(), 0)
	}
	return a.p.postXML(ctx, cc, "/ota/reservations/ack", body)
}
