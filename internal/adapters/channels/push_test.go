package channels_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"channel_sync/internal/adapters/channels"
	"channel_sync/internal/domain"
)

func ratePush() domain.RatePush {
	return domain.RatePush{
		ChannelRoomID: "bkg-101",
		Currency:      "EUR",
		DateRange: domain.DateRange{
			Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		Plans: []domain.RatePlanPush{{
			ChannelRatePlanID: "bkg-bar",
			Nightly: map[string]decimal.Decimal{
				"2025-03-01": decimal.RequireFromString("60.50"),
				"2025-03-02": decimal.RequireFromString("60.50"),
			},
		}},
	}
}

func callCtx(endpoint string) domain.CallContext {
	return domain.CallContext{
		HotelID:     "H1",
		Endpoint:    endpoint,
		Credentials: domain.Credentials{APIKey: "k", APISecret: "s", HotelCode: "HC1"},
		Timeout:     2 * time.Second,
	}
}

func invoke(t *testing.T, srv *httptest.Server, ch domain.Channel) domain.AdapterResult {
	t.Helper()
	reg := channels.Default()
	return reg.Invoke(context.Background(), ch, domain.EventRateUpdate, callCtx(srv.URL), ratePush())
}

func TestPushSuccess(t *testing.T) {
	var gotAuth, gotHotel, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-API-Key")
		gotHotel = r.Header.Get("X-Hotel-Code")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	res := invoke(t, srv, domain.ChannelExpedia)
	if !res.OK || res.Err != nil {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Response["accepted"] != true {
		t.Fatalf("response = %v", res.Response)
	}
	if res.LatencyMS < 1 {
		t.Fatalf("latency = %d, want >= 1", res.LatencyMS)
	}
	if gotAuth != "k" || gotHotel != "HC1" {
		t.Fatalf("auth headers = %q/%q", gotAuth, gotHotel)
	}
	if gotPath != "/v3/rates" {
		t.Fatalf("path = %s", gotPath)
	}
}

func TestPushAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	res := invoke(t, srv, domain.ChannelExpedia)
	if res.OK || res.Err == nil || res.Err.Code != domain.CodeAuthFailed {
		t.Fatalf("result = %+v, want auth_failed", res)
	}
	if res.Err.Retryable {
		t.Fatalf("auth failures must not be retryable")
	}
}

func TestPushRateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	res := invoke(t, srv, domain.ChannelAgoda)
	if res.Err == nil || res.Err.Code != domain.CodeRateLimited {
		t.Fatalf("result = %+v, want rate_limited", res)
	}
	if res.Err.RetryAfter != 30*time.Second {
		t.Fatalf("retry_after = %v, want 30s", res.Err.RetryAfter)
	}
	if !res.Err.Retryable {
		t.Fatalf("rate_limited must be retryable")
	}
}

func TestPushValidationRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown room", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	res := invoke(t, srv, domain.ChannelExpedia)
	if res.Err == nil || res.Err.Code != domain.CodeValidationFailed {
		t.Fatalf("result = %+v, want validation_failed", res)
	}
}

func TestPushServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	res := invoke(t, srv, domain.ChannelExpedia)
	if res.Err == nil || res.Err.Code != domain.CodeNetworkTimeout {
		t.Fatalf("result = %+v, want network_timeout", res)
	}
	if !res.Err.Retryable {
		t.Fatalf("5xx must be retryable")
	}
}

func TestPushTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cc := callCtx(srv.URL)
	cc.Timeout = 50 * time.Millisecond
	reg := channels.Default()
	res := reg.Invoke(context.Background(), domain.ChannelExpedia, domain.EventRateUpdate, cc, ratePush())
	if res.Err == nil || res.Err.Code != domain.CodeNetworkTimeout {
		t.Fatalf("result = %+v, want network_timeout", res)
	}
}

func TestPushBookingComSendsXML(t *testing.T) {
	var gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := invoke(t, srv, domain.ChannelBookingCom)
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	if gotCT != "application/xml" {
		t.Fatalf("content type = %s, want xml", gotCT)
	}
}

func TestRegistryUnknownChannel(t *testing.T) {
	reg := channels.Default()
	res := reg.Invoke(context.Background(), domain.Channel("nope"), domain.EventRateUpdate, domain.CallContext{}, ratePush())
	if res.Err == nil || res.Err.Code != domain.CodeChannelDisabled {
		t.Fatalf("result = %+v, want channel_disabled", res)
	}
}

func TestRegistryPayloadMismatch(t *testing.T) {
	reg := channels.Default()
	res := reg.Invoke(context.Background(), domain.ChannelExpedia, domain.EventRateUpdate, domain.CallContext{}, domain.ContentPush{})
	if res.Err == nil || res.Err.Code != domain.CodeInternal {
		t.Fatalf("result = %+v, want internal payload mismatch", res)
	}
}

func TestAirbnbRestrictionsSkipped(t *testing.T) {
	reg := channels.Default()
	res := reg.Invoke(context.Background(), domain.ChannelAirbnb, domain.EventRestrictionUpdate,
		domain.CallContext{}, domain.RestrictionPush{ChannelRoomID: "lst-1"})
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped capability", res)
	}
	if res.Err == nil || res.Err.Code != domain.CodeCapabilityMissing {
		t.Fatalf("err = %+v, want capability_missing", res.Err)
	}
}

func TestDirectWebAcknowledgesLocally(t *testing.T) {
	reg := channels.Default()
	res := reg.Invoke(context.Background(), domain.ChannelDirectWeb, domain.EventRateUpdate,
		domain.CallContext{}, ratePush())
	if !res.OK {
		t.Fatalf("result = %+v, want local success", res)
	}
	if res.Response["synced"] != "rates" {
		t.Fatalf("response = %v", res.Response)
	}
}
