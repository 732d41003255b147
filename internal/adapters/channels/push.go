package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"channel_sync/internal/domain"
)

// pusher is the HTTP core shared by every remote adapter. It performs one
// call per invocation (retry policy belongs to the dispatcher) and folds
// the outcome into a typed AdapterResult.
type pusher struct {
	hc *http.Client
}

func newPusher() *pusher {
	// Per-call deadlines come from the channel configuration; the transport
	// timeout is only a hard ceiling against leaked connections.
	return &pusher{hc: &http.Client{Timeout: 5 * time.Minute}}
}

func (p *pusher) postJSON(ctx context.Context, cc domain.CallContext, path string, body any) domain.AdapterResult {
	b, err := json.Marshal(body)
	if err != nil {
		return failResult(domain.CodeValidationFailed, fmt.Sprintf("marshal payload: %v", err), 0)
	}
	return p.post(ctx, cc, path, "application/json", b)
}

func (p *pusher) postXML(ctx context.Context, cc domain.CallContext, path string, body []byte) domain.AdapterResult {
	return p.post(ctx, cc, path, "application/xml", body)
}

func (p *pusher) post(ctx context.Context, cc domain.CallContext, path, contentType string, body []byte) domain.AdapterResult {
	start := time.Now()

	timeout := cc.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(cc.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failResult(domain.CodeInternal, err.Error(), sinceMS(start))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("User-Agent", "channel-sync/1.0")
	authorize(req, cc.Credentials)
	if cc.Language != "" {
		req.Header.Set("Accept-Language", cc.Language)
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		lat := sinceMS(start)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return failResult(domain.CodeNetworkTimeout, "call timed out", lat)
		}
		if ctx.Err() == context.Canceled {
			return failResult(domain.CodeCancelled, "call cancelled", lat)
		}
		se := domain.NewSyncError(domain.CodeNetworkTimeout, err.Error())
		return domain.AdapterResult{Err: se, LatencyMS: lat}
	}
	defer resp.Body.Close()

	lat := sinceMS(start)
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return domain.AdapterResult{OK: true, Response: parseResponse(raw), LatencyMS: lat}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return failResult(domain.CodeAuthFailed, trimBody(raw), lat)

	case resp.StatusCode == http.StatusTooManyRequests:
		se := domain.NewSyncError(domain.CodeRateLimited, trimBody(raw))
		se.RetryAfter = parseRetryAfter(resp)
		return domain.AdapterResult{Err: se, LatencyMS: lat}

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return failResult(domain.CodeValidationFailed, trimBody(raw), lat)

	case resp.StatusCode >= 500:
		se := domain.NewSyncError(domain.CodeNetworkTimeout, fmt.Sprintf("remote %d: %s", resp.StatusCode, trimBody(raw)))
		return domain.AdapterResult{Err: se, LatencyMS: lat}

	default:
		return failResult(domain.CodeInternal, fmt.Sprintf("unexpected status %d", resp.StatusCode), lat)
	}
}

func authorize(req *http.Request, c domain.Credentials) {
	switch {
	case c.APIKey != "" && c.APISecret != "":
		req.Header.Set("X-API-Key", c.APIKey)
		req.Header.Set("X-API-Secret", c.APISecret)
	case c.APIKey != "":
		req.Header.Set("X-API-Key", c.APIKey)
	case c.Username != "":
		req.SetBasicAuth(c.Username, c.Password)
	}
	if c.HotelCode != "" {
		req.Header.Set("X-Hotel-Code", c.HotelCode)
	}
}

func failResult(code, msg string, lat int64) domain.AdapterResult {
	return domain.AdapterResult{Err: domain.NewSyncError(code, msg), LatencyMS: lat}
}

// skipResult marks a capability the channel does not support.
func skipResult(ch domain.Channel, capability string) domain.AdapterResult {
	return domain.AdapterResult{
		Skipped: true,
		Err: &domain.SyncError{
			Code:    domain.CodeCapabilityMissing,
			Message: fmt.Sprintf("%s does not support %s", ch, capability),
			Channel: ch,
		},
	}
}

func parseResponse(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	if len(raw) == 0 {
		return nil
	}
	return map[string]any{"body": trimBody(raw)}
}

func trimBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

func parseRetryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sinceMS(t time.Time) int64 {
	ms := time.Since(t).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
