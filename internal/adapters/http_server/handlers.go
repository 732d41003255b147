package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"channel_sync/internal/app"
	"channel_sync/internal/domain"
)

// Acker resolves a channel adapter for inbound reservation acknowledgement.
type Acker interface {
	Get(ch domain.Channel) (domain.ChannelAdapter, bool)
}

type Handlers struct {
	Producer *app.Producer
	Admin    *app.AdminService
	Cfgs     *app.ConfigService
	Maps     *app.MappingService
	Health   *app.HealthService
	Adapters Acker
	Sink     domain.ReservationSink // optional
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Post("/v1/events", h.submitEvent)
	s.mux.Post("/v1/events/batch", h.submitBatch)
	s.mux.Get("/v1/events", h.listEvents)
	s.mux.Get("/v1/events/{id}", h.getEvent)
	s.mux.Post("/v1/events/{id}/cancel", h.cancelEvent)
	s.mux.Post("/v1/events/{id}/requeue", h.requeueEvent)
	s.mux.Get("/v1/batches/{id}", h.getBatch)
	s.mux.Get("/v1/events-retryable", h.listRetryable)

	s.mux.Post("/v1/mappings/rooms", h.createRoomMapping)
	s.mux.Put("/v1/mappings/rooms/{id}", h.updateRoomMapping)
	s.mux.Get("/v1/mappings/rooms/{id}", h.getRoomMapping)
	s.mux.Post("/v1/mappings/rates", h.createRateMapping)
	s.mux.Put("/v1/mappings/rates/{id}", h.updateRateMapping)
	s.mux.Get("/v1/mappings/rates/{id}", h.getRateMapping)
	s.mux.Get("/v1/hotels/{hotelID}/mappings/rooms", h.listRoomMappings)

	s.mux.Post("/v1/configs", h.createConfig)
	s.mux.Put("/v1/configs", h.updateConfig)
	s.mux.Get("/v1/hotels/{hotelID}/configs", h.listConfigs)
	s.mux.Get("/v1/hotels/{hotelID}/configs/{channel}", h.getConfig)
	s.mux.Post("/v1/hotels/{hotelID}/configs/{channel}/state", h.setConnectionState)

	s.mux.Get("/v1/hotels/{hotelID}/health", h.listHealth)
	s.mux.Get("/v1/hotels/{hotelID}/health/{channel}", h.getHealth)

	s.mux.Post("/v1/hotels/{hotelID}/webhooks/{channel}/reservations", h.inboundReservation)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps service errors onto problem responses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrTerminal):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ---- events ----

type submitEventRequest struct {
	Type          string         `json:"event_type"`
	Priority      int            `json:"priority,omitempty"`
	HotelID       string         `json:"hotel_id"`
	RoomTypeID    string         `json:"room_type_id,omitempty"`
	DateStart     string         `json:"date_start"`
	DateEnd       string         `json:"date_end"`
	Channels      []string       `json:"channels,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Source        string         `json:"source,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	MaxAttempts   int            `json:"max_attempts,omitempty"`
	ScheduledFor  *time.Time     `json:"scheduled_for,omitempty"`
}

func (req *submitEventRequest) toEvent() (*domain.UpdateEvent, error) {
	start, err := time.Parse("2006-01-02", req.DateStart)
	if err != nil {
		return nil, domain.ErrValidation
	}
	end, err := time.Parse("2006-01-02", req.DateEnd)
	if err != nil {
		return nil, domain.ErrValidation
	}
	chans := make([]domain.Channel, 0, len(req.Channels))
	for _, c := range req.Channels {
		if c == domain.ChannelAll {
			chans = append(chans, domain.Channel(c))
			continue
		}
		ch, err := domain.ParseChannel(c)
		if err != nil {
			return nil, err
		}
		chans = append(chans, ch)
	}
	ev := &domain.UpdateEvent{
		Type:          domain.EventType(req.Type),
		Priority:      req.Priority,
		MaxAttempts:   req.MaxAttempts,
		Source:        domain.EventSource(req.Source),
		CorrelationID: req.CorrelationID,
		Payload: domain.EventPayload{
			HotelID:    req.HotelID,
			RoomTypeID: req.RoomTypeID,
			DateRange:  domain.DateRange{Start: start, End: end},
			Channels:   chans,
			Data:       req.Data,
		},
	}
	if req.ScheduledFor != nil {
		ev.ScheduledFor = *req.ScheduledFor
	}
	return ev, nil
}

func (h *Handlers) submitEvent(w http.ResponseWriter, r *http.Request) {
	var req submitEventRequest
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	ev, err := req.toEvent()
	if err != nil {
		writeErr(w, err)
		return
	}
	res, err := h.Producer.Submit(r.Context(), ev)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *Handlers) submitBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []submitEventRequest
	if err := decode(r, &reqs); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	evs := make([]*domain.UpdateEvent, 0, len(reqs))
	items := make([]app.BatchItem, 0, len(reqs))
	idx := make([]int, 0, len(reqs))
	for i := range reqs {
		ev, err := reqs[i].toEvent()
		if err != nil {
			items = append(items, app.BatchItem{Index: i, Error: err.Error()})
			continue
		}
		evs = append(evs, ev)
		idx = append(idx, i)
	}
	batchID, accepted, err := h.Producer.SubmitBatch(r.Context(), evs)
	if err != nil {
		writeErr(w, err)
		return
	}
	for j := range accepted {
		accepted[j].Index = idx[j]
	}
	items = append(items, accepted...)
	writeJSON(w, http.StatusAccepted, map[string]any{"batch_id": batchID, "items": items})
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if ls := q.Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 1000 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 1000")
			return
		}
		limit = l
	}
	f := domain.EventFilter{
		HotelID:       q.Get("hotel_id"),
		Status:        domain.EventStatus(q.Get("status")),
		Type:          domain.EventType(q.Get("event_type")),
		BatchID:       q.Get("batch_id"),
		CorrelationID: q.Get("correlation_id"),
		Limit:         limit,
	}
	out, err := h.Admin.ListEvents(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Admin.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, ev)
}

func (h *Handlers) cancelEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if err := h.Admin.Cancel(r.Context(), chi.URLParam(r, "id"), body.Reason); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) requeueEvent(w http.ResponseWriter, r *http.Request) {
	res, err := h.Admin.Requeue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *Handlers) getBatch(w http.ResponseWriter, r *http.Request) {
	out, err := h.Admin.BatchEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) listRetryable(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if l, err := strconv.Atoi(ls); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	out, err := h.Admin.ListRetryable(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- mappings ----

func (h *Handlers) createRoomMapping(w http.ResponseWriter, r *http.Request) {
	var m domain.RoomMapping
	if err := decode(r, &m); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.Maps.CreateRoomMapping(r.Context(), &m); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handlers) updateRoomMapping(w http.ResponseWriter, r *http.Request) {
	var m domain.RoomMapping
	if err := decode(r, &m); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	m.ID = chi.URLParam(r, "id")
	if err := h.Maps.UpdateRoomMapping(r.Context(), &m); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) getRoomMapping(w http.ResponseWriter, r *http.Request) {
	m, err := h.Maps.GetRoomMapping(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, m)
}

func (h *Handlers) listRoomMappings(w http.ResponseWriter, r *http.Request) {
	out, err := h.Maps.ListRoomMappings(r.Context(), chi.URLParam(r, "hotelID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) createRateMapping(w http.ResponseWriter, r *http.Request) {
	var m domain.RateMapping
	if err := decode(r, &m); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.Maps.CreateRateMapping(r.Context(), &m); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handlers) updateRateMapping(w http.ResponseWriter, r *http.Request) {
	var m domain.RateMapping
	if err := decode(r, &m); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	m.ID = chi.URLParam(r, "id")
	if err := h.Maps.UpdateRateMapping(r.Context(), &m); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) getRateMapping(w http.ResponseWriter, r *http.Request) {
	m, err := h.Maps.GetRateMapping(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, m)
}

// ---- configs ----

func (h *Handlers) createConfig(w http.ResponseWriter, r *http.Request) {
	var c domain.ChannelConfiguration
	if err := decode(r, &c); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.Cfgs.Create(r.Context(), &c); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handlers) updateConfig(w http.ResponseWriter, r *http.Request) {
	var c domain.ChannelConfiguration
	if err := decode(r, &c); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.Cfgs.Update(r.Context(), &c); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) listConfigs(w http.ResponseWriter, r *http.Request) {
	out, err := h.Cfgs.List(r.Context(), chi.URLParam(r, "hotelID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	ch, err := domain.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeErr(w, err)
		return
	}
	c, err := h.Cfgs.Get(r.Context(), chi.URLParam(r, "hotelID"), ch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, c)
}

func (h *Handlers) setConnectionState(w http.ResponseWriter, r *http.Request) {
	ch, err := domain.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeErr(w, err)
		return
	}
	var body struct {
		State string `json:"state"`
	}
	if err := decode(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	switch domain.ConnectionState(body.State) {
	case domain.ConnConnected, domain.ConnDisconnected, domain.ConnError, domain.ConnTesting:
	default:
		writeProblem(w, http.StatusBadRequest, "Validation Failed", "unknown connection state")
		return
	}
	if err := h.Cfgs.SetConnectionState(r.Context(), chi.URLParam(r, "hotelID"), ch, domain.ConnectionState(body.State)); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- health ----

func (h *Handlers) listHealth(w http.ResponseWriter, r *http.Request) {
	out, err := h.Health.List(r.Context(), chi.URLParam(r, "hotelID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getHealth(w http.ResponseWriter, r *http.Request) {
	ch, err := domain.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := h.Health.Get(r.Context(), chi.URLParam(r, "hotelID"), ch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- inbound reservations ----

// inboundReservation receives a channel's reservation webhook, hands it to
// the PMS reservation sink and acknowledges it back to the channel.
func (h *Handlers) inboundReservation(w http.ResponseWriter, r *http.Request) {
	ch, err := domain.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeErr(w, err)
		return
	}
	hotelID := chi.URLParam(r, "hotelID")
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "body must be a JSON object")
		return
	}

	if h.Sink != nil {
		if err := h.Sink.OnExternalReservation(r.Context(), ch, payload); err != nil {
			writeErr(w, err)
			return
		}
	}

	acked := false
	if h.Adapters != nil {
		if a, ok := h.Adapters.Get(ch); ok {
			if cfg, cerr := h.Cfgs.Get(r.Context(), hotelID, ch); cerr == nil && cfg.Dispatchable() {
				cc := domain.CallContext{
					HotelID:     hotelID,
					Credentials: cfg.Credentials,
					Endpoint:    cfg.Endpoint,
					Language:    cfg.PrimaryLanguage,
					Currency:    cfg.BaseCurrency,
					Timeout:     cfg.Timeout(),
				}
				res := a.AcknowledgeReservation(r.Context(), cc, payload)
				acked = res.OK
			}
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"received": true, "acknowledged": acked})
}
