// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/logging"
	"github.com/ptelford/cartwright/internal/recommend"
	"github.com/ptelford/cartwright/internal/recommend/intent"
	"github.com/ptelford/cartwright/internal/validation"
)

// maxRequestBody bounds request body size to 1 MiB.
const maxRequestBody = 1 << 20

// RerankerStatus exposes the learned ranking stage's health for the
// health endpoint.
type RerankerStatus interface {
	Available() bool
	ModelVersion() string
}

// Handler serves the recommendation API.
type Handler struct {
	engine   *recommend.Engine
	tracker  *intent.Tracker
	snapshot recommend.SnapshotProvider
	reranker RerankerStatus // optional

	startTime time.Time
	version   string
}

// NewHandler creates the API handler.
func NewHandler(engine *recommend.Engine, tracker *intent.Tracker, snapshot recommend.SnapshotProvider, version string) *Handler {
	return &Handler{
		engine:    engine,
		tracker:   tracker,
		snapshot:  snapshot,
		startTime: time.Now(),
		version:   version,
	}
}

// SetRerankerStatus wires the optional reranker health source.
func (h *Handler) SetRerankerStatus(rs RerankerStatus) {
	h.reranker = rs
}

// recommendRequest is the POST /recommendations body.
type recommendRequest struct {
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id" validate:"required,max=128"`
	Budget     float64           `json:"budget" validate:"min=0"`
	Cart       []cartItemRequest `json:"cart" validate:"required,min=1,dive"`
	Mode       string            `json:"mode" validate:"omitempty,oneof=quality economy balanced"`
	MaxPerItem int               `json:"max_per_item" validate:"min=0,max=10"`
}

// cartItemRequest is one cart line in the request body.
type cartItemRequest struct {
	ProductID   string  `json:"product_id" validate:"required"`
	Title       string  `json:"title"`
	Subcategory string  `json:"subcategory"`
	Quantity    int     `json:"quantity" validate:"min=0"`
	UnitPrice   float64 `json:"unit_price" validate:"min=0"`
}

// sessionEventRequest is the POST /sessions/{id}/events body.
type sessionEventRequest struct {
	Type           string  `json:"type" validate:"required,oneof=view cart_add cart_remove purchase"`
	ProductID      string  `json:"product_id"`
	Price          float64 `json:"price" validate:"min=0"`
	ReferencePrice float64 `json:"reference_price" validate:"min=0"`
}

// Recommendations handles POST /api/v1/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req recommendRequest
	if !h.decodeBody(rw, r, &req) {
		return
	}

	engineReq := recommend.Request{
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Budget:     req.Budget,
		MaxPerItem: req.MaxPerItem,
		RequestID:  logging.RequestIDFromContext(r.Context()),
	}

	if req.Mode != "" {
		mode, ok := intent.ParseMode(req.Mode)
		if !ok {
			rw.BadRequest("unknown mode: " + req.Mode)
			return
		}
		engineReq.ModeOverride = &mode
	}

	for _, item := range req.Cart {
		engineReq.Cart = append(engineReq.Cart, recommend.CartItem{
			ProductID:   item.ProductID,
			Title:       item.Title,
			Subcategory: item.Subcategory,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	resp, err := h.engine.Recommend(r.Context(), engineReq)
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidInput) {
			rw.BadRequest(err.Error())
			return
		}
		logging.Error().Err(err).Msg("recommendation failed")
		rw.InternalError("recommendation failed")
		return
	}

	rw.Success(resp)
}

// SessionEvents handles POST /api/v1/sessions/{id}/events.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		rw.BadRequest("session id is required")
		return
	}

	var req sessionEventRequest
	if !h.decodeBody(rw, r, &req) {
		return
	}

	eventType, ok := intent.ParseEventType(req.Type)
	if !ok {
		rw.BadRequest("unknown event type: " + req.Type)
		return
	}

	h.tracker.Observe(sessionID, intent.Event{
		Type:           eventType,
		ProductID:      req.ProductID,
		Price:          req.Price,
		ReferencePrice: req.ReferencePrice,
		Timestamp:      time.Now(),
	})

	st, _ := h.tracker.State(sessionID)
	rw.Accepted(map[string]interface{}{
		"session_id": sessionID,
		"mode":       st.Mode.String(),
		"ema":        st.EMA,
	})
}

// SessionIntent handles GET /api/v1/sessions/{id}/intent.
func (h *Handler) SessionIntent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sessionID := chi.URLParam(r, "id")
	st, ok := h.tracker.State(sessionID)
	if !ok {
		rw.NotFound("unknown session")
		return
	}

	rw.Success(map[string]interface{}{
		"session_id":  sessionID,
		"mode":        st.Mode.String(),
		"ema":         st.EMA,
		"last_switch": st.LastSwitch,
		"last_seen":   st.LastSeen,
	})
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var snap *catalog.Snapshot
	if h.snapshot != nil {
		snap = h.snapshot.Snapshot()
	}

	health := map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"sessions":       h.tracker.Len(),
	}

	if snap != nil {
		health["catalog"] = map[string]interface{}{
			"version":   snap.Version(),
			"products":  snap.Len(),
			"loaded_at": snap.LoadedAt(),
		}
	}

	reranker := map[string]interface{}{"available": false}
	if h.reranker != nil && h.reranker.Available() {
		reranker["available"] = true
		reranker["model_version"] = h.reranker.ModelVersion()
	}
	health["reranker"] = reranker

	rw.Success(health)
}

// decodeBody decodes and validates a JSON request body, writing the
// error response itself on failure.
func (h *Handler) decodeBody(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		rw.BadRequest("malformed request body: " + err.Error())
		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		var verrs *validation.Errors
		if errors.As(err, &verrs) {
			rw.ValidationError("request validation failed", verrs)
		} else {
			rw.BadRequest(err.Error())
		}
		return false
	}

	return true
}
