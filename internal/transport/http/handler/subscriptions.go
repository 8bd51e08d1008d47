package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-subtracker/internal/application/pricehistory"
	"github.com/go-subtracker/internal/application/subscription"
	"github.com/go-subtracker/internal/domain"
)

// SubscriptionHandler handles subscription CRUD and per-subscription price history.
type SubscriptionHandler struct {
	svc     subscription.Service
	history pricehistory.Service
}

func NewSubscriptionHandler(svc subscription.Service, history pricehistory.Service) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, history: history}
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	subs, err := h.svc.List(r.Context(), userID, subscription.ListQuery{
		Sort:   q.Get("sort"),
		Status: domain.SubscriptionStatus(q.Get("status")),
		ListID: q.Get("list_id"),
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreateSubscriptionRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.svc.Create(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// PreviewImport reports which incoming records collide with existing
// subscriptions by name. Nothing is written.
func (h *SubscriptionHandler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.ImportRequest
	if !decode(w, r, &req) {
		return
	}
	preview, err := h.svc.PreviewImport(r.Context(), userID, req.Subscriptions)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *SubscriptionHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.ImportRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Import(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateSubscriptionRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionHandler) ListPriceHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	items, err := h.history.ListBySubscription(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *SubscriptionHandler) CreatePriceHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreatePriceHistoryRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.history.Create(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
