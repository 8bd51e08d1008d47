package handler

import (
	"net/http"
	"time"

	"github.com/go-subtracker/internal/application/pricehistory"
	"github.com/go-subtracker/internal/application/stats"
	"github.com/go-subtracker/internal/domain"
)

type SavingsEnvelope struct {
	TotalSavings domain.Price `json:"total_savings"`
}

// StatsHandler serves the derived spending views.
type StatsHandler struct {
	svc     stats.Service
	history pricehistory.Service
}

func NewStatsHandler(svc stats.Service, history pricehistory.Service) *StatsHandler {
	return &StatsHandler{svc: svc, history: history}
}

func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *StatsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Analytics(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Calendar defaults to the current month when ?month is absent.
func (h *StatsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	month := r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	c, err := h.svc.Calendar(r.Context(), userID, month)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *StatsHandler) Savings(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	total, err := h.history.TotalSavings(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SavingsEnvelope{TotalSavings: domain.NewPrice(total)})
}
