package handler

import (
	"context"
	"net/http"

	"github.com/go-subtracker/internal/application/reminder"
	"github.com/go-subtracker/internal/domain"
)

// ReminderRunner runs reminder passes on demand.
type ReminderRunner interface {
	Evaluate(ctx context.Context, userID string) (reminder.Result, error)
	StartSweep() error
}

type RunEnvelope struct {
	Created    []domain.Notification `json:"created"`
	EmailsSent int                   `json:"emails_sent"`
	SMSSent    int                   `json:"sms_sent"`
}

type ReminderHandler struct {
	runner ReminderRunner
}

func NewReminderHandler(runner ReminderRunner) *ReminderHandler {
	return &ReminderHandler{runner: runner}
}

// Run evaluates the caller's reminders now.
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	res, err := h.runner.Evaluate(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	created := res.Created
	if created == nil {
		created = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, RunEnvelope{Created: created, EmailsSent: res.EmailsSent, SMSSent: res.SMSSent})
}

// Sweep starts a sweep over every user and answers before it finishes.
func (h *ReminderHandler) Sweep(w http.ResponseWriter, _ *http.Request) {
	if err := h.runner.StartSweep(); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "sweep started"})
}
