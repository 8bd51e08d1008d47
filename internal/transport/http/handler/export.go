package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-subtracker/internal/application/export"
)

type ExportHandler struct {
	svc export.Service
}

func NewExportHandler(svc export.Service) *ExportHandler { return &ExportHandler{svc: svc} }

// Download streams the export document as a JSON attachment.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.Build(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	filename := fmt.Sprintf("subscriptions-export-%s.json", doc.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
}

func (h *ExportHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Archive(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
