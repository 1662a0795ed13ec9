package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/leadscore/internal/filtering"
	"github.com/spigell/leadscore/internal/leads"
	"github.com/spigell/leadscore/internal/logger"
	"github.com/spigell/leadscore/internal/scoring"
	"github.com/spigell/leadscore/internal/store"
)

const (
	defaultResultsLimit = 100
	maxUploadErrors     = 10
	// multipart framing on top of the CSV payload
	uploadOverhead = 1 << 20
)

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"version":   h.version,
		"timestamp": now(),
	})
}

func (h *Handler) createOffer(w http.ResponseWriter, r *http.Request) {
	var input leads.Offer
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, CodeValidation, "Invalid JSON body", err.Error()))
		return
	}

	offer, err := leads.NewOffer(input, now())
	if err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, CodeValidation, "Invalid offer data", err.Error()))
		return
	}

	h.store.SetOffer(offer)
	h.logger.Info("offer saved", logger.OfferFields(offer)...)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"offerId": offer.ID,
		"message": "Offer created successfully",
	})
}

func (h *Handler) getOffer(w http.ResponseWriter, _ *http.Request) {
	offer := h.store.Offer()
	if offer == nil {
		writeError(w, newAPIError(http.StatusNotFound, CodeNotFound, "No offer found", nil))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"offer":   offer,
	})
}

func (h *Handler) uploadLeads(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, leads.MaxCSVSize+uploadOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, newAPIError(http.StatusBadRequest, CodeValidation, "File size exceeds 10MB limit", nil))
			return
		}
		writeError(w, newAPIError(http.StatusBadRequest, CodeValidation, "No file provided", nil))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, newAPIError(http.StatusBadRequest, CodeValidation, "File must be CSV format", nil))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, leads.MaxCSVSize+1))
	if err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, CodeProcessing, "Failed to read CSV", err.Error()))
		return
	}

	content := string(data)
	if err := leads.ValidateCSVFile(int64(len(data)), content); err != nil {
		writeError(w, err)
		return
	}

	parsed, err := leads.ParseCSV(strings.NewReader(content))
	if err != nil {
		if errors.Is(err, leads.ErrInvalid) {
			writeError(w, err)
			return
		}
		writeError(w, newAPIError(http.StatusBadRequest, CodeProcessing, err.Error(), nil))
		return
	}

	if len(parsed.Valid) == 0 {
		writeError(w, newAPIError(http.StatusBadRequest, CodeValidation, "No valid leads found in CSV",
			map[string]any{"errors": parsed.Invalid}))
		return
	}

	uploadID := uuid.NewString()
	created := now()
	batch := make([]*leads.Lead, 0, len(parsed.Valid))
	for _, input := range parsed.Valid {
		batch = append(batch, input.ToLead(uploadID, created))
	}
	h.store.AddLeads(batch, uploadID)

	h.logger.Info("leads uploaded",
		zap.String(logger.FieldUploadID, uploadID),
		zap.Int("valid", len(parsed.Valid)),
		zap.Int("invalid", len(parsed.Invalid)),
	)

	body := map[string]any{
		"success":      true,
		"uploadId":     uploadID,
		"totalLeads":   len(parsed.Valid) + len(parsed.Invalid),
		"validLeads":   len(parsed.Valid),
		"invalidLeads": len(parsed.Invalid),
	}
	if len(parsed.Invalid) > 0 {
		body["errors"] = parsed.Invalid[:min(len(parsed.Invalid), maxUploadErrors)]
	}

	writeJSON(w, http.StatusCreated, body)
}

func (h *Handler) listLeads(w http.ResponseWriter, r *http.Request) {
	batch := h.store.Leads(r.URL.Query().Get("uploadId"))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"total":   len(batch),
		"leads":   batch,
	})
}

func (h *Handler) startScoring(w http.ResponseWriter, r *http.Request) {
	uploadID := r.URL.Query().Get("uploadId")

	if _, err := h.runner.Start(r.Context(), uploadID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("scoring started", zap.String(logger.FieldUploadID, uploadID))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"message":   "Scoring pipeline started",
		"statusUrl": "/score/status",
	})
}

func (h *Handler) scoringStatus(w http.ResponseWriter, _ *http.Request) {
	status := h.runner.Status()
	if status.State == scoring.StateIdle {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"status":  scoring.StateIdle,
			"message": "No scoring operation has been initiated",
		})
		return
	}

	body := map[string]any{
		"success":  true,
		"status":   status.State,
		"progress": status.Progress,
	}
	if status.StartedAt != nil {
		body["startedAt"] = status.StartedAt
	}
	if status.CompletedAt != nil {
		body["completedAt"] = status.CompletedAt
	}
	if status.Summary != nil {
		body["summary"] = status.Summary
	}
	if status.Error != "" {
		body["error"] = status.Error
	}

	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := &filtering.Query{
		UploadID: query.Get("uploadId"),
		Intent:   query.Get("intent"),
	}

	if raw := query.Get("minScore"); raw != "" {
		minScore, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, newAPIError(http.StatusBadRequest, CodeValidation, "minScore must be an integer", nil))
			return
		}
		q.MinScore = &minScore
	}

	limit, err := intParam(query.Get("limit"), "limit", defaultResultsLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(query.Get("offset"), "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	deps := filtering.Deps{Logger: h.logger, Leads: h.store}
	filtered, err := filtering.Run(r.Context(), q, deps, filtering.Default(), h.store.Results())
	if err != nil {
		writeError(w, err)
		return
	}

	views := store.Views(filtered, h.store)
	start := min(offset, len(views))
	end := start + min(limit, len(views)-start)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"total":   len(views),
		"limit":   limit,
		"offset":  offset,
		"results": views[start:end],
	})
}

func (h *Handler) resultsSummary(w http.ResponseWriter, _ *http.Request) {
	summary := store.Summarize(h.store.Results())
	if summary == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "No scoring results available",
			"summary": nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": summary,
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, _ *http.Request) {
	results := h.store.Results()
	if len(results) == 0 {
		writeError(w, newAPIError(http.StatusNotFound, CodeNotFound, "No results to export", nil))
		return
	}

	var buf bytes.Buffer
	if err := store.WriteCSV(&buf, results, h.store); err != nil {
		h.logger.Error("export results", zap.Error(err))
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scoring-results-%d.csv"`, now().UnixMilli()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) exportJSON(w http.ResponseWriter, _ *http.Request) {
	records := store.ExportRecords(h.store.Results(), h.store)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"exportedAt":   now(),
		"totalRecords": len(records),
		"data":         records,
	})
}

func intParam(raw, name string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, newAPIError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("%s must be a non-negative integer", name), nil)
	}
	return value, nil
}
