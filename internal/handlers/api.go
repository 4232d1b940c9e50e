package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// API error bodies, matching the wire contract the dashboard expects.
const (
	msgUnauthorized = "Unauthorized"
	msgMissing      = "Missing fields"
	msgInvalidBody  = "Invalid request body"
	msgInvalidAmt   = "Invalid amount"
	msgInvalidDate  = "Invalid date"
	msgNotFound     = "Not found"
	msgInternal     = "Internal Server Error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// flexNumber accepts both 12.5 and "12.5"; the dashboard forms submit amounts
// as strings.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexNumber(v)
	return nil
}

// recordPayload is the request body for create and update. Every field is a
// pointer so updates can distinguish "absent" from "set".
type recordPayload struct {
	Title       *string     `json:"title"`
	Amount      *flexNumber `json:"amount"`
	Category    *string     `json:"category"`
	Description *string     `json:"description"`
	Date        *string     `json:"date"`
}

// parseDate accepts the formats the dashboard and the API contract produce.
func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format")
}

// ResourceAPI serves the CRUD contract for one record table. Expenses and
// incomes get one instance each; the contract is identical.
type ResourceAPI struct {
	name     string
	store    *storage.RecordStore
	identify func(*http.Request) (Identity, bool)
}

// Name returns the resource name used in the route path.
func (api *ResourceAPI) Name() string { return api.name }

// List returns all records owned by the caller, ordered by date descending.
func (api *ResourceAPI) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identify(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	records, err := api.store.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List records failed", "error", err, "resource", api.name, "user_id", identity.UserID)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// Create validates and stores a new record owned by the caller.
func (api *ResourceAPI) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identify(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var payload recordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if payload.Title == nil || *payload.Title == "" ||
		payload.Category == nil || *payload.Category == "" ||
		payload.Amount == nil {
		writeError(w, http.StatusBadRequest, msgMissing)
		return
	}
	amount := float64(*payload.Amount)
	if amount <= 0 {
		writeError(w, http.StatusBadRequest, msgInvalidAmt)
		return
	}

	now := time.Now().UTC()
	date := now
	if payload.Date != nil && *payload.Date != "" {
		parsed, err := parseDate(*payload.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidDate)
			return
		}
		date = parsed
	}

	var description *string
	if payload.Description != nil && *payload.Description != "" {
		description = payload.Description
	}

	record := &models.Record{
		Title:       *payload.Title,
		Amount:      amount,
		Category:    *payload.Category,
		Description: description,
		Date:        date,
		UserID:      identity.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := api.store.Insert(r.Context(), record); err != nil {
		slog.ErrorContext(r.Context(), "Create record failed", "error", err, "resource", api.name, "user_id", identity.UserID)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// Update patches the record's provided fields. A record that does not exist
// and a record owned by someone else answer identically with 404.
func (api *ResourceAPI) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identify(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var payload recordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	record, err := api.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && record.UserID != identity.UserID) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Load record failed", "error", err, "resource", api.name)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if payload.Title != nil {
		record.Title = *payload.Title
	}
	if payload.Category != nil {
		record.Category = *payload.Category
	}
	if payload.Amount != nil {
		record.Amount = float64(*payload.Amount)
	}
	if payload.Description != nil {
		if *payload.Description == "" {
			record.Description = nil
		} else {
			record.Description = payload.Description
		}
	}
	if payload.Date != nil && *payload.Date != "" {
		parsed, err := parseDate(*payload.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidDate)
			return
		}
		record.Date = parsed
	}

	if record.Title == "" || record.Category == "" {
		writeError(w, http.StatusBadRequest, msgMissing)
		return
	}
	if record.Amount <= 0 {
		writeError(w, http.StatusBadRequest, msgInvalidAmt)
		return
	}

	record.UpdatedAt = time.Now().UTC()

	// Owner-scoped write: a row deleted since the read above comes back as
	// not found, same as the ownership mismatch.
	if err := api.store.Update(r.Context(), record); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "Update record failed", "error", err, "resource", api.name, "record_id", record.ID)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Delete removes a record owned by the caller. Absent and not-owned answer
// identically with 404.
func (api *ResourceAPI) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identify(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	record, err := api.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && record.UserID != identity.UserID) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Load record failed", "error", err, "resource", api.name)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if err := api.store.Delete(r.Context(), record.ID, identity.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "Delete record failed", "error", err, "resource", api.name, "record_id", record.ID)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
