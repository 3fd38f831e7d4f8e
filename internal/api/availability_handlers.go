package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/availability"
	"github.com/jbxxnn/usebinda/internal/timeutil"
)

func getSlotsHandler(engine *availability.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, serviceID, ok := pathProviderService(w, r)
		if !ok {
			return
		}

		date, err := availability.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		// Optional customer timezone adds local display times; storage
		// and comparison stay UTC.
		var customerLoc *time.Location
		if tz := r.URL.Query().Get("timezone"); tz != "" {
			customerLoc, err = timeutil.LoadLocation(tz)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_timezone", err.Error())
				return
			}
		}

		slots, err := engine.ComputeSlots(r.Context(), providerID, serviceID, date)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		resp := make([]TimeSlotResponse, 0, len(slots))
		for _, s := range slots {
			out := TimeSlotResponse{Start: s.Start, End: s.End, Available: s.Available}
			if customerLoc != nil {
				out.StartLocal = s.Start.In(customerLoc).Format(time.RFC3339)
				out.EndLocal = s.End.In(customerLoc).Format(time.RFC3339)
			}
			resp = append(resp, out)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAvailableDatesHandler(engine *availability.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, serviceID, ok := pathProviderService(w, r)
		if !ok {
			return
		}

		daysAhead := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 366 {
				writeError(w, http.StatusBadRequest, "invalid_days", "days must be an integer between 1 and 366")
				return
			}
			daysAhead = n
		}

		mode, err := availability.ParseScanMode(r.URL.Query().Get("mode"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_mode", "mode must be fast or precise")
			return
		}

		dates, err := engine.ComputeAvailableDates(r.Context(), providerID, serviceID, daysAhead, mode)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		resp := make([]string, 0, len(dates))
		for _, d := range dates {
			resp = append(resp, d.String())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getProfileHandler(repo availability.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		profile, err := repo.GetProfile(r.Context(), providerID)
		if errors.Is(err, availability.ErrProfileNotFound) {
			// Providers that never configured availability see the same
			// defaults the engine uses.
			profile = availability.DefaultProfile(providerID)
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, profilePayload(profile))
	}
}

func putProfileHandler(repo availability.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		var in ProfilePayload
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		profile, err := profileFromPayload(providerID, in)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_profile", err.Error())
			return
		}
		if err := profile.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_profile", err.Error())
			return
		}

		updated, err := repo.UpsertProfile(r.Context(), profile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, profilePayload(updated))
	}
}

func listBlockedPeriodsHandler(repo availability.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		from := time.Now().UTC()
		to := from.AddDate(0, 0, 90)
		if raw := r.URL.Query().Get("from"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
				return
			}
			from = t
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
				return
			}
			to = t
		}

		periods, err := repo.GetBlockedPeriods(r.Context(), providerID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]BlockedPeriodResponse, 0, len(periods))
		for _, bp := range periods {
			resp = append(resp, BlockedPeriodResponse{
				ID:        bp.ID,
				Start:     bp.Start,
				End:       bp.End,
				Title:     bp.Title,
				BlockType: string(bp.BlockType),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createBlockedPeriodHandler(repo availability.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		var req BlockedPeriodRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bp := &availability.BlockedPeriod{
			ProviderID: providerID,
			Start:      req.Start.UTC(),
			End:        req.End.UTC(),
			Title:      req.Title,
			BlockType:  availability.BlockType(req.BlockType),
		}
		if bp.BlockType == "" {
			bp.BlockType = availability.BlockManual
		}
		if err := bp.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_blocked_period", err.Error())
			return
		}

		created, err := repo.CreateBlockedPeriod(r.Context(), bp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, BlockedPeriodResponse{
			ID:        created.ID,
			Start:     created.Start,
			End:       created.End,
			Title:     created.Title,
			BlockType: string(created.BlockType),
		})
	}
}

func deleteBlockedPeriodHandler(repo availability.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}
		id, ok := pathUUID(w, r, "id", "invalid_blocked_period_id")
		if !ok {
			return
		}

		err := repo.DeleteBlockedPeriod(r.Context(), providerID, id)
		if errors.Is(err, availability.ErrBlockedPeriodNotFound) {
			writeError(w, http.StatusNotFound, "blocked_period_not_found", err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAvailabilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, availability.ErrServiceInactive):
		writeError(w, http.StatusNotFound, "service_inactive", err.Error())
	case errors.Is(err, availability.ErrUnknownScanMode):
		writeError(w, http.StatusBadRequest, "invalid_mode", err.Error())
	default:
		// Constraint-source fetch failures surface as errors so callers
		// can tell "no slots" from "could not determine".
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pathProviderService(w http.ResponseWriter, r *http.Request) (providerID, serviceID uuid.UUID, ok bool) {
	providerID, ok = pathUUID(w, r, "providerID", "invalid_provider_id")
	if !ok {
		return
	}
	serviceID, ok = pathUUID(w, r, "serviceID", "invalid_service_id")
	return
}
