package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/model"
	"github.com/pinwater/waterwatch/pkg/geocode"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := locateQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := s.locator.Locate(r.Context(), q)
	if err != nil {
		if eris.Is(err, geocode.ErrNoInput) || eris.Is(err, geocode.ErrNoMatch) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("api: geocode failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "location service unavailable")
		return
	}

	report := s.assembler.Assemble(r.Context(), loc)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	state := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("state")))
	if state == "" {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	if _, ok := model.FIPSFor(state); !ok {
		writeError(w, http.StatusBadRequest, "unknown state code")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, results := s.assembler.Signals(r.Context(), state, limit)

	sources := make(map[string]any, len(results))
	for d, res := range results {
		entry := map[string]any{"status": res.Status}
		if res.ErrorKind != "" {
			entry["error_kind"] = res.ErrorKind
		}
		sources[string(d)] = entry
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":         state,
		"signals":       events,
		"sources":       sources,
		"source_health": s.health.Summary(),
	})
}

func (s *Server) handleCacheBuild(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	status, err := s.coord.TriggerBuild(domain)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"status": status})
	case eris.Is(err, cache.ErrBuildInProgress):
		// Informational, not an error: report the running build's status.
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": status,
			"note":   "build already in progress",
		})
	case eris.Is(err, cache.ErrUnknownDomain):
		writeError(w, http.StatusNotFound, "unknown cache domain")
	default:
		zap.L().Error("api: trigger build failed", zap.String("domain", domain), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "build trigger failed")
	}
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if !s.knownDomain(domain) {
		writeError(w, http.StatusNotFound, "unknown cache domain")
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status(domain))
}

func (s *Server) handleCacheBulk(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if !s.knownDomain(domain) {
		writeError(w, http.StatusNotFound, "unknown cache domain")
		return
	}

	units := s.store.Snapshot(domain)
	payload := make(map[string]any, len(units))
	for key, unit := range units {
		payload[key] = unit.Payload
	}

	w.Header().Set("Cache-Control", "max-age=300, stale-while-revalidate=3600")
	writeJSON(w, http.StatusOK, map[string]any{
		"domain": domain,
		"status": s.coord.Status(domain),
		"units":  payload,
	})
}

func (s *Server) knownDomain(domain string) bool {
	for _, d := range s.coord.Domains() {
		if d == domain {
			return true
		}
	}
	return false
}

// locateQuery parses the location query parameters. Coordinates must come
// as a lat/lon pair.
func locateQuery(r *http.Request) (geocode.Query, error) {
	params := r.URL.Query()
	q := geocode.Query{
		Zip:     params.Get("zip"),
		Address: params.Get("address"),
		State:   params.Get("state"),
	}

	latRaw, lonRaw := params.Get("lat"), params.Get("lon")
	if latRaw != "" || lonRaw != "" {
		lat, latErr := strconv.ParseFloat(latRaw, 64)
		lon, lonErr := strconv.ParseFloat(lonRaw, 64)
		if latErr != nil || lonErr != nil {
			return q, eris.New("lat and lon must both be valid decimal degrees")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return q, eris.New("lat/lon out of range")
		}
		q.Latitude, q.Longitude = &lat, &lon
	}

	if q.Latitude == nil && q.Zip == "" && q.Address == "" {
		return q, eris.New("one of lat/lon, zip, or address is required")
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
