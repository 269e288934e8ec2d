// internal/server/handlers/trend.go

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"trendcraft/internal/catalog"
	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

// CatalogView is the read-only catalog surface the API exposes
type CatalogView interface {
	Categories() []catalog.CategoryDef
	Niches() []string
}

// TrendHandler handles trend-related HTTP requests
type TrendHandler struct {
	discoverer trend.Discoverer
	catalog    CatalogView
	logger     logging.Logger
}

// NewTrendHandler creates a new trend handler
func NewTrendHandler(discoverer trend.Discoverer, cat CatalogView, logger logging.Logger) *TrendHandler {
	return &TrendHandler{
		discoverer: discoverer,
		catalog:    cat,
		logger:     logger,
	}
}

// GetTrends returns stored trends
func (h *TrendHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), nil)
		return
	}

	trends, err := h.discoverer.GetTrends(r.Context(), filter)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, "Failed to get trends", err)
		return
	}

	respondWithJSON(w, http.StatusOK, trends)
}

// GetTrend returns a specific trend by ID
func (h *TrendHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "Missing trend ID", nil)
		return
	}

	t, err := h.discoverer.GetTrendByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, trend.ErrTrendNotFound) {
			respondWithError(w, h.logger, http.StatusNotFound, "Trend not found", nil)
		} else {
			respondWithError(w, h.logger, http.StatusInternalServerError, "Failed to get trend", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, t)
}

// RankTrends returns stored trends ranked by alignment with a brand niche
func (h *TrendHandler) RankTrends(w http.ResponseWriter, r *http.Request) {
	niche := strings.TrimSpace(r.URL.Query().Get("niche"))
	if niche == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "Missing niche", nil)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), nil)
		return
	}
	// limit bounds the ranking; every matching trend is scored
	k := filter.Limit
	filter.Limit, filter.Offset = 0, 0

	ranked, err := h.discoverer.RankForNiche(r.Context(), filter, niche, k)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, "Failed to rank trends", err)
		return
	}

	respondWithJSON(w, http.StatusOK, ranked)
}

// Discover runs one discovery pass
func (h *TrendHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req trend.DiscoverRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if req.Category == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "Missing category", nil)
		return
	}

	result := h.discoverer.Discover(r.Context(), req)
	if result.Success {
		respondWithJSON(w, http.StatusOK, result)
		return
	}

	if result.ErrorKind == trend.KindRateLimited && result.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
	}
	respondWithJSON(w, StatusForKind(result.ErrorKind), result)
}

// GetCatalog lists discovery categories and brand niches
func (h *TrendHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"categories": h.catalog.Categories(),
		"niches":     h.catalog.Niches(),
	})
}

// StatusForKind maps a discovery error kind to an HTTP status
func StatusForKind(kind trend.Kind) int {
	switch kind {
	case trend.KindInvalidCategory:
		return http.StatusBadRequest
	case trend.KindRateLimited:
		return http.StatusTooManyRequests
	case trend.KindNoQualityItems:
		return http.StatusUnprocessableEntity
	case trend.KindAuthFailure, trend.KindSourceFetchFailure, trend.KindSynthesisFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseFilter reads category, source, categorySource, sort and limit
func parseFilter(r *http.Request) (trend.Filter, error) {
	q := r.URL.Query()
	var filter trend.Filter

	if v := q.Get("category"); v != "" {
		filter.Category = trend.ParseCategory(v)
		if !strings.EqualFold(string(filter.Category), v) {
			return filter, fmt.Errorf("unknown category %q", v)
		}
	}
	if v := q.Get("source"); v != "" {
		filter.Source = trend.Source(v)
		if !filter.Source.Valid() {
			return filter, fmt.Errorf("unknown source %q", v)
		}
	}
	filter.CategorySource = trend.CategoryKey(q.Get("categorySource"))

	if v := q.Get("sort"); v != "" {
		filter.SortBy = trend.SortField(v)
		if !filter.SortBy.Valid() {
			return filter, fmt.Errorf("unknown sort field %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit %q", v)
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset %q", v)
		}
		filter.Offset = offset
	}
	return filter, nil
}
