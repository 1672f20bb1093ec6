package tilesvc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewHandler serves POST /api/tiles, POST /api/geojson and GET /metrics
// backed by the in-process implementation.
func NewHandler(log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{log: log}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/api/tiles", h.instrument("tiles", h.tiles))
	r.Post("/api/geojson", h.instrument("geojson", h.geojson))
	r.Handle("/metrics", MetricsHandler())
	return r
}

type handler struct {
	log *zap.Logger
}

func (h *handler) tiles(w http.ResponseWriter, r *http.Request) int {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Info("tiles request malformed", zap.Error(err))
		return writeError(w, http.StatusBadRequest, "Invalid request body.")
	}
	resp, err := decompose(req)
	if errors.Is(err, ErrInvalidAOI) {
		h.log.Info("invalid aoi", zap.Error(err))
		return writeError(w, http.StatusBadRequest, "Invalid AOI format. Please provide a valid GeoJSON polygon.")
	}
	if errors.Is(err, ErrInvalidRequest) {
		return writeError(w, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.log.Error("generate tiles", zap.Error(err))
		return writeError(w, http.StatusInternalServerError, "Failed to generate tiles. Please check your input.")
	}
	MotherTilesServed.Add(float64(len(resp.MotherTiles)))
	return writeJSON(w, http.StatusOK, resp)
}

func (h *handler) geojson(w http.ResponseWriter, r *http.Request) int {
	var req GeometryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return writeError(w, http.StatusBadRequest, "Invalid request body.")
	}
	doc, err := featureCollection(req.TileIDs, req.Category)
	if err != nil {
		h.log.Error("generate geojson", zap.Error(err))
		return writeError(w, http.StatusInternalServerError, "Failed to generate GeoJSON. Please check your tile data.")
	}
	FeaturesServed.Add(float64(len(req.TileIDs)))
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
	return http.StatusOK
}

func (h *handler) instrument(route string, fn func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := fn(w, r)
		RequestsTotal.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
		RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		h.log.Debug("api request", zap.String("route", route), zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	return status
}

func writeError(w http.ResponseWriter, status int, detail string) int {
	return writeJSON(w, status, errorBody{Detail: detail})
}
