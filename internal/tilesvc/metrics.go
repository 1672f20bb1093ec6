package tilesvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileswipe_api_requests_total",
		Help: "Total tile service requests by route and status class",
	}, []string{"route", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tileswipe_api_request_duration_ms",
		Help:    "Tile service request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	MotherTilesServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tileswipe_api_mother_tiles_total",
		Help: "Total mother tiles returned by /api/tiles",
	})
	FeaturesServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tileswipe_api_features_total",
		Help: "Total features returned by /api/geojson",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(MotherTilesServed)
	prometheus.MustRegister(FeaturesServed)
}

// MetricsHandler exposes the registered metrics for scraping.
func MetricsHandler() http.Handler { return promhttp.Handler() }
