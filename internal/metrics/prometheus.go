package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simuagent_chat_duration_seconds",
			Help:    "Chat turn duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"transport"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simuagent_chat_total",
			Help: "Total number of chat turns processed",
		},
		[]string{"status"},
	)

	AgentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simuagent_agents_created_total",
			Help: "Total agents created",
		},
	)

	EvaluationsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simuagent_evaluations_recorded_total",
			Help: "Total evaluations recorded",
		},
	)

	RatingScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simuagent_rating_score",
			Help:    "User rating values",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	ABTestsRun = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simuagent_ab_tests_run_total",
			Help: "Total A/B test runs",
		},
		[]string{"status"},
	)

	FilesUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simuagent_files_uploaded_total",
			Help: "Total knowledge files uploaded",
		},
		[]string{"type"},
	)

	FilesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simuagent_files_processed_total",
			Help: "Total knowledge files processed",
		},
		[]string{"status"},
	)

	TrainingExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simuagent_training_exports_total",
			Help: "Total training data exports",
		},
		[]string{"format"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(AgentsCreated)
	prometheus.MustRegister(EvaluationsRecorded)
	prometheus.MustRegister(RatingScore)
	prometheus.MustRegister(ABTestsRun)
	prometheus.MustRegister(FilesUploaded)
	prometheus.MustRegister(FilesProcessed)
	prometheus.MustRegister(TrainingExports)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
