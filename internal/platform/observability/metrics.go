package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Parse outcome labels.
const (
	OutcomeRelayed       = "relayed"
	OutcomeNoWatermark   = "no_watermark"
	OutcomeEmpty         = "empty"
	OutcomeNoPair        = "no_pair"
	OutcomeDuplicate     = "duplicate"
	OutcomeNoDestination = "no_destination"
	OutcomeError         = "error"
)

var (
	ImagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_images_received_total",
		Help: "The total number of image attachments received",
	}, []string{"kind"})

	OCRRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_ocr_request_duration_seconds",
		Help:    "Duration of OCR requests",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"engine"})

	OCRRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_ocr_requests_total",
		Help: "The total number of OCR requests by result",
	}, []string{"engine", "status"})

	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_images_processed_total",
		Help: "The total number of processed images by outcome",
	}, []string{"outcome"})

	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_sent_total",
		Help: "The total number of outbound card messages by destination and status",
	}, []string{"destination", "status"})

	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_commands_handled_total",
		Help: "The total number of bot commands handled",
	}, []string{"command"})
)
