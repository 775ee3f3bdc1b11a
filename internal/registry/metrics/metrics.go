package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module. Tracks creation and
// transfer volume, transfer failures by error code, and critical path
// durations.
type Metrics struct {
	ProductsCreated  prometheus.Counter
	Transfers        prometheus.Counter
	TransferFailures *prometheus.CounterVec
	CreateDuration   prometheus.Histogram
	TransferDuration prometheus.Histogram
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		ProductsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_products_created_total",
			Help: "Total number of products registered",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provenance_transfers_total",
			Help: "Total number of successful ownership transfers",
		}),
		TransferFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_transfer_failures_total",
			Help: "Total number of rejected ownership transfers by error code",
		}, []string{"code"}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "provenance_create_product_duration_seconds",
			Help:    "Duration of CreateProduct operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "provenance_transfer_ownership_duration_seconds",
			Help:    "Duration of TransferOwnership operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementProductsCreated records a successful product registration.
func (m *Metrics) IncrementProductsCreated() {
	m.ProductsCreated.Inc()
}

// IncrementTransfers records a successful ownership transfer.
func (m *Metrics) IncrementTransfers() {
	m.Transfers.Inc()
}

// IncrementTransferFailures records a rejected transfer by error code.
func (m *Metrics) IncrementTransferFailures(code string) {
	m.TransferFailures.WithLabelValues(code).Inc()
}

// ObserveCreate records the duration of a CreateProduct operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveTransfer records the duration of a TransferOwnership operation.
func (m *Metrics) ObserveTransfer(start time.Time) {
	m.TransferDuration.Observe(time.Since(start).Seconds())
}
