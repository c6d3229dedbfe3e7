package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"divergenceBot/internal/domain"
)

const namespace = "divergence_bot"

// Recorder implements ports.Metrics using Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	cycleDuration    prometheus.Histogram
	cycleFailures    *prometheus.CounterVec
	positionSize     prometheus.Gauge
	oscillator       prometheus.Gauge
	signals          *prometheus.CounterVec
	ordersSubmitted  *prometheus.CounterVec
	ordersRejected   *prometheus.CounterVec
	tradesClosed     *prometheus.CounterVec
	realizedPnLTotal prometheus.Counter
	lastRealizedPnL  prometheus.Gauge
}

// New creates a recorder whose collectors live on their own registry, so
// several recorders (one per test) never collide on registration.
func New(symbol string) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	labels := prometheus.Labels{"symbol": symbol}

	return &Recorder{
		registry: reg,
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "cycle_duration_seconds",
			Help:        "Duration of one polling cycle in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		cycleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cycle_failures_total",
			Help:        "Failed polling cycles by failure class",
			ConstLabels: labels,
		}, []string{"class"}),
		positionSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "position_size",
			Help:        "Absolute size of the open position, 0 when flat",
			ConstLabels: labels,
		}),
		oscillator: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "oscillator_value",
			Help:        "Latest smoothed PPO value",
			ConstLabels: labels,
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "signals_total",
			Help:        "Divergence signals detected by side",
			ConstLabels: labels,
		}, []string{"side"}),
		ordersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "orders_submitted_total",
			Help:        "Orders accepted by the exchange by side",
			ConstLabels: labels,
		}, []string{"side"}),
		ordersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "orders_rejected_total",
			Help:        "Signals that did not become orders, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		tradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "trades_closed_total",
			Help:        "Reconciled closed trades by result",
			ConstLabels: labels,
		}, []string{"result"}),
		realizedPnLTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "realized_pnl_abs_total",
			Help:        "Sum of absolute realized PnL of closed trades",
			ConstLabels: labels,
		}),
		lastRealizedPnL: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_realized_pnl",
			Help:        "Realized PnL of the most recent closed trade",
			ConstLabels: labels,
		}),
	}
}

// Registry exposes the registry the recorder's collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveCycle records the duration of one cycle.
func (r *Recorder) ObserveCycle(seconds float64) {
	r.cycleDuration.Observe(seconds)
}

// CycleFailed counts a failed cycle.
func (r *Recorder) CycleFailed(class string) {
	r.cycleFailures.WithLabelValues(class).Inc()
}

// SetPositionSize records the current absolute position size.
func (r *Recorder) SetPositionSize(size float64) {
	r.positionSize.Set(size)
}

// SetOscillator records the latest smoothed oscillator value.
func (r *Recorder) SetOscillator(value float64) {
	r.oscillator.Set(value)
}

// SignalDetected counts a classified divergence.
func (r *Recorder) SignalDetected(side domain.OrderSide) {
	r.signals.WithLabelValues(string(side)).Inc()
}

// OrderSubmitted counts an order the exchange accepted.
func (r *Recorder) OrderSubmitted(side domain.OrderSide) {
	r.ordersSubmitted.WithLabelValues(string(side)).Inc()
}

// OrderRejected counts a signal that was dropped before or at submission.
func (r *Recorder) OrderRejected(reason string) {
	r.ordersRejected.WithLabelValues(reason).Inc()
}

// TradeClosed records a reconciled closed trade.
func (r *Recorder) TradeClosed(trade *domain.ClosedTrade) {
	if trade == nil {
		return
	}
	result := "loss"
	if trade.IsWin() {
		result = "win"
	}
	r.tradesClosed.WithLabelValues(result).Inc()
	pnl := trade.RealizedPnL
	if pnl < 0 {
		pnl = -pnl
	}
	r.realizedPnLTotal.Add(pnl)
	r.lastRealizedPnL.Set(trade.RealizedPnL)
}
