// Package metrics exposes vault state and operation outcomes to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/model"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	exchangeRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "yieldvault",
			Subsystem: "ledger",
			Name:      "exchange_rate",
			Help:      "Underlying per share.",
		},
		[]string{"asset"},
	)

	shareSupply = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "yieldvault",
			Subsystem: "ledger",
			Name:      "share_supply",
			Help:      "Total shares outstanding, base units.",
		},
		[]string{"asset"},
	)

	netPrincipal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "yieldvault",
			Subsystem: "ledger",
			Name:      "net_principal",
			Help:      "Principal deposited minus withdrawn, base units.",
		},
		[]string{"asset"},
	)

	accumulatedFee = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "yieldvault",
			Subsystem: "fees",
			Name:      "accumulated",
			Help:      "Performance fee owed and not yet withdrawn, base units.",
		},
		[]string{"asset"},
	)

	reserved = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "yieldvault",
			Subsystem: "queue",
			Name:      "reserved",
			Help:      "Underlying reserved for withdrawal requests, by status.",
		},
		[]string{"asset", "status"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yieldvault",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Vault operations by outcome.",
		},
		[]string{"asset", "op", "result"},
	)

	rateDeferrals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yieldvault",
			Subsystem: "governor",
			Name:      "deferrals_total",
			Help:      "Rate proposals deferred by the governor.",
		},
		[]string{"asset"},
	)

	sweepShortfall = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "yieldvault",
			Subsystem: "bridge",
			Name:      "sweep_shortfall",
			Help:      "Shortfall reported by the last scheduled sweep, base units.",
		},
		[]string{"asset"},
	)
)

func init() {
	Registry.MustRegister(
		exchangeRate,
		shareSupply,
		netPrincipal,
		accumulatedFee,
		reserved,
		operations,
		rateDeferrals,
		sweepShortfall,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveVault publishes the committed state of a vault.
func ObserveVault(v *model.AssetVault) {
	rate, _ := fixedpoint.RateDecimal(v.ExchangeRate).Float64()
	exchangeRate.WithLabelValues(v.Asset).Set(rate)
	shareSupply.WithLabelValues(v.Asset).Set(float64(v.TotalShareSupply))
	netPrincipal.WithLabelValues(v.Asset).Set(float64(v.NetPrincipal()))
	accumulatedFee.WithLabelValues(v.Asset).Set(float64(v.AccumulatedFee))

	var ready uint64
	for _, r := range v.Queue.Requests {
		if r.Status == model.WithdrawalReady {
			ready += r.Amount
		}
	}
	reserved.WithLabelValues(v.Asset, "ready").Set(float64(ready))
	reserved.WithLabelValues(v.Asset, "pending").Set(float64(v.Queue.TotalReserved - ready))
}

// Operation counts one engine operation.
func Operation(asset, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operations.WithLabelValues(asset, op, result).Inc()
}

// RateDeferred counts a governor deferral.
func RateDeferred(asset string) {
	rateDeferrals.WithLabelValues(asset).Inc()
}

// SweepShortfall records the shortfall of the latest sweep.
func SweepShortfall(asset string, shortfall uint64) {
	sweepShortfall.WithLabelValues(asset).Set(float64(shortfall))
}
