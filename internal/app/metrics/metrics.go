package metrics

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/errors"
)

var (
	// Registry holds the exchange's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	registryTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nft_exchange",
			Subsystem: "registry",
			Name:      "transitions_total",
			Help:      "Mint request and asset state transitions.",
		},
		[]string{"transition"},
	)

	marketOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nft_exchange",
			Subsystem: "market",
			Name:      "operations_total",
			Help:      "Marketplace operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nft_exchange",
			Subsystem: "market",
			Name:      "settlements_total",
			Help:      "Completed settlements per denomination.",
		},
		[]string{"denomination", "path"},
	)

	settlementVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nft_exchange",
			Subsystem: "market",
			Name:      "settlement_volume",
			Help:      "Settled volume in whole units (18 decimals assumed).",
		},
		[]string{"denomination"},
	)

	transferFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nft_exchange",
			Subsystem: "market",
			Name:      "transfer_failures_total",
			Help:      "Operations aborted by a failed value transfer.",
		},
		[]string{"operation"},
	)

	openListings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nft_exchange",
			Subsystem: "market",
			Name:      "open_listings",
			Help:      "Asks currently held in escrow.",
		},
	)
)

func init() {
	Registry.MustRegister(
		registryTransitions,
		marketOperations,
		settlements,
		settlementVolume,
		transferFailures,
		openListings,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition counts a registry state transition such as "confirm".
func RecordTransition(transition string) {
	registryTransitions.WithLabelValues(transition).Inc()
}

// RecordMarketOperation counts an operation under the kind of err, or "ok".
func RecordMarketOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		if kind := errors.KindOf(err); kind != "" {
			result = string(kind)
		} else {
			result = "error"
		}
	}
	marketOperations.WithLabelValues(operation, result).Inc()
	if errors.IsTransferFailure(err) {
		RecordTransferFailure(operation)
	}
}

// RecordTransferFailure counts a value transfer that aborted operation.
func RecordTransferFailure(operation string) {
	transferFailures.WithLabelValues(operation).Inc()
}

// RecordSettlement counts a settlement and adds its price to the volume.
func RecordSettlement(denomination chain.Address, path string, price *big.Int) {
	label := denominationLabel(denomination)
	settlements.WithLabelValues(label, path).Inc()
	if price == nil {
		return
	}
	units, _ := new(big.Float).Quo(new(big.Float).SetInt(price), big.NewFloat(1e18)).Float64()
	settlementVolume.WithLabelValues(label).Add(units)
}

// SetOpenListings publishes the number of escrowed asks.
func SetOpenListings(n int) {
	openListings.Set(float64(n))
}

func denominationLabel(denom chain.Address) string {
	if denom.IsNative() {
		return "native"
	}
	return string(denom)
}
