package trader

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxRoundsLearned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_rounds_learned_total",
			Help: "Rounds that produced a price table update",
		},
	)

	mtxLearnSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_learn_skipped_total",
			Help: "Rounds skipped because no reward was available",
		},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders placed",
		},
		[]string{"side"}, // bid|ask
	)

	mtxWeightsSaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_weights_saves_total",
			Help: "Completed weight snapshot writes",
		},
	)

	gaugeProjectedSoC = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_projected_soc",
			Help: "Projected state of charge for the next settlement",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxRoundsLearned,
		mtxLearnSkipped,
		mtxOrders,
		mtxWeightsSaves,
		gaugeProjectedSoC,
	)
}
