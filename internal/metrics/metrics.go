package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GamesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guessgame_games_created_total",
		Help: "Games created.",
	})

	Guesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guessgame_guesses_total",
		Help: "Guess submissions by result (ok, an engine error code, or error).",
	}, []string{"result"})

	Reveals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guessgame_reveals_total",
		Help: "Reveal attempts by result (ok, an engine error code, or error).",
	}, []string{"result"})

	OpenGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guessgame_open_games",
		Help: "Games currently accepting guesses.",
	})

	PayoutWei = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guessgame_payout_wei_total",
		Help: "Wei paid out to winners. Float precision, for dashboards only.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guessgame_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// Result labels an outcome: "ok" for nil, the engine code when there is one,
// "error" otherwise.
func Result(err error, code string) string {
	switch {
	case err == nil:
		return "ok"
	case code != "":
		return code
	default:
		return "error"
	}
}

// AddWei adds a wei amount to a float counter.
func AddWei(c prometheus.Counter, wei *big.Int) {
	f, _ := new(big.Float).SetInt(wei).Float64()
	c.Add(f)
}
