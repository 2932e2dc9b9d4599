package metrics

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the process collectors. Each instance uses its own
// prometheus.Registry so tests can build several without clashing.
type Registry struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	pollsCreated  *prometheus.CounterVec
	votesCast     *prometheus.CounterVec
	pollsResolved *prometheus.CounterVec
	houseFees     prometheus.Counter
	claimsPaid    *prometheus.CounterVec
	payoutsTotal  prometheus.Counter
	claimsSkipped *prometheus.CounterVec
}

func New(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		pollsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_created_total",
			Help:      "Polls created, split by demo mode.",
		}, []string{"demo"}),
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Votes recorded, split by demo mode.",
		}, []string{"demo"}),
		pollsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_resolved_total",
			Help:      "Poll resolutions, split by emergency path.",
		}, []string{"emergency"}),
		houseFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "house_fees_base_units_total",
			Help:      "House fees locked at resolution, in base units.",
		}),
		claimsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_paid_total",
			Help:      "Winnings claims paid, split by batch path.",
		}, []string{"batch"}),
		payoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_base_units_total",
			Help:      "Winnings transferred out of custody, in base units.",
		}),
		claimsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_claims_skipped_total",
			Help:      "Batch claim entries skipped, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpLatency,
		r.pollsCreated,
		r.votesCast,
		r.pollsResolved,
		r.houseFees,
		r.claimsPaid,
		r.payoutsTotal,
		r.claimsSkipped,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Middleware records one observation per request, labelled with the matched
// route pattern so path parameters do not explode label cardinality.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, req)
		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		r.httpLatency.WithLabelValues(route).Observe(time.Since(started).Seconds())
	})
}

func (r *Registry) PollCreated(demoMode bool) {
	r.pollsCreated.WithLabelValues(strconv.FormatBool(demoMode)).Inc()
}

func (r *Registry) VoteCast(demoMode bool) {
	r.votesCast.WithLabelValues(strconv.FormatBool(demoMode)).Inc()
}

func (r *Registry) PollResolved(emergency bool, houseFee entities.Amount) {
	r.pollsResolved.WithLabelValues(strconv.FormatBool(emergency)).Inc()
	r.houseFees.Add(amountFloat(houseFee))
}

func (r *Registry) WinningsClaimed(batch bool, amount entities.Amount) {
	r.claimsPaid.WithLabelValues(strconv.FormatBool(batch)).Inc()
	r.payoutsTotal.Add(amountFloat(amount))
}

func (r *Registry) ClaimSkipped(reason string) {
	r.claimsSkipped.WithLabelValues(reason).Inc()
}

func amountFloat(amount entities.Amount) float64 {
	amount = entities.AmountOrZero(amount)
	value, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	return value
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
