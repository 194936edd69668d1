package host

import "github.com/prometheus/client_golang/prometheus"

var ChangesCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "automerge",
	Subsystem: "replica",
	Name:      "changes_committed",
}, []string{"origin"})

var ApplyFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "automerge",
	Subsystem: "replica",
	Name:      "apply_failures",
}, []string{"origin"})

var CommitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "automerge",
	Subsystem: "replica",
	Name:      "commit_duration_ms",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
}, []string{"origin"})

var HosesDropped = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "automerge",
	Subsystem: "replica",
	Name:      "hoses_dropped",
})

// Register adds the replica metrics and the storage collector to reg.
func (r *Replica) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		ChangesCommitted, ApplyFailures, CommitDuration, HosesDropped, r.collector,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
