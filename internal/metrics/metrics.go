// Package metrics exposes game counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	attempts     *prometheus.CounterVec
	skips        prometheus.Counter
	conflicts    *prometheus.CounterVec
	adminActions *prometheus.CounterVec
	logins       *prometheus.CounterVec
}

// New registers the game collectors with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geohunt_verification_attempts_total",
			Help: "Location verification attempts by outcome.",
		}, []string{"outcome"}),
		skips: f.NewCounter(prometheus.CounterOpts{
			Name: "geohunt_skips_total",
			Help: "Challenges skipped.",
		}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geohunt_write_conflicts_total",
			Help: "Lost compare-and-swap writes by document kind.",
		}, []string{"doc"}),
		adminActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geohunt_admin_actions_total",
			Help: "Admin control actions by name.",
		}, []string{"action"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geohunt_logins_total",
			Help: "Login attempts by role and status.",
		}, []string{"role", "status"}),
	}
}

func (c *Collector) Attempt(outcome string) {
	c.attempts.WithLabelValues(outcome).Inc()
}

func (c *Collector) Skip() {
	c.skips.Inc()
}

func (c *Collector) Conflict(doc string) {
	c.conflicts.WithLabelValues(doc).Inc()
}

func (c *Collector) AdminAction(action string) {
	c.adminActions.WithLabelValues(action).Inc()
}

func (c *Collector) Login(role string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	c.logins.WithLabelValues(role, status).Inc()
}
