package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SecurityMetrics exposes counters for security-relevant outcomes. All fields
// are nil-safe from the caller's perspective via the Inc helpers.
type SecurityMetrics struct {
	LoginFailures   prometheus.Counter
	Lockouts        prometheus.Counter
	ReuseDetections prometheus.Counter
	RefreshRejects  prometheus.Counter
}

// NewSecurityMetrics registers the security counters with the registerer.
func NewSecurityMetrics(reg prometheus.Registerer) (*SecurityMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &SecurityMetrics{
		LoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "login_failures_total",
			Help:      "Total number of failed password logins.",
		}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "account_lockouts_total",
			Help:      "Total number of accounts locked after repeated failures.",
		}),
		ReuseDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "token_reuse_detections_total",
			Help:      "Total number of refresh-token replays that burned a family.",
		}),
		RefreshRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "refresh_secret_rejects_total",
			Help:      "Total number of refresh presentations whose secret failed hash verification against a live session.",
		}),
	}

	for _, c := range []prometheus.Counter{m.LoginFailures, m.Lockouts, m.ReuseDetections, m.RefreshRejects} {
		if err := reg.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if _, ok := already.ExistingCollector.(prometheus.Counter); ok {
					continue
				}
			}
			return nil, fmt.Errorf("register security counter: %w", err)
		}
	}

	return m, nil
}

// IncLoginFailure increments the failed-login counter.
func (m *SecurityMetrics) IncLoginFailure() {
	if m != nil && m.LoginFailures != nil {
		m.LoginFailures.Inc()
	}
}

// IncLockout increments the lockout counter.
func (m *SecurityMetrics) IncLockout() {
	if m != nil && m.Lockouts != nil {
		m.Lockouts.Inc()
	}
}

// IncReuseDetection increments the reuse-detection counter.
func (m *SecurityMetrics) IncReuseDetection() {
	if m != nil && m.ReuseDetections != nil {
		m.ReuseDetections.Inc()
	}
}

// IncRefreshReject increments the bad-secret counter.
func (m *SecurityMetrics) IncRefreshReject() {
	if m != nil && m.RefreshRejects != nil {
		m.RefreshRejects.Inc()
	}
}
