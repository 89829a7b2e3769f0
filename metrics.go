package caseauth

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID int

const (
	// MetricSignupSuccess counts completed registrations.
	MetricSignupSuccess MetricID = iota
	// MetricSignupDuplicate counts registrations rejected by the unique
	// email index.
	MetricSignupDuplicate
	// MetricSigninSuccess counts password sign-ins.
	MetricSigninSuccess
	// MetricSigninFailure counts wrong-credential sign-ins.
	MetricSigninFailure
	// MetricSigninLocked counts sign-ins rejected by the lockout.
	MetricSigninLocked
	// MetricPasswordChange counts completed password changes.
	MetricPasswordChange
	// MetricResetRequest counts issued reset tokens.
	MetricResetRequest
	// MetricResetConfirmSuccess counts consumed reset tokens.
	MetricResetConfirmSuccess
	// MetricResetConfirmFailure counts rejected reset consumptions.
	MetricResetConfirmFailure
	// MetricAPIKeyGenerated counts key generations and rotations.
	MetricAPIKeyGenerated
	// MetricAPIKeyDeleted counts key deletions.
	MetricAPIKeyDeleted
	// MetricBearerProvisioned counts accounts created by the bearer path.
	MetricBearerProvisioned
	// MetricBearerRejected counts bearer validations that failed closed.
	MetricBearerRejected
	// MetricOAuthLogin counts federated logins (create or sync).
	MetricOAuthLogin
	// MetricAuthzDenied counts role-check rejections.
	MetricAuthzDenied

	metricIDCount
)

// Metrics holds atomic counters for engine events. A nil or disabled
// Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates a Metrics instance per cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricIDCount)
	if m == nil || !m.enabled {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}
