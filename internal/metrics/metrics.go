// Package metrics exposes Prometheus counters for the registration wizard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the wizard's Prometheus collectors, registered on a
// caller-supplied registry so tests can use a fresh one.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec
	StepsAdvanced     *prometheus.CounterVec
	OtpSends          prometheus.Counter
	OtpVerifications  *prometheus.CounterVec
	DocumentsStaged   *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	EmailChecks       prometheus.Counter
}

// New registers and returns the wizard collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_sessions_started_total",
			Help: "Wizard sessions created, by flow.",
		}, []string{"flow"}),
		StepsAdvanced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_steps_advanced_total",
			Help: "Successful forward step transitions, by step.",
		}, []string{"step"}),
		OtpSends: f.NewCounter(prometheus.CounterOpts{
			Name: "wizard_otp_sends_total",
			Help: "OTP codes sent, including resends.",
		}),
		OtpVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_otp_verifications_total",
			Help: "OTP verification attempts, by outcome.",
		}, []string{"outcome"}),
		DocumentsStaged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_documents_staged_total",
			Help: "Document staging attempts, by outcome.",
		}, []string{"outcome"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_submissions_total",
			Help: "Final submissions, by flow and outcome.",
		}, []string{"flow", "outcome"}),
		EmailChecks: f.NewCounter(prometheus.CounterOpts{
			Name: "wizard_email_checks_total",
			Help: "Email-existence checks served.",
		}),
	}
}
