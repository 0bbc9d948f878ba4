// Package metrics holds Prometheus instruments used across formpipe.  All
// collectors are registered with the global registry, so mounting
// promhttp.Handler() in cmd/web is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Form submissions processed, by outcome code.",
		}, []string{"outcome"})

	FieldErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_field_errors_total",
			Help: "Fields that failed validation, by field type.",
		}, []string{"type"})

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_notifications_total",
			Help: "Notification emails attempted, by result.",
		}, []string{"result"})

	CaptchaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_captcha_checks_total",
			Help: "CAPTCHA verifications, by result.",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		FieldErrorsTotal,
		NotificationsTotal,
		CaptchaChecksTotal,
	)
}
