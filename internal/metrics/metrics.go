// Package metrics owns the service's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collectors struct {
	registry *prometheus.Registry

	CouponEvaluations *prometheus.CounterVec
	CouponRedemptions *prometheus.CounterVec
	CartTransitions   *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, so tests can build as
// many as they like.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		CouponEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qusamba",
			Name:      "coupon_evaluations_total",
			Help:      "Coupon eligibility checks by result reason.",
		}, []string{"result"}),
		CouponRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qusamba",
			Name:      "coupon_redemptions_total",
			Help:      "Coupon redemption commits by outcome.",
		}, []string{"outcome"}),
		CartTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qusamba",
			Name:      "cart_transitions_total",
			Help:      "Cart commands applied.",
		}, []string{"command"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qusamba",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	c.registry.MustRegister(
		c.CouponEvaluations,
		c.CouponRedemptions,
		c.CartTransitions,
		c.HTTPDuration,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
