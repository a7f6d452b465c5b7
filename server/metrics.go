// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"strconv"
	"time"

	"github.com/beccons/alumap/app"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newMetrics(a *app.App) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(&appCollector{app: a})

	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alumap_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alumap_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
	}
}

// middleware records every request under its route pattern, so path
// parameters never become labels.
func (m *metrics) middleware(ctx *gin.Context) {
	start := time.Now()

	ctx.Next()

	route := ctx.FullPath()
	if route == "" {
		route = "unmatched"
	}

	m.requestsTotal.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
	m.requestDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
}

func (m *metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

var (
	stateDesc = prometheus.NewDesc(
		"alumap_state", "Load state of the application, 1 for the current one", []string{"state"}, nil)
	alumniDesc = prometheus.NewDesc(
		"alumap_alumni", "Alumni in the directory", []string{"located"}, nil)
	backfillCurrentDesc = prometheus.NewDesc(
		"alumap_backfill_current", "Items attempted by the running backfill pass", nil, nil)
	backfillTotalDesc = prometheus.NewDesc(
		"alumap_backfill_total", "Items in the running backfill pass, 0 when idle", nil, nil)
	geocodeLookupsDesc = prometheus.NewDesc(
		"alumap_geocode_lookups_total", "Requests sent to the geocoder", nil, nil)
	geocodeHitsDesc = prometheus.NewDesc(
		"alumap_geocode_cache_hits_total", "Places answered from the cache", nil, nil)
	geocodeFailuresDesc = prometheus.NewDesc(
		"alumap_geocode_failures_total", "Places the geocoder could not locate, by error type", []string{"type"}, nil)
	geocodeCachedDesc = prometheus.NewDesc(
		"alumap_geocode_cache_entries", "Places held in the geocode cache", nil, nil)
)

// appCollector reads the application state on every scrape.
type appCollector struct {
	app *app.App
}

func (c *appCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- stateDesc
	ch <- alumniDesc
	ch <- backfillCurrentDesc
	ch <- backfillTotalDesc
	ch <- geocodeLookupsDesc
	ch <- geocodeHitsDesc
	ch <- geocodeFailuresDesc
	ch <- geocodeCachedDesc
}

func (c *appCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.app.Status()

	for _, s := range []app.State{app.StateLoading, app.StateReady, app.StateError} {
		v := 0.0
		if s == status.State {
			v = 1
		}

		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, v, s.String())
	}

	ch <- prometheus.MustNewConstMetric(alumniDesc, prometheus.GaugeValue, float64(status.Visible), "true")
	ch <- prometheus.MustNewConstMetric(alumniDesc, prometheus.GaugeValue, float64(status.Total-status.Visible), "false")

	var current, total float64
	if status.Progress != nil {
		current, total = float64(status.Progress.Current), float64(status.Progress.Total)
	}

	ch <- prometheus.MustNewConstMetric(backfillCurrentDesc, prometheus.GaugeValue, current)
	ch <- prometheus.MustNewConstMetric(backfillTotalDesc, prometheus.GaugeValue, total)

	stats, ok := c.app.GeocodeStats()
	if !ok {
		return
	}

	ch <- prometheus.MustNewConstMetric(geocodeLookupsDesc, prometheus.CounterValue, float64(stats.Lookups))
	ch <- prometheus.MustNewConstMetric(geocodeHitsDesc, prometheus.CounterValue, float64(stats.Hits))
	for errType, n := range stats.FailuresByType {
		ch <- prometheus.MustNewConstMetric(geocodeFailuresDesc, prometheus.CounterValue, float64(n), errType)
	}

	ch <- prometheus.MustNewConstMetric(geocodeCachedDesc, prometheus.GaugeValue, float64(stats.Cached))
}
