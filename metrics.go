package main

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zabeloliver/smarthome-api/api"
	"github.com/zabeloliver/smarthome-api/events"
	"github.com/zabeloliver/smarthome-api/store"
)

type metrics struct {
	recordsCreated *prometheus.CounterVec
	records        *prometheus.GaugeVec
	httpRequests   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		recordsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarthome_records_created_total",
				Help: "Records created since start.",
			},
			[]string{"kind"}),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smarthome_records",
				Help: "Records currently held in memory.",
			},
			[]string{"kind"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarthome_http_requests_total",
				Help: "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		),
	}
	reg.MustRegister(m.recordsCreated)
	reg.MustRegister(m.records)
	reg.MustRegister(m.httpRequests)
	return m
}

// Publish counts a created record. It lets metrics sit next to the other
// event sinks.
func (m *metrics) Publish(_ context.Context, e events.Event) error {
	m.recordsCreated.WithLabelValues(string(e.Kind)).Inc()
	m.records.WithLabelValues(string(e.Kind)).Inc()
	return nil
}

// seed sets the record gauges from the current store contents.
func (m *metrics) seed(s *store.Store) {
	for kind, n := range s.Counts() {
		m.records.WithLabelValues(string(kind)).Set(float64(n))
	}
}

func (m *metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		code := c.Response().Status
		if err != nil && !c.Response().Committed {
			code = api.StatusFor(err)
		}
		m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).Inc()
		return err
	}
}
