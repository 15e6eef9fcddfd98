// Package metrics exposes the mirror's ambient observability surface:
// a small set of Prometheus counters plus the /metrics HTTP handler
// behind the CLI's optional --metrics-addr (SPEC_FULL.md CLI EXPANSION).
// This is ambient instrumentation, not a functional requirement - a
// nil *Collector is always safe to use.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packetary-go/pkgmirror/cmn/nlog"
)

// Collector tracks per-run copy progress and section failures. Every
// counter is scoped to this process's lifetime, not persisted across
// invocations.
type Collector struct {
	reg            *prometheus.Registry
	packagesTotal  prometheus.Counter
	packagesCopied prometheus.Counter
	bytesCopied    prometheus.Counter
	sectionErrors  prometheus.Counter
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		packagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pkgmirror", Name: "packages_total", Help: "Packages selected for the current operation.",
		}),
		packagesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pkgmirror", Name: "packages_copied_total", Help: "Packages successfully copied and checksum-verified.",
		}),
		bytesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pkgmirror", Name: "bytes_copied_total", Help: "Sizes, as recorded in the package index, of packages copied and checksum-verified.",
		}),
		sectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pkgmirror", Name: "section_errors_total", Help: "COPY sections that ended with more task failures than their error budget.",
		}),
	}
	reg.MustRegister(c.packagesTotal, c.packagesCopied, c.bytesCopied, c.sectionErrors)
	return c
}

func (c *Collector) AddPackagesTotal(n int) {
	if c == nil {
		return
	}
	c.packagesTotal.Add(float64(n))
}

func (c *Collector) AddPackageCopied(bytes int64) {
	if c == nil {
		return
	}
	c.packagesCopied.Inc()
	c.bytesCopied.Add(float64(bytes))
}

func (c *Collector) AddSectionError() {
	if c == nil {
		return
	}
	c.sectionErrors.Inc()
}

// Serve starts an HTTP server exposing /metrics on addr and blocks
// until ctx is cancelled, then shuts down gracefully. Called from a
// goroutine by the CLI when --metrics-addr is non-empty.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		nlog.Infof("shutting down metrics server on %s", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
