// Package metrics registers the portal's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts authentication attempts by outcome: "ok" or
	// the taxonomy kind string.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	// ProviderBinds counts provider bind attempts by outcome.
	ProviderBinds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_provider_binds_total",
		Help: "Provider bind attempts by outcome.",
	}, []string{"outcome"})

	// CatalogFetches counts upstream catalog fetches by kind and result.
	CatalogFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_catalog_fetches_total",
		Help: "Upstream catalog fetches by catalog kind and result.",
	}, []string{"kind", "result"})

	// CatalogCacheHits counts catalog reads served from the memoized cache.
	CatalogCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_catalog_cache_hits_total",
		Help: "Catalog reads served without an upstream fetch.",
	}, []string{"kind"})

	// ActiveSessions tracks live portal sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portal_active_sessions",
		Help: "Sessions currently held by the session manager.",
	})
)
