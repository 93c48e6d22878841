//go:build e2e

package e2e

import (
	"io"
	"log/slog"
	"net/http/httptest"

	consenthandler "dataguard/internal/consent/handler"
	consentservice "dataguard/internal/consent/service"
	consentstore "dataguard/internal/consent/store"
	dsrhandler "dataguard/internal/dsr/handler"
	dsrservice "dataguard/internal/dsr/service"
	dsrstore "dataguard/internal/dsr/store"
	"dataguard/internal/export"
	"dataguard/internal/notify"
	"dataguard/internal/platform/health"
	"dataguard/internal/purge"
	purgememory "dataguard/internal/purge/providers/memory"
	"dataguard/internal/retention"
	retentionhandler "dataguard/internal/retention/handler"
	"dataguard/internal/retention/lease"
	"dataguard/internal/retention/runs"
	"dataguard/internal/retention/scheduler"
	tenanthandler "dataguard/internal/tenant/handler"
	tenantservice "dataguard/internal/tenant/service"
	tenantstore "dataguard/internal/tenant/store"
	httptransport "dataguard/internal/transport/http"
	"dataguard/pkg/platform/audit"
	auditmemory "dataguard/pkg/platform/audit/store/memory"
	"dataguard/pkg/platform/privacy"
	"dataguard/pkg/platform/tx"
)

const adminToken = "e2e-admin-token"

// app is the server under test, wired over in-memory stores. Scenarios
// isolate themselves by registering their own tenant.
type app struct {
	server    *httptest.Server
	bundles   *export.MemoryStore
	providers map[string]*purgememory.Provider
}

func startApp() (*app, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := tx.NewMemoryRunner()
	trail := audit.NewTrail(auditmemory.NewInMemoryStore(),
		privacy.NewMasker(privacy.DefaultMaskedFields, false), audit.WithLogger(logger))

	tenants := tenantservice.New(tenantstore.NewInMemory(), trail, runner, logger)
	consents := consentservice.New(consentstore.NewInMemoryStore(), trail, runner, logger)

	providers := map[string]*purgememory.Provider{
		"contact": purgememory.New("contact"),
		"ticket":  purgememory.New("ticket"),
	}
	registry, err := purge.NewRegistry(providers["contact"], providers["ticket"])
	if err != nil {
		return nil, err
	}
	executor := purge.NewExecutor(registry, trail, runner, logger)
	bundles := export.NewMemoryStore()
	requests := dsrservice.New(dsrstore.NewInMemoryStore(), trail, runner, executor,
		export.NewBuilder(registry, bundles, logger), logger)

	resolver, err := retention.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	purges := scheduler.New(tenants, resolver, executor, runs.NewInMemoryStore(), lease.NewMemoryLocker(),
		trail, runner, notify.NewLogSink(logger), logger, scheduler.Config{}, scheduler.WithRecoverer(requests))

	router := httptransport.NewRouter(httptransport.Config{
		AdminToken: adminToken,
		Health:     health.New("e2e"),
		Tenants:    tenanthandler.New(tenants, logger),
		Scoped: []httptransport.Registrar{
			consenthandler.New(consents, logger),
			dsrhandler.New(requests, logger),
			retentionhandler.New(purges, logger),
		},
	}, logger)

	return &app{
		server:    httptest.NewServer(router),
		bundles:   bundles,
		providers: providers,
	}, nil
}

func (a *app) Close() {
	a.server.Close()
}
