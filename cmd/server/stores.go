package main

import (
	"database/sql"
	"time"

	consentservice "dataguard/internal/consent/service"
	consentstore "dataguard/internal/consent/store"
	dsrservice "dataguard/internal/dsr/service"
	dsrstore "dataguard/internal/dsr/store"
	"dataguard/internal/purge"
	purgememory "dataguard/internal/purge/providers/memory"
	purgepostgres "dataguard/internal/purge/providers/postgres"
	"dataguard/internal/retention/runs"
	"dataguard/internal/retention/scheduler"
	"dataguard/internal/seeder"
	tenantservice "dataguard/internal/tenant/service"
	tenantstore "dataguard/internal/tenant/store"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/audit/outbox"
	outboxstore "dataguard/pkg/platform/audit/outbox/store/postgres"
	auditpostgres "dataguard/pkg/platform/audit/store/postgres"
	auditmemory "dataguard/pkg/platform/audit/store/memory"
	"dataguard/pkg/platform/tx"
)

// stores is the persistence layer chosen at startup.
type stores struct {
	runner    tx.Runner
	audit     audit.Store
	outbox    outbox.Store
	tenants   tenantservice.Store
	consents  consentservice.Store
	requests  dsrservice.Store
	runs      scheduler.RunStore
	providers []purge.Provider
	// demo is set only for in-memory stores.
	demo []seeder.RecordSink
}

func postgresStores(db *sql.DB, txTimeout time.Duration) *stores {
	runner := tx.NewPostgresRunner(db, txTimeout)
	ob := outboxstore.New(db)
	return &stores{
		runner:    runner,
		audit:     auditpostgres.New(db, runner, auditpostgres.WithOutbox(ob)),
		outbox:    ob,
		tenants:   tenantstore.NewPostgres(db),
		consents:  consentstore.NewPostgres(db),
		requests:  dsrstore.NewPostgres(db, runner),
		runs:      runs.NewPostgres(db),
		providers: purgepostgres.NewProviders(db, purgepostgres.DefaultTables()...),
	}
}

// memoryStores keeps everything in process. Purge providers start empty.
func memoryStores() *stores {
	var providers []purge.Provider
	var demo []seeder.RecordSink
	for _, t := range purgepostgres.DefaultTables() {
		p := purgememory.New(t.RecordType)
		providers = append(providers, p)
		demo = append(demo, p)
	}
	return &stores{
		runner:    tx.NewMemoryRunner(),
		audit:     auditmemory.NewInMemoryStore(),
		tenants:   tenantstore.NewInMemory(),
		consents:  consentstore.NewInMemoryStore(),
		requests:  dsrstore.NewInMemoryStore(),
		runs:      runs.NewInMemoryStore(),
		providers: providers,
		demo:      demo,
	}
}
