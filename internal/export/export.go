// Package export assembles a data subject's records into a JSON bundle for
// access and portability requests.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dataguard/internal/purge"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/middleware/requesttime"
)

// FormatVersion is bumped whenever the bundle layout changes.
const FormatVersion = "1"

// Bundle is the document handed to the data subject.
type Bundle struct {
	ID          string                 `json:"id"`
	Format      string                 `json:"format_version"`
	TenantID    id.TenantID            `json:"tenant_id"`
	Subject     string                 `json:"subject"`
	Kind        string                 `json:"kind"`
	GeneratedAt time.Time              `json:"generated_at"`
	Records     []purge.ExportedRecord `json:"records"`
}

// Store keeps rendered bundles and returns a reference to them.
type Store interface {
	Put(ctx context.Context, tenantID id.TenantID, bundleID string, body []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Builder collects a subject's records from every exporting provider.
type Builder struct {
	registry *purge.Registry
	store    Store
	logger   *slog.Logger
}

func NewBuilder(registry *purge.Registry, store Store, logger *slog.Logger) *Builder {
	return &Builder{registry: registry, store: store, logger: logger}
}

// BuildExport writes the subject's bundle and returns its reference. A
// subject with no records still gets an empty bundle.
func (b *Builder) BuildExport(ctx context.Context, tenantID id.TenantID, subject string, kind string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", dErrors.New(dErrors.CodeValidation, "subject is required")
	}

	bundle := Bundle{
		ID:          uuid.NewString(),
		Format:      FormatVersion,
		TenantID:    tenantID,
		Subject:     subject,
		Kind:        kind,
		GeneratedAt: requesttime.Now(ctx),
		Records:     make([]purge.ExportedRecord, 0),
	}
	for _, exp := range b.registry.Exporters() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		recs, err := exp.ExportSubject(ctx, tenantID, subject)
		if err != nil {
			return "", fmt.Errorf("export subject records: %w", err)
		}
		bundle.Records = append(bundle.Records, recs...)
	}
	sort.SliceStable(bundle.Records, func(i, j int) bool {
		if bundle.Records[i].Type != bundle.Records[j].Type {
			return bundle.Records[i].Type < bundle.Records[j].Type
		}
		return bundle.Records[i].ID < bundle.Records[j].ID
	})

	body, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export bundle: %w", err)
	}
	ref, err := b.store.Put(ctx, tenantID, bundle.ID, body)
	if err != nil {
		return "", fmt.Errorf("store export bundle: %w", err)
	}

	b.logger.InfoContext(ctx, "export bundle built",
		"tenant_id", tenantID.String(),
		"kind", kind,
		"records", len(bundle.Records),
		"bundle_ref", ref,
	)
	return ref, nil
}
