package httputil

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
)

// TenantParam is the route parameter every tenant-scoped route carries.
const TenantParam = "tenantID"

// TenantID parses the tenant from the route.
func TenantID(r *http.Request) (id.TenantID, error) {
	return id.ParseTenantID(chi.URLParam(r, TenantParam))
}

// QueryInt reads a positive integer query parameter, returning def when absent
// and clamping to max.
func QueryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
