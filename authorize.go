package caseauth

import (
	"fmt"
	"net/http"
	"strings"
)

// RequireRoles is the middleware factory guarding role-restricted routes.
// The guard succeeds iff the dispatcher resolves a principal and the
// principal's role set intersects roles — any-of, not all-of. A resolved
// principal with the wrong roles gets a forbidden response naming the
// required roles; an unresolved request gets a bare unauthorized one.
func (d *Dispatcher) RequireRoles(engine *Engine, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, err := d.Resolve(ctx, r)
			if err != nil {
				http.Error(w, ErrUnauthorized.Error(), http.StatusForbidden)
				return
			}
			if !principal.User.HasAnyRole(roles...) {
				engine.metricInc(MetricAuthzDenied)
				engine.emitAudit(ctx, auditEventForbidden, false, principal.User.ID, ErrForbidden,
					map[string]string{"required": roleNames(roles)})
				http.Error(w, fmt.Sprintf("requires one of roles: %s", roleNames(roles)), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

func roleNames(roles []Role) string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}
