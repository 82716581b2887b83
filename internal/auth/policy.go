package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRoles resolves the allowed roles for the request.
func (p Policy) RequiredRoles(r *http.Request) ([]Role, bool) {
	if r == nil {
		return nil, false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case strings.HasPrefix(path, "/api/v1/commission/"):
		return []Role{RoleAdmin}, true
	case strings.HasPrefix(path, "/api/v1/notifications"):
		return []Role{RoleBuyer, RoleSupplier, RoleAdmin}, true
	case strings.HasPrefix(path, "/api/v1/negotiations"):
		if method == http.MethodGet {
			return []Role{RoleBuyer, RoleSupplier, RoleAdmin}, true
		}
		return []Role{RoleBuyer, RoleSupplier}, true
	case strings.HasPrefix(path, "/api/v1/trades"):
		switch {
		case method == http.MethodGet:
			return []Role{RoleBuyer, RoleSupplier, RoleAdmin}, true
		case strings.HasSuffix(path, "/confirm") || strings.HasSuffix(path, "/reject"):
			return []Role{RoleAdmin}, true
		case strings.HasSuffix(path, "/invoice/approve") || strings.HasSuffix(path, "/delivery"):
			return []Role{RoleBuyer}, true
		case strings.HasSuffix(path, "/invoice") || strings.HasSuffix(path, "/shipping-docs") || strings.HasSuffix(path, "/tracking"):
			return []Role{RoleSupplier}, true
		case strings.HasSuffix(path, "/sign"):
			return []Role{RoleBuyer, RoleSupplier}, true
		}
		return []Role{RoleBuyer, RoleSupplier, RoleAdmin}, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return []Role{RoleBuyer, RoleSupplier, RoleAdmin}, true
		}
		return []Role{RoleAdmin}, true
	}
	return nil, false
}
