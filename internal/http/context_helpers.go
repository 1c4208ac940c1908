package httpx

import (
	"context"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
)

// principalKey is an unexported context key type to avoid collisions across packages.
type principalKey struct{}

// WithPrincipal returns a child context carrying the principal admitted by the gate.
// If p is nil, ctx is returned unchanged.
func WithPrincipal(ctx context.Context, p *domainauth.Principal) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the admitted principal and whether one is present.
func PrincipalFromContext(ctx context.Context) (*domainauth.Principal, bool) {
	if p, ok := ctx.Value(principalKey{}).(*domainauth.Principal); ok && p != nil {
		return p, true
	}
	return nil, false
}
