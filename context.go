package authx

import "context"

type callerClaimsKey struct{}

// CallerClaims is the authorized caller stored in the request context.
type CallerClaims struct {
	Claims Claims
	Level  AuthorizationLevel
	Source TokenSource
}

// Subject returns the caller's principal id.
func (c CallerClaims) Subject() string {
	return c.Claims.Subject()
}

// BindCallerClaims stores caller claims inside the context for downstream consumers.
func BindCallerClaims(ctx context.Context, claims CallerClaims) context.Context {
	return context.WithValue(ctx, callerClaimsKey{}, claims)
}

// CallerClaimsFromContext retrieves caller claims previously stored in the context.
func CallerClaimsFromContext(ctx context.Context) (CallerClaims, bool) {
	if ctx == nil {
		return CallerClaims{}, false
	}
	value := ctx.Value(callerClaimsKey{})
	if value == nil {
		return CallerClaims{}, false
	}
	claims, ok := value.(CallerClaims)
	return claims, ok
}

func (d *Decision) callerClaims() CallerClaims {
	return CallerClaims{Claims: d.Claims, Level: d.Level, Source: d.Source}
}
