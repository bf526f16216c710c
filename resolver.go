package authx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultSelfAlias is the user id path value meaning "the caller".
const DefaultSelfAlias = "@me"

// Target identifies the resource a request acts on. Empty fields are absent.
type Target struct {
	UserID string
	GameID string
}

// Request carries everything the resolver needs for one authorization decision.
type Request struct {
	// SessionToken is the long-lived token; ScopedToken the optional short-lived one.
	SessionToken string
	ScopedToken  string
	Required     AuthorizationLevel
	Target       Target
}

// TokenSource names the presented token that governed a decision.
type TokenSource int

const (
	SourceSession TokenSource = iota
	SourceScoped
)

func (s TokenSource) String() string {
	switch s {
	case SourceSession:
		return "session"
	case SourceScoped:
		return "scoped"
	default:
		return ""
	}
}

// Decision is the outcome of a successful authorization.
type Decision struct {
	Claims Claims
	Source TokenSource
	Level  AuthorizationLevel
}

// Resolver decides per request which token applies and whether it grants access.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	tokens    *TokenService
	selfAlias string
	logger    *slog.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used for decision logging.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithSelfAlias changes the user id alias that always refers to the caller.
func WithSelfAlias(alias string) ResolverOption {
	return func(r *Resolver) {
		r.selfAlias = alias
	}
}

// NewResolver builds a resolver verifying tokens with tokens.
func NewResolver(tokens *TokenService, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		tokens:    tokens,
		selfAlias: DefaultSelfAlias,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve authorizes req. Token failures of the selected token are returned as 401-class
// *Error values; ownership and level failures as 403-class ones.
//
// An admin token authorizes any target. Every other token must carry the target user id,
// and a scoped token is only considered when it matches the target exactly.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Decision, error) {
	var scoped Claims
	if req.Required <= LevelScopedTemporary && req.ScopedToken != "" {
		claims, err := r.tokens.Verify(req.ScopedToken)
		if err != nil {
			r.logger.DebugContext(ctx, "scoped token rejected, falling back to session token",
				"code", CodeOf(err),
			)
		} else {
			scoped = claims
		}
	}

	source := SelectToken(req.Required, req.Target, scoped)
	claims := scoped
	if source == SourceSession {
		verified, err := r.tokens.Verify(req.SessionToken)
		if err != nil {
			return nil, r.deny(ctx, req, source, err)
		}
		claims = verified
	}

	level, ok := claims.Level()
	if !ok {
		return nil, r.deny(ctx, req, source, newError(ErrCodeInsufficientLevel, errors.New("token carries no authorisation level")))
	}
	if !r.ownsTarget(claims, level, req.Target) {
		return nil, r.deny(ctx, req, source, newError(ErrCodeScopeMismatch, nil))
	}
	if !level.Satisfies(req.Required) {
		return nil, r.deny(ctx, req, source, newError(ErrCodeInsufficientLevel,
			fmt.Errorf("have %s, need %s", level, req.Required)))
	}

	r.logger.DebugContext(ctx, "authorization granted",
		"source", source.String(),
		"level", level.String(),
		"required_level", req.Required.String(),
	)
	return &Decision{Claims: claims, Source: source, Level: level}, nil
}

// ownsTarget applies the ownership rule: below admin, the subject must be the target user
// unless the target is the self alias or absent.
func (r *Resolver) ownsTarget(claims Claims, level AuthorizationLevel, target Target) bool {
	if target.UserID == "" || target.UserID == r.selfAlias {
		return true
	}
	if level >= LevelAdmin {
		return true
	}
	return claims.Subject() == target.UserID
}

func (r *Resolver) deny(ctx context.Context, req Request, source TokenSource, err error) error {
	r.logger.InfoContext(ctx, "authorization denied",
		"code", CodeOf(err),
		"source", source.String(),
		"required_level", req.Required.String(),
	)
	return err
}

// SelectToken decides which presented token governs a request. Only endpoints open to
// scoped-temporary access consider the scoped token, and only when its scope matches target.
// scoped is nil when no valid scoped token was presented.
func SelectToken(required AuthorizationLevel, target Target, scoped Claims) TokenSource {
	if required > LevelScopedTemporary {
		return SourceSession
	}
	if scoped != nil && MatchScope(scoped, target) {
		return SourceScoped
	}
	return SourceSession
}

// MatchScope reports whether claims are scoped to exactly target. Admin claims match any target.
// An absent target field matches only an absent claim.
func MatchScope(claims Claims, target Target) bool {
	if level, ok := claims.Level(); ok && level >= LevelAdmin {
		return true
	}
	return scopeFieldMatches(claims, ClaimSubject, target.UserID) &&
		scopeFieldMatches(claims, ClaimGame, target.GameID)
}

func scopeFieldMatches(claims Claims, key, want string) bool {
	v, present := claims[key]
	if want == "" {
		return !present
	}
	s, ok := v.(string)
	return ok && s == want
}
