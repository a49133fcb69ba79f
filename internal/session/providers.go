package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/pkg/jwt"
)

// Authenticator is implemented by stores that bind a connection to a user
// token, such as the SurrealDB connection
type Authenticator interface {
	Authenticate(ctx context.Context, token string) error
}

// TokenProvider signs in with a custom token
type TokenProvider struct {
	token    string
	verifier *jwt.Verifier
	auth     Authenticator
}

// NewTokenProvider verifies token with verifier. auth may be nil.
func NewTokenProvider(token string, verifier *jwt.Verifier, auth Authenticator) *TokenProvider {
	return &TokenProvider{token: token, verifier: verifier, auth: auth}
}

// SignIn verifies the token and, when an authenticator is set, presents it upstream
func (p *TokenProvider) SignIn(ctx context.Context) (*model.Identity, error) {
	if p.token == "" {
		return nil, fmt.Errorf("no sign-in token configured")
	}
	claims, err := p.verifier.Verify(p.token)
	if err != nil {
		return nil, err
	}
	if p.auth != nil {
		if err := p.auth.Authenticate(ctx, p.token); err != nil {
			return nil, err
		}
	}
	return &model.Identity{UID: claims.Identity(), Provider: model.ProviderToken}, nil
}

// AnonymousProvider issues an anonymous identity. A fixed id keeps the
// identity stable across restarts.
type AnonymousProvider struct {
	fixedID string
}

// NewAnonymousProvider creates an anonymous provider. fixedID may be empty.
func NewAnonymousProvider(fixedID string) *AnonymousProvider {
	return &AnonymousProvider{fixedID: fixedID}
}

func (p *AnonymousProvider) SignIn(ctx context.Context) (*model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid := p.fixedID
	if uid == "" {
		uid = uuid.NewString()
	}
	return &model.Identity{UID: uid, Provider: model.ProviderAnonymous, Anonymous: true}, nil
}

// Select picks token sign-in when a token is configured, anonymous otherwise
func Select(token string, verifier *jwt.Verifier, auth Authenticator, anonymousID string) Provider {
	if token != "" && verifier != nil {
		return NewTokenProvider(token, verifier, auth)
	}
	return NewAnonymousProvider(anonymousID)
}
