// Package credential supplies the bearer token and numeric user id the
// engine attaches to every connection and REST call. It is read-only.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ai-tutoring-engine/pkg/retry"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var ErrNotReady = errors.New("credential not ready")

type Credential struct {
	Token  string
	UserId int64
}

// Ready is false while the user has not logged in yet. That is a normal
// state, not a failure.
func (c Credential) Ready() bool {
	return c.Token != "" && c.UserId > 0
}

type Provider interface {
	Credential(ctx context.Context) (Credential, error)
}

// TokenSourceProvider reads the token from an oauth2.TokenSource and the user
// id from its "user_id" claim. Opaque tokens fall back to a fixed user id.
type TokenSourceProvider struct {
	source        oauth2.TokenSource
	secret        []byte
	defaultUserId int64
}

type Option func(*TokenSourceProvider)

// WithVerification checks the HMAC signature instead of trusting the claims.
func WithVerification(secret string) Option {
	return func(p *TokenSourceProvider) {
		if secret != "" {
			p.secret = []byte(secret)
		}
	}
}

func WithDefaultUserId(id int64) Option {
	return func(p *TokenSourceProvider) {
		p.defaultUserId = id
	}
}

func NewTokenSourceProvider(source oauth2.TokenSource, opts ...Option) *TokenSourceProvider {
	p := &TokenSourceProvider{source: source}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewStaticProvider is used when the token comes from configuration.
func NewStaticProvider(token string, opts ...Option) *TokenSourceProvider {
	if token == "" {
		return NewTokenSourceProvider(emptySource{}, opts...)
	}
	return NewTokenSourceProvider(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}), opts...)
}

func (p *TokenSourceProvider) Credential(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	tok, err := p.source.Token()
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			return Credential{}, nil
		}
		return Credential{}, fmt.Errorf("read token: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return Credential{}, nil
	}

	userId, err := p.userIdFrom(tok.AccessToken)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: tok.AccessToken, UserId: userId}, nil
}

func (p *TokenSourceProvider) userIdFrom(raw string) (int64, error) {
	claims := jwt.MapClaims{}

	if p.secret != nil {
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return p.secret, nil
		})
		if err != nil || !token.Valid {
			return 0, fmt.Errorf("invalid token: %w", err)
		}
	} else if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		// Opaque token
		return p.defaultUserId, nil
	}

	if id, ok := UserIdFromClaims(claims); ok {
		return id, nil
	}
	return p.defaultUserId, nil
}

// UserIdFromClaims accepts numeric and numeric-string "user_id" claims.
func UserIdFromClaims(claims jwt.MapClaims) (int64, bool) {
	switch v := claims["user_id"].(type) {
	case float64:
		return int64(v), v > 0
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}

// Poll asks the provider again after a short delay when the credential is
// momentarily unavailable. It returns an empty credential if it never shows up.
func Poll(ctx context.Context, p Provider, policy retry.Policy) Credential {
	cred, err := retry.Do(ctx, policy, func(ctx context.Context) (Credential, error) {
		c, err := p.Credential(ctx)
		if err != nil {
			return Credential{}, err
		}
		if !c.Ready() {
			return Credential{}, ErrNotReady
		}
		return c, nil
	})
	if err != nil {
		return Credential{}
	}
	return cred
}

type emptySource struct{}

func (emptySource) Token() (*oauth2.Token, error) {
	return nil, ErrNotReady
}
