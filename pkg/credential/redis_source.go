package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// RedisGetter is the subset of *redis.Client the token source needs.
type RedisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisTokenSource reads the access token the login flow stores in Redis.
type RedisTokenSource struct {
	rdb     RedisGetter
	key     string
	timeout time.Duration

	// refresh bounds how long a token is reused before Redis is read again.
	refresh time.Duration
}

func NewRedisTokenSource(rdb RedisGetter, key string) *RedisTokenSource {
	return &RedisTokenSource{
		rdb:     rdb,
		key:     key,
		timeout: 2 * time.Second,
		refresh: time.Minute,
	}
}

// Cached wraps the source so Redis is read at most once per refresh window.
func (s *RedisTokenSource) Cached() oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, s)
}

func (s *RedisTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	val, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && val == "") {
		return nil, ErrNotReady
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	expiry := time.Now().Add(s.refresh)
	if exp := jwtExpiry(val); !exp.IsZero() && exp.Before(expiry) {
		expiry = exp
	}

	return &oauth2.Token{AccessToken: val, TokenType: "Bearer", Expiry: expiry}, nil
}

func jwtExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
