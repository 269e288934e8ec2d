package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// expirySkew is subtracted from token lifetimes so a cached token is never
// handed out right before it expires
const expirySkew = time.Minute

// TokenCache stores access tokens between discovery runs
type TokenCache interface {
	// Get returns the cached token, or nil when there is none
	Get(ctx context.Context, key string) (*oauth2.Token, error)
	Set(ctx context.Context, key string, token *oauth2.Token) error
	// Delete drops a token the API no longer accepts
	Delete(ctx context.Context, key string) error
}

// MemoryTokenCache keeps tokens in process memory
type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
	now    func() time.Time
}

// NewMemoryTokenCache creates an empty in-memory cache
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]*oauth2.Token), now: time.Now}
}

// Get returns a token that is still valid for at least expirySkew
func (c *MemoryTokenCache) Get(_ context.Context, key string) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.tokens[key]
	if !ok {
		return nil, nil
	}
	if !tok.Expiry.IsZero() && c.now().Add(expirySkew).After(tok.Expiry) {
		delete(c.tokens, key)
		return nil, nil
	}
	return tok, nil
}

// Set stores the token
func (c *MemoryTokenCache) Set(_ context.Context, key string, token *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = token
	return nil
}

// Delete removes the token
func (c *MemoryTokenCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, key)
	return nil
}

// RedisTokenCache shares tokens across processes through Redis
type RedisTokenCache struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenCache creates a Redis-backed cache
func NewRedisTokenCache(client *redis.Client, prefix string) *RedisTokenCache {
	if prefix == "" {
		prefix = "trendcraft:token:"
	}
	return &RedisTokenCache{client: client, prefix: prefix}
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

// Get reads the token; a miss returns nil without error
func (c *RedisTokenCache) Get(ctx context.Context, key string) (*oauth2.Token, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get token: %w", err)
	}

	var ct cachedToken
	if err := json.Unmarshal(raw, &ct); err != nil {
		return nil, fmt.Errorf("decode cached token: %w", err)
	}
	return &oauth2.Token{AccessToken: ct.AccessToken, TokenType: ct.TokenType, Expiry: ct.Expiry}, nil
}

// Set writes the token with a TTL ending expirySkew before its expiry.
// Tokens that are already too close to expiry are not stored.
func (c *RedisTokenCache) Set(ctx context.Context, key string, token *oauth2.Token) error {
	ttl := time.Duration(0)
	if !token.Expiry.IsZero() {
		ttl = time.Until(token.Expiry) - expirySkew
		if ttl <= 0 {
			return nil
		}
	}

	raw, err := json.Marshal(cachedToken{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Expiry:      token.Expiry,
	})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

// Delete removes the token
func (c *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete token: %w", err)
	}
	return nil
}
