package auth

import (
	"context"
	"sync"
	"time"
)

// SessionLookup - внешний провайдер идентичности.
type SessionLookup interface {
	LookupSession(ctx context.Context, token string) (string, time.Time, error)
}

type cacheEntry struct {
	userId    string
	expiresAt time.Time
}

// TokenCache кеширует проверенные токены с ограниченным TTL и размером.
// Запись живёт не дольше самой сессии.
type TokenCache struct {
	lookup     SessionLookup
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewTokenCache создает новый экземпляр TokenCache.
func NewTokenCache(lookup SessionLookup, ttl time.Duration, maxEntries int) *TokenCache {
	return &TokenCache{
		lookup:     lookup,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    map[string]cacheEntry{},
	}
}

// Verify возвращает пользователя токена из кеша или из провайдера.
func (c *TokenCache) Verify(ctx context.Context, token string) (string, error) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[token]
	if ok && now.Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.userId, nil
	}
	delete(c.entries, token)
	c.mu.Unlock()

	userId, sessionExpiresAt, err := c.lookup.LookupSession(ctx, token)
	if err != nil {
		return "", err
	}

	expiresAt := now.Add(c.ttl)
	if !sessionExpiresAt.IsZero() && sessionExpiresAt.Before(expiresAt) {
		expiresAt = sessionExpiresAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl > 0 && c.maxEntries > 0 {
		c.evictLocked(now)
		c.entries[token] = cacheEntry{userId: userId, expiresAt: expiresAt}
	}
	return userId, nil
}

// Invalidate удаляет токен из кеша, например после выхода пользователя.
func (c *TokenCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
}

// Len возвращает число записей в кеше.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TokenCache) evictLocked(now time.Time) {
	if len(c.entries) < c.maxEntries {
		return
	}
	for token, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, token)
		}
	}
	for token := range c.entries {
		if len(c.entries) < c.maxEntries {
			return
		}
		delete(c.entries, token)
	}
}
