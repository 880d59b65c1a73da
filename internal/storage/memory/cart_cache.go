package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// cartEntry — одна корзина с моментом истечения TTL.
type cartEntry struct {
	lines     []domain.CartLine
	expiresAt time.Time
}

// CartCache — in-memory кеш корзин с TTL. Держит собственный mutex:
// корзины живут отдельно от транзакционного состояния магазина.
type CartCache struct {
	mu      sync.Mutex
	entries map[string]cartEntry
}

// NewCartCache создаёт пустой кеш корзин.
func NewCartCache() *CartCache {
	return &CartCache{entries: make(map[string]cartEntry)}
}

// Get возвращает корзину, если её TTL ещё не истёк.
func (c *CartCache) Get(key string) ([]domain.CartLine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !entry.expiresAt.After(time.Now()) {
		return nil, false
	}
	out := make([]domain.CartLine, len(entry.lines))
	copy(out, entry.lines)
	return out, true
}

// Set сохраняет корзину и продлевает TTL.
func (c *CartCache) Set(key string, lines []domain.CartLine, ttl time.Duration) {
	copied := make([]domain.CartLine, len(lines))
	copy(copied, lines)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cartEntry{
		lines:     copied,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete удаляет корзину.
func (c *CartCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteExpired удаляет до limit корзин, истёкших до before, и возвращает
// число удалённых записей.
func (c *CartCache) DeleteExpired(before time.Time, limit int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for key, entry := range c.entries {
		if limit > 0 && deleted >= limit {
			break
		}
		if entry.expiresAt.Before(before) {
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.CartCache = (*CartCache)(nil)
