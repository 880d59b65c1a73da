package cart

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// Store выдаёт сессии корзины поверх keyed-кеша с TTL.
type Store struct {
	cache   domain.CartCache
	catalog domain.CatalogService
	logger  *log.Entry
	ttl     time.Duration
}

// NewStore создаёт хранилище корзин.
func NewStore(cache domain.CartCache, catalog domain.CatalogService, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Store{
		cache:   cache,
		catalog: catalog,
		logger:  logger,
		ttl:     domain.CartTTL,
	}
}

func cacheKey(userID string) string {
	return "cart_" + userID
}

// Checkout выдаёт сессию корзины пользователя. Сессия обязана быть сброшена
// через Flush на каждом пути выхода обработчика, включая ошибочные; только
// ClearAll без аргументов отменяет запись и выселяет ключ целиком.
func (s *Store) Checkout(userID string) *Session {
	lines := make(map[string]domain.CartLine)
	if cached, ok := s.cache.Get(cacheKey(userID)); ok {
		for _, line := range cached {
			lines[line.Key()] = line
		}
	}
	return &Session{
		store:  s,
		userID: userID,
		lines:  lines,
	}
}

// Session — изменяемая корзина одного пользователя в пределах одного запроса.
// Конкурентные сессии одного пользователя работают по принципу
// last-writer-wins, межпользовательской блокировки нет.
type Session struct {
	store   *Store
	userID  string
	lines   map[string]domain.CartLine
	discard bool
	flushed bool
}

// Add добавляет товар в корзину, сливая количество с существующей позицией.
// Отказ без мутации, если товар снят с продажи либо итоговое количество
// превышает остаток.
func (c *Session) Add(ctx context.Context, goodsID, skuID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	ref := domain.SkuRef{GoodsID: goodsID, SkuID: skuID}
	goodsData, err := c.store.catalog.GoodsBySkus(ctx, []domain.SkuRef{ref})
	if err != nil {
		return err
	}
	info, ok := goodsData[ref.Key()]
	if !ok || !info.IsListed {
		return domain.ErrGoodsUnavailable
	}

	key := domain.CartKey(goodsID, skuID)
	merged := qty
	if existing, ok := c.lines[key]; ok {
		merged += existing.Qty
		// Переполнение int32 не должно обойти проверку остатка.
		if merged < existing.Qty {
			return domain.ErrInsufficientStock
		}
	}
	if merged > info.StockNum {
		return domain.ErrInsufficientStock
	}

	line, ok := c.lines[key]
	if !ok {
		line = domain.CartLine{GoodsID: goodsID, SkuID: skuID, AddedAt: time.Now().UTC()}
	}
	line.Qty = merged
	c.lines[key] = line
	return nil
}

// Reduce уменьшает количество позиции с нижней границей 1: удаление
// возможно только через Remove/ClearAll.
func (c *Session) Reduce(goodsID, skuID string) {
	key := domain.CartKey(goodsID, skuID)
	if line, ok := c.lines[key]; ok && line.Qty > 1 {
		line.Qty--
		c.lines[key] = line
	}
}

// Remove удаляет позиции по составным ключам, разделённым запятыми.
func (c *Session) Remove(keys string) {
	for _, key := range domain.SplitCartKeys(keys) {
		delete(c.lines, key)
	}
}

// Prune удаляет позиции, признанные расчётом устаревшими (товар исчез из
// каталога).
func (c *Session) Prune(keys []string) {
	for _, key := range keys {
		delete(c.lines, key)
	}
}

// List возвращает позиции по ключам; пустая строка означает всю корзину.
// Порядок стабилен: по времени добавления.
func (c *Session) List(keys string) []domain.CartLine {
	var out []domain.CartLine
	if keys == "" {
		out = make([]domain.CartLine, 0, len(c.lines))
		for _, line := range c.lines {
			out = append(out, line)
		}
	} else {
		for _, key := range domain.SplitCartKeys(keys) {
			if line, ok := c.lines[key]; ok {
				out = append(out, line)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// ClearAll удаляет позиции по ключам; пустая строка очищает корзину и
// выселяет ключ пользователя целиком вместо записи пустой коллекции.
func (c *Session) ClearAll(keys string) {
	if keys == "" {
		c.discard = true
		c.lines = make(map[string]domain.CartLine)
		c.store.cache.Delete(cacheKey(c.userID))
		return
	}
	c.Remove(keys)
}

// TotalNum возвращает суммарное количество единиц товара в корзине.
func (c *Session) TotalNum() int32 {
	var total int32
	for _, line := range c.lines {
		total += line.Qty
	}
	return total
}

// DistinctNum возвращает число различных позиций.
func (c *Session) DistinctNum() int {
	return len(c.lines)
}

// Flush записывает корзину обратно в кеш. Вызывается на каждом пути выхода;
// после ClearAll без аргументов запись подавлена. Повторный вызов — no-op.
func (c *Session) Flush() {
	if c.flushed || c.discard {
		return
	}
	c.flushed = true

	lines := make([]domain.CartLine, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, line)
	}
	c.store.cache.Set(cacheKey(c.userID), lines, c.store.ttl)
}
