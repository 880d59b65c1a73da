package domain

import (
	"strings"
	"time"
)

// CartTTL — срок хранения корзины пользователя в кеше.
const CartTTL = 15 * 24 * time.Hour

// CartLine — позиция корзины. Уникальный ключ — пара (GoodsID, SkuID).
type CartLine struct {
	GoodsID string
	SkuID   string
	Qty     int32
	AddedAt time.Time
}

// Key возвращает составной ключ позиции в формате "goodsID_skuID".
func (l CartLine) Key() string {
	return CartKey(l.GoodsID, l.SkuID)
}

// CartKey собирает составной ключ позиции корзины.
func CartKey(goodsID, skuID string) string {
	return goodsID + "_" + skuID
}

// SplitCartKey разбирает составной ключ на goodsID и skuID.
func SplitCartKey(key string) (goodsID, skuID string, ok bool) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

// SplitCartKeys разбирает список ключей, разделённых запятыми.
func SplitCartKeys(keys string) []string {
	if keys == "" {
		return nil
	}
	parts := strings.Split(keys, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
