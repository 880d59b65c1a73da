package memory

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

func TestCartCache_SetGetDelete(t *testing.T) {
	cache := NewCartCache()
	lines := []domain.CartLine{{GoodsID: "goods-1", SkuID: "sku-1", Qty: 2}}

	cache.Set("cart_user-1", lines, time.Minute)

	got, ok := cache.Get("cart_user-1")
	if !ok || len(got) != 1 || got[0].Qty != 2 {
		t.Fatalf("unexpected cached lines: %v %v", got, ok)
	}

	// Кеш выдаёт копии: мутация снаружи не видна следующему чтению.
	got[0].Qty = 99
	fresh, _ := cache.Get("cart_user-1")
	if fresh[0].Qty != 2 {
		t.Fatal("cache must hand out copies")
	}

	cache.Delete("cart_user-1")
	if _, ok := cache.Get("cart_user-1"); ok {
		t.Fatal("expected key deleted")
	}
}

func TestCartCache_TTLExpiry(t *testing.T) {
	cache := NewCartCache()
	cache.Set("cart_user-1", []domain.CartLine{{GoodsID: "goods-1", SkuID: "sku-1", Qty: 1}}, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get("cart_user-1"); ok {
		t.Fatal("expired entry must not be returned")
	}
}

func TestCartCache_DeleteExpired(t *testing.T) {
	cache := NewCartCache()
	cache.Set("stale-1", nil, -time.Minute)
	cache.Set("stale-2", nil, -time.Minute)
	cache.Set("fresh", nil, time.Hour)

	deleted, err := cache.DeleteExpired(time.Now(), 0)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	// Живые записи остаются (Get по nil-строкам вернёт пустой срез и ok).
	if _, ok := cache.Get("fresh"); !ok {
		t.Fatal("fresh entry must survive eviction")
	}
}

func TestCartCache_DeleteExpiredHonorsLimit(t *testing.T) {
	cache := NewCartCache()
	for _, key := range []string{"a", "b", "c"} {
		cache.Set(key, nil, -time.Minute)
	}

	deleted, err := cache.DeleteExpired(time.Now(), 2)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected limit of 2, got %d", deleted)
	}

	rest, err := cache.DeleteExpired(time.Now(), 2)
	if err != nil || rest != 1 {
		t.Fatalf("expected 1 remaining, got %d %v", rest, err)
	}
}
