package domain

// SkuRef адресует конкретный вариант товара в каталоге.
type SkuRef struct {
	GoodsID string
	SkuID   string
}

// Key возвращает составной ключ ссылки, совпадающий с ключом корзины.
func (r SkuRef) Key() string {
	return CartKey(r.GoodsID, r.SkuID)
}

// GoodsInfo — срез данных каталога по одному sku: листинг, цена, остаток.
type GoodsInfo struct {
	GoodsID    string
	GoodsName  string
	SkuID      string
	SkuName    string
	PriceMinor int64
	StockNum   int32
	IsListed   bool
}

// PricedLine — результат расчёта одной позиции. Производное значение,
// никогда не кешируется: остатки и листинг меняются между просмотрами.
type PricedLine struct {
	GoodsID    string
	SkuID      string
	GoodsName  string
	SkuName    string
	PriceMinor int64
	Qty        int32
	TotalMinor int64
	StockNum   int32
	IsListed   bool
}

// Coupon — купон пользователя, применимый к сумме заказа.
type Coupon struct {
	ID            string
	Name          string
	DiscountMinor int64
	MinOrderMinor int64
}
