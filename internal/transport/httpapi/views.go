package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/pricing"
)

// Ответ держит формат мини-приложения: code 1 — успех, 0 — отказ.
func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 1, "msg": "success", "data": data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"code": 0, "msg": msg})
}

// respondDomainError переводит доменную ошибку в HTTP-ответ: бизнес-отказы
// отдаются как 409 с текстом для покупателя, остальное — 500.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrCampaignNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPickupNotEligible) || errors.Is(err, domain.ErrAlreadyRefunded):
		respondError(c, http.StatusConflict, err.Error())
	case domain.IsBusinessFailure(err):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLineQtyInvalid) || errors.Is(err, domain.ErrLinesRequired):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

type pricedLineView struct {
	GoodsID   string `json:"goods_id"`
	SkuID     string `json:"sku_id"`
	GoodsName string `json:"goods_name"`
	SkuName   string `json:"sku_name"`
	Price     string `json:"price"`
	Qty       int32  `json:"qty"`
	Total     string `json:"total"`
	StockNum  int32  `json:"stock_num"`
	IsListed  bool   `json:"is_listed"`
}

type couponView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Discount string `json:"discount"`
	MinOrder string `json:"min_order"`
}

type summaryView struct {
	Lines       []pricedLineView `json:"lines"`
	TotalNumber int32            `json:"total_number"`
	Total       string           `json:"total"`
	ExpressFee  string           `json:"express_fee"`
	Payable     string           `json:"payable"`
	IntraRegion bool             `json:"intra_region"`
	Coupons     []couponView     `json:"coupons"`
	Error       string           `json:"error,omitempty"`
	ErrorGoods  string           `json:"error_goods,omitempty"`
}

// Суммы выходят наружу строками с двумя знаками; внутри всё считается
// в минимальных единицах.
func newSummaryView(sum pricing.Summary) summaryView {
	view := summaryView{
		Lines:       make([]pricedLineView, 0, len(sum.Lines)),
		TotalNumber: sum.TotalNumber,
		Total:       domain.FormatMinor(sum.TotalMinor),
		ExpressFee:  domain.FormatMinor(sum.ExpressFeeMinor),
		Payable:     domain.FormatMinor(sum.PayableMinor),
		IntraRegion: sum.IntraRegion,
		Coupons:     make([]couponView, 0, len(sum.Coupons)),
	}
	for _, line := range sum.Lines {
		view.Lines = append(view.Lines, pricedLineView{
			GoodsID:   line.GoodsID,
			SkuID:     line.SkuID,
			GoodsName: line.GoodsName,
			SkuName:   line.SkuName,
			Price:     domain.FormatMinor(line.PriceMinor),
			Qty:       line.Qty,
			Total:     domain.FormatMinor(line.TotalMinor),
			StockNum:  line.StockNum,
			IsListed:  line.IsListed,
		})
	}
	for _, coupon := range sum.Coupons {
		view.Coupons = append(view.Coupons, couponView{
			ID:       coupon.ID,
			Name:     coupon.Name,
			Discount: domain.FormatMinor(coupon.DiscountMinor),
			MinOrder: domain.FormatMinor(coupon.MinOrderMinor),
		})
	}
	if sum.Err != nil {
		view.Error = sum.Err.Error()
		view.ErrorGoods = sum.ErrGoodsName
	}
	return view
}

type orderLineView struct {
	GoodsID   string `json:"goods_id"`
	SkuID     string `json:"sku_id"`
	GoodsName string `json:"goods_name"`
	SkuName   string `json:"sku_name"`
	Price     string `json:"price"`
	Qty       int32  `json:"qty"`
	Total     string `json:"total"`
}

type orderView struct {
	ID           string          `json:"id"`
	OrderNo      string          `json:"order_no"`
	OrderType    string          `json:"order_type"`
	DeliveryType string          `json:"delivery_type"`
	PayStatus    string          `json:"pay_status"`
	OrderStatus  string          `json:"order_status"`
	StateText    string          `json:"state_text"`
	PayPrice     string          `json:"pay_price"`
	ExpressFee   string          `json:"express_fee"`
	Discount     string          `json:"discount"`
	CampaignID   string          `json:"campaign_id,omitempty"`
	IsRefunded   bool            `json:"is_refunded"`
	Remark       string          `json:"remark,omitempty"`
	Lines        []orderLineView `json:"lines"`
	CreatedAt    string          `json:"created_at"`
}

func newOrderView(o domain.Order, campaignStatus domain.CampaignStatus) orderView {
	view := orderView{
		ID:           o.ID,
		OrderNo:      o.OrderNo,
		OrderType:    string(o.OrderType),
		DeliveryType: string(o.DeliveryType),
		PayStatus:    string(o.PayStatus),
		OrderStatus:  string(o.OrderStatus),
		StateText:    string(domain.RenderStatus(o, campaignStatus)),
		PayPrice:     domain.FormatMinor(o.PayPriceMinor),
		ExpressFee:   domain.FormatMinor(o.ExpressFeeMinor),
		Discount:     domain.FormatMinor(o.DiscountMinor),
		CampaignID:   o.CampaignID,
		IsRefunded:   o.IsRefunded,
		Remark:       o.Remark,
		Lines:        make([]orderLineView, 0, len(o.Lines)),
		CreatedAt:    o.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
	for _, line := range o.Lines {
		view.Lines = append(view.Lines, orderLineView{
			GoodsID:   line.GoodsID,
			SkuID:     line.SkuID,
			GoodsName: line.GoodsName,
			SkuName:   line.SkuName,
			Price:     domain.FormatMinor(line.PriceMinor),
			Qty:       line.Qty,
			Total:     domain.FormatMinor(line.TotalMinor),
		})
	}
	return view
}
