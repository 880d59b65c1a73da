package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/checkout"
	"github.com/vladislavdragonenkov/minishop/internal/service/pricing"
)

type addressReq struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Province string `json:"province"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Detail   string `json:"detail"`
}

type checkoutReq struct {
	Keys         string     `json:"keys"`
	DeliveryType string     `json:"delivery_type"`
	CityID       string     `json:"city_id"`
	ShopID       string     `json:"shop_id"`
	OrderType    string     `json:"order_type"`
	CampaignID   string     `json:"campaign_id"`
	CouponID     string     `json:"coupon_id"`
	Remark       string     `json:"remark"`
	PayerRef     string     `json:"payer_ref"`
	Address      addressReq `json:"address"`
}

type buyNowReq struct {
	checkoutReq
	GoodsID string `json:"goods_id" binding:"required"`
	SkuID   string `json:"sku_id" binding:"required"`
	Qty     int32  `json:"qty"`
}

// handleCheckoutPreview возвращает расчёт выбранных позиций корзины перед
// оформлением, не создавая заказ.
func (s *Server) handleCheckoutPreview(c *gin.Context) {
	userID := currentUserID(c)
	session := s.carts.Checkout(userID)
	defer session.Flush()

	sel := deliverySelectionFromQuery(c)
	sum, err := s.calc.Price(c.Request.Context(), userID, session.List(c.Query("keys")), sel)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	session.Prune(sum.DroppedKeys)

	respondOK(c, newSummaryView(sum))
}

// handleCheckoutSubmit создаёт заказ из выбранных позиций корзины. При
// успехе купленные позиции удаляются из корзины, при отказе корзина
// остаётся нетронутой.
func (s *Server) handleCheckoutSubmit(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := currentUserID(c)
	session := s.carts.Checkout(userID)
	defer session.Flush()

	sel := req.deliverySelection()
	sum, err := s.calc.Price(c.Request.Context(), userID, session.List(req.Keys), sel)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	session.Prune(sum.DroppedKeys)

	result, err := s.factory.CreateOrder(c.Request.Context(), userID, sum, sel, req.createOptions())
	if err != nil {
		if result.Order.ID != "" {
			// Заказ записан, но намерение не зарегистрировано: отдаём заказ,
			// оплату можно запросить повторно.
			respondOK(c, gin.H{
				"order":        newOrderView(result.Order, domain.CampaignStatusNone),
				"prepay_token": "",
			})
			return
		}
		respondDomainError(c, err)
		return
	}

	if req.Keys == "" {
		session.ClearAll("")
	} else {
		session.Remove(req.Keys)
	}

	respondOK(c, gin.H{
		"order":        newOrderView(result.Order, domain.CampaignStatusNone),
		"prepay_token": result.PrepayToken,
	})
}

// handleBuyNowPreview возвращает расчёт одной позиции "купить сейчас".
func (s *Server) handleBuyNowPreview(c *gin.Context) {
	qty := queryInt32(c, "qty", 1)
	sum, err := s.factory.PriceSingle(
		c.Request.Context(), s.calc, currentUserID(c),
		c.Query("goods_id"), c.Query("sku_id"), qty,
		deliverySelectionFromQuery(c),
	)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, newSummaryView(sum))
}

// handleBuyNowSubmit создаёт заказ в обход корзины.
func (s *Server) handleBuyNowSubmit(c *gin.Context) {
	var req buyNowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "goods_id and sku_id are required")
		return
	}
	if req.Qty <= 0 {
		req.Qty = 1
	}

	result, err := s.factory.BuyNow(
		c.Request.Context(), s.calc, currentUserID(c),
		req.GoodsID, req.SkuID, req.Qty,
		req.deliverySelection(), req.createOptions(),
	)
	if err != nil {
		if result.Order.ID != "" {
			respondOK(c, gin.H{
				"order":        newOrderView(result.Order, domain.CampaignStatusNone),
				"prepay_token": "",
			})
			return
		}
		respondDomainError(c, err)
		return
	}

	respondOK(c, gin.H{
		"order":        newOrderView(result.Order, domain.CampaignStatusNone),
		"prepay_token": result.PrepayToken,
	})
}

func (r checkoutReq) deliverySelection() pricing.DeliverySelection {
	deliveryType := domain.DeliveryType(r.DeliveryType)
	if deliveryType == "" {
		deliveryType = domain.DeliveryTypeCourier
	}
	return pricing.DeliverySelection{
		Type:   deliveryType,
		CityID: r.CityID,
		ShopID: r.ShopID,
	}
}

func (r checkoutReq) createOptions() checkout.CreateOptions {
	return checkout.CreateOptions{
		OrderType:  domain.OrderType(r.OrderType),
		CampaignID: r.CampaignID,
		CouponID:   r.CouponID,
		Remark:     r.Remark,
		PayerRef:   r.PayerRef,
		Address: domain.OrderAddress{
			Name:     r.Address.Name,
			Phone:    r.Address.Phone,
			Province: r.Address.Province,
			City:     r.Address.City,
			Region:   r.Address.Region,
			Detail:   r.Address.Detail,
		},
	}
}

func queryInt32(c *gin.Context, name string, fallback int32) int32 {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil || value <= 0 {
		return fallback
	}
	return int32(value)
}
