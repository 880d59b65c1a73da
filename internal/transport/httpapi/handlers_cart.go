package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/pricing"
)

type cartItemReq struct {
	GoodsID string `json:"goods_id" binding:"required"`
	SkuID   string `json:"sku_id" binding:"required"`
	Qty     int32  `json:"qty"`
}

type cartKeysReq struct {
	Keys string `json:"keys"`
}

// handleCartDetail возвращает расчёт корзины: позиции, суммы, доставку и
// применимые купоны. Исчезнувшие из каталога позиции по пути вычищаются.
func (s *Server) handleCartDetail(c *gin.Context) {
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

// handleCartCount возвращает счётчики для бейджа корзины.
func (s *Server) handleCartCount(c *gin.Context) {
	session := s.carts.Checkout(currentUserID(c))
	defer session.Flush()

	respondOK(c, gin.H{
		"total_num":    session.TotalNum(),
		"distinct_num": session.DistinctNum(),
	})
}

func (s *Server) handleCartAdd(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "goods_id and sku_id are required")
		return
	}
	if req.Qty <= 0 {
		req.Qty = 1
	}

	session := s.carts.Checkout(currentUserID(c))
	defer session.Flush()

	if err := session.Add(c.Request.Context(), req.GoodsID, req.SkuID, req.Qty); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, gin.H{"total_num": session.TotalNum()})
}

func (s *Server) handleCartReduce(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "goods_id and sku_id are required")
		return
	}

	session := s.carts.Checkout(currentUserID(c))
	defer session.Flush()

	session.Reduce(req.GoodsID, req.SkuID)
	respondOK(c, gin.H{"total_num": session.TotalNum()})
}

func (s *Server) handleCartRemove(c *gin.Context) {
	var req cartKeysReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Keys == "" {
		respondError(c, http.StatusBadRequest, "keys are required")
		return
	}

	session := s.carts.Checkout(currentUserID(c))
	defer session.Flush()

	session.Remove(req.Keys)
	respondOK(c, gin.H{"total_num": session.TotalNum()})
}

// handleCartClear без ключей выселяет корзину целиком, с ключами — только
// перечисленные позиции.
func (s *Server) handleCartClear(c *gin.Context) {
	var req cartKeysReq
	_ = c.ShouldBindJSON(&req)

	session := s.carts.Checkout(currentUserID(c))
	defer session.Flush()

	session.ClearAll(req.Keys)
	respondOK(c, gin.H{"total_num": session.TotalNum()})
}

func deliverySelectionFromQuery(c *gin.Context) pricing.DeliverySelection {
	sel := pricing.DeliverySelection{
		Type:   domain.DeliveryType(c.DefaultQuery("delivery_type", string(domain.DeliveryTypeCourier))),
		CityID: c.Query("city_id"),
		ShopID: c.Query("shop_id"),
	}
	return sel
}
