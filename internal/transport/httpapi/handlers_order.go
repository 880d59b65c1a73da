package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// handleOrderDetail возвращает заказ с вычисленным текстовым состоянием.
func (s *Server) handleOrderDetail(c *gin.Context) {
	order, err := s.orders.Get(c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if order.UserID != currentUserID(c) {
		respondError(c, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		return
	}

	respondOK(c, newOrderView(order, s.campaignStatusOf(order)))
}

// handleOrderList возвращает заказы пользователя, свежие первыми.
func (s *Server) handleOrderList(c *gin.Context) {
	limit := int(queryInt32(c, "limit", 20))
	orders, err := s.orders.ListByUser(currentUserID(c), limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order, s.campaignStatusOf(order)))
	}
	respondOK(c, gin.H{"orders": views})
}

// handlePickup выдаёт заказ на пункте самовывоза: отгрузка, получение и
// завершение одним переходом после проверки условий.
func (s *Server) handlePickup(c *gin.Context) {
	order, err := s.orders.Get(c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	campaignStatus := s.campaignStatusOf(order)
	if err := order.ConfirmPickup(campaignStatus, time.Now()); err != nil {
		respondDomainError(c, err)
		return
	}

	if err := s.orders.Save(order); err != nil {
		respondDomainError(c, err)
		return
	}

	s.logger.WithField("order_no", order.OrderNo).Info("order picked up")
	respondOK(c, newOrderView(order, campaignStatus))
}

// campaignStatusOf возвращает состояние акции заказа; для прямых заказов
// и недоступной акции — CampaignStatusNone.
func (s *Server) campaignStatusOf(order domain.Order) domain.CampaignStatus {
	if order.CampaignID == "" {
		return domain.CampaignStatusNone
	}
	campaign, err := s.campaigns.Get(order.CampaignID)
	if err != nil {
		s.logger.WithError(err).WithField("campaign_id", order.CampaignID).Warn("campaign lookup failed")
		return domain.CampaignStatusNone
	}
	return campaign.Status
}
