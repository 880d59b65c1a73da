package kafka

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// eventPublisher позволяет подменять producer в тестах.
type eventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// Notifier публикует события заказов и акций в Kafka. Реализует и
// доменный Notifier, и наблюдателя смены состояния акции.
type Notifier struct {
	publisher eventPublisher
	logger    *log.Entry
}

// NewNotifier создаёт Kafka-нотификатор поверх producer.
func NewNotifier(publisher eventPublisher) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    log.WithField("component", "kafka-notifier"),
	}
}

// Notify публикует событие заказа. Ключ партиционирования — id заказа,
// чтобы события одного заказа сохраняли порядок.
func (n *Notifier) Notify(ctx context.Context, order domain.Order, event string) error {
	evt := NewOrderEvent(EventType(event), order.ID, order.OrderNo, order.UserID,
		string(order.OrderType), order.PayPriceMinor)
	return n.publisher.PublishEvent(TopicOrderEvents, order.ID, evt)
}

// OnCampaignStateChange публикует событие акции. Ошибка публикации только
// логируется: состояние акции уже зафиксировано.
func (n *Notifier) OnCampaignStateChange(c domain.Campaign) {
	eventType := EventTypeCampaignCreated
	switch c.Status {
	case domain.CampaignStatusSucceeded:
		eventType = EventTypeCampaignSucceeded
	case domain.CampaignStatusFailed:
		eventType = EventTypeCampaignFailed
	}

	evt := NewCampaignEvent(eventType, c.ID, c.GoodsID, string(c.Status), c.MemberCount(), c.RequiredMembers)
	if err := n.publisher.PublishEvent(TopicCampaignEvents, c.ID, evt); err != nil {
		n.logger.WithError(err).WithField("campaign_id", c.ID).Error("failed to publish campaign event")
	}
}

var _ domain.Notifier = (*Notifier)(nil)
