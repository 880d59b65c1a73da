package campaign

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// Срок жизни акции до вмешательства планировщика истечения.
const defaultCampaignLifetime = 24 * time.Hour

// StateObserver получает уведомление о смене состояния акции. Наблюдатели
// регистрируются при старте приложения явно; вызываются после коммита
// породившей изменение транзакции.
type StateObserver interface {
	OnCampaignStateChange(c domain.Campaign)
}

// Machine управляет переходами акции: pending -> succeeded | failed.
// Переход в failed по истечению выполняет внешний планировщик; здесь он
// только потребляется.
type Machine struct {
	observers []StateObserver
	logger    *log.Entry
}

// NewMachine создаёт машину состояний.
func NewMachine(logger *log.Entry) *Machine {
	if logger == nil {
		logger = log.WithField("component", "campaign")
	}
	return &Machine{logger: logger}
}

// RegisterObserver добавляет наблюдателя смены состояния. Вызывается при
// старте, до начала обработки трафика.
func (m *Machine) RegisterObserver(obs StateObserver) {
	if obs != nil {
		m.observers = append(m.observers, obs)
	}
}

// ApplyPaid выполняет протокол join/create внутри транзакции расчёта:
// заказ без campaign_id открывает новую акцию и становится её первым
// участником, заказ с campaign_id присоединяется к существующей. Возвращает
// акции, чьё состояние изменилось, для уведомления после коммита.
func (m *Machine) ApplyPaid(tx domain.SettlementTx, order *domain.Order, requiredMembers int) ([]domain.Campaign, error) {
	if order.OrderType != domain.OrderTypeGroupBuy {
		return nil, nil
	}

	if order.CampaignID == "" {
		return m.createCampaign(tx, order, requiredMembers)
	}

	joined, err := tx.JoinCampaign(order.CampaignID, order.ID)
	if err != nil {
		return nil, err
	}
	return []domain.Campaign{joined}, nil
}

func (m *Machine) createCampaign(tx domain.SettlementTx, order *domain.Order, requiredMembers int) ([]domain.Campaign, error) {
	now := time.Now().UTC()
	c := domain.Campaign{
		ID:               uuid.NewString(),
		InitiatorOrderID: order.ID,
		GoodsID:          firstGoodsID(order),
		RequiredMembers:  requiredMembers,
		Status:           domain.CampaignStatusPending,
		MemberOrderIDs:   []string{order.ID},
		ExpiresAt:        now.Add(defaultCampaignLifetime),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if errs := c.Validate(); len(errs) > 0 {
		m.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"errors":   errs,
		}).Error("invalid campaign")
		return nil, errs[0]
	}

	created, err := tx.CreateCampaign(c)
	if err != nil {
		return nil, err
	}
	order.CampaignID = created.ID
	return []domain.Campaign{created}, nil
}

// NotifyStateChanges рассылает уведомления наблюдателям. Вызывается строго
// после коммита; ошибки наблюдателей не влияют на зафиксированное состояние.
func (m *Machine) NotifyStateChanges(campaigns []domain.Campaign) {
	for _, c := range campaigns {
		for _, obs := range m.observers {
			obs.OnCampaignStateChange(c)
		}
	}
}

func firstGoodsID(order *domain.Order) string {
	if len(order.Lines) == 0 {
		return ""
	}
	return order.Lines[0].GoodsID
}
