package settlement

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/metrics"
	"github.com/vladislavdragonenkov/minishop/internal/service/campaign"
)

// Result — исход обработки подтверждения шлюза.
type Result string

const (
	// ResultSettled — заказ переведён в paid, все шаги зафиксированы.
	ResultSettled Result = "settled"
	// ResultDuplicate — подтверждение уже обрабатывалось; повтор безопасен
	// и не меняет состояние.
	ResultDuplicate Result = "duplicate"
	// ResultFailed — единица расчёта откатилась, заказ остался unpaid и
	// пригоден для повторной доставки подтверждения.
	ResultFailed Result = "failed"
)

const sideEffectTimeout = 5 * time.Second

// Service выполняет атомарный расчёт оплаты: перевод заказа unpaid -> paid
// вместе со списанием остатков, накоплением трат пользователя, протоколом
// групповой акции и закрытием ключа идемпотентности.
type Service struct {
	unit     domain.SettlementUnit
	catalog  domain.CatalogService
	dealers  domain.DealerService
	notifier domain.Notifier
	printer  domain.Printer
	machine  *campaign.Machine
	logger   *log.Entry
	metrics  *metrics.SettlementMetrics
}

// NewService создаёт сервис расчёта.
func NewService(
	unit domain.SettlementUnit,
	catalog domain.CatalogService,
	dealers domain.DealerService,
	notifier domain.Notifier,
	printer domain.Printer,
	machine *campaign.Machine,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "settlement")
	}
	if machine == nil {
		machine = campaign.NewMachine(logger)
	}
	return &Service{
		unit:     unit,
		catalog:  catalog,
		dealers:  dealers,
		notifier: notifier,
		printer:  printer,
		machine:  machine,
		logger:   logger,
		metrics:  metrics.NewSettlementMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	unit domain.SettlementUnit,
	catalog domain.CatalogService,
	dealers domain.DealerService,
	notifier domain.Notifier,
	printer domain.Printer,
	machine *campaign.Machine,
	logger *log.Entry,
) *Service {
	s := NewService(unit, catalog, dealers, notifier, printer, machine, logger)
	s.metrics = nil
	return s
}

// Settle обрабатывает подтверждение шлюза для заказа orderNo. Шаги 1-6
// исполняются как одна атомарная единица; повторное подтверждение того же
// заказа распознаётся и отвечает ResultDuplicate без второго списания.
func (s *Service) Settle(ctx context.Context, orderNo, transactionID string) (Result, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordSettlementStarted()
		defer func() {
			s.metrics.RecordSettlementDuration(time.Since(start))
		}()
	}

	logger := s.logger.WithFields(log.Fields{
		"order_no":       orderNo,
		"transaction_id": transactionID,
	})

	var (
		settled domain.Order
		changed []domain.Campaign
		outcome = ResultSettled
	)

	err := s.unit.WithinSettlement(ctx, orderNo, func(tx domain.SettlementTx) error {
		order, err := tx.OrderByNo(orderNo)
		if err != nil {
			return err
		}

		// Защита от повторной доставки: уже оплаченный заказ — дубликат.
		if order.PayStatus == domain.PayStatusPaid {
			outcome = ResultDuplicate
			return nil
		}

		// Закрытие ключа идемпотентности выполняется внутри той же единицы:
		// второй конкурентный расчёт упрётся либо в pay_status, либо сюда.
		if _, err := tx.ConsumePrepay(order.ID, order.OrderType); err != nil {
			if errors.Is(err, domain.ErrPrepayAlreadyUsed) {
				outcome = ResultDuplicate
				return nil
			}
			return err
		}

		if err := tx.AdjustStockSales(order.Lines); err != nil {
			return err
		}

		if order.OrderType == domain.OrderTypeGroupBuy {
			// Протокол акции идёт до финализации статуса: campaign_id
			// записывается на заказ этой же транзакцией.
			required, err := s.groupBuyRule(ctx, &order)
			if err != nil {
				return err
			}
			changed, err = s.machine.ApplyPaid(tx, &order, required)
			if err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		order.PayStatus = domain.PayStatusPaid
		order.PayTime = now
		order.TransactionID = transactionID
		order.UpdatedAt = now
		if err := tx.SaveOrderPaid(order); err != nil {
			return err
		}

		if err := tx.AccrueUserSpend(order.UserID, order.PayPriceMinor); err != nil {
			return err
		}

		if s.dealers != nil {
			if _, err := s.dealers.MaybeEnroll(ctx, order.UserID, order.GoodsIDs()); err != nil {
				return err
			}
		}

		settled = order
		return nil
	})

	if err != nil {
		changed = nil
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			// Бизнес-отказ, не системный сбой: заказ остаётся unpaid.
			if s.metrics != nil {
				s.metrics.RecordSettlementNoStock()
			}
			logger.WithError(err).Warn("settlement rejected: insufficient stock")
		default:
			if s.metrics != nil {
				s.metrics.RecordSettlementFailed()
			}
			logger.WithError(err).Error("settlement rolled back")
		}
		return ResultFailed, err
	}

	if outcome == ResultDuplicate {
		if s.metrics != nil {
			s.metrics.RecordSettlementDuplicate()
		}
		logger.Debug("duplicate gateway confirmation ignored")
		return ResultDuplicate, nil
	}

	if s.metrics != nil {
		s.metrics.RecordSettlementCompleted()
		for _, c := range changed {
			switch c.Status {
			case domain.CampaignStatusPending:
				s.metrics.RecordCampaignCreated()
			case domain.CampaignStatusSucceeded:
				s.metrics.RecordCampaignSucceeded()
			}
		}
	}
	logger.Info("settlement committed")

	// Побочные эффекты после коммита: их сбой не откатывает расчёт.
	s.machine.NotifyStateChanges(changed)
	s.dispatchSideEffects(settled)

	return ResultSettled, nil
}

func (s *Service) groupBuyRule(ctx context.Context, order *domain.Order) (int, error) {
	if order.CampaignID != "" {
		// Присоединение: порог хранится в самой акции.
		return 0, nil
	}
	goodsID := ""
	if len(order.Lines) > 0 {
		goodsID = order.Lines[0].GoodsID
	}
	return s.catalog.GroupBuyRule(ctx, goodsID)
}

// dispatchSideEffects отправляет уведомление и чек в фоне. Обе доставки
// fire-and-forget с ограниченным временем.
func (s *Service) dispatchSideEffects(order domain.Order) {
	if s.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			if err := s.notifier.Notify(ctx, order, "order.paid"); err != nil {
				s.logger.WithError(err).WithField("order_no", order.OrderNo).Warn("payment notification failed")
			}
		}()
	}
	if s.printer != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			if err := s.printer.PrintTicket(ctx, order, "order.paid"); err != nil {
				s.logger.WithError(err).WithField("order_no", order.OrderNo).Warn("ticket print failed")
			}
		}()
	}
}
