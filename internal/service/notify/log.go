package notify

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// LogNotifier пишет уведомления в лог. Используется, когда Kafka отключена.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт лог-нотификатор.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.WithField("component", "notifier")}
}

// Notify логирует событие заказа.
func (n *LogNotifier) Notify(ctx context.Context, order domain.Order, event string) error {
	n.logger.WithFields(log.Fields{
		"order_no": order.OrderNo,
		"user_id":  order.UserID,
		"event":    event,
	}).Info("order notification")
	return nil
}

// LogPrinter пишет задания печати в лог. Живой принтер чеков подключается
// только на точках самовывоза.
type LogPrinter struct {
	logger *log.Entry
}

// NewLogPrinter создаёт лог-принтер.
func NewLogPrinter() *LogPrinter {
	return &LogPrinter{logger: log.WithField("component", "printer")}
}

// PrintTicket логирует задание на печать чека.
func (p *LogPrinter) PrintTicket(ctx context.Context, order domain.Order, event string) error {
	p.logger.WithFields(log.Fields{
		"order_no": order.OrderNo,
		"event":    event,
	}).Info("print ticket")
	return nil
}

var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Printer  = (*LogPrinter)(nil)
)
