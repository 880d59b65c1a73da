package domain

import "time"

// PrepayStatus описывает жизненный цикл платёжного намерения.
type PrepayStatus string

const (
	// PrepayStatusUnused — намерение создано, подтверждение от шлюза не обработано.
	PrepayStatusUnused PrepayStatus = "unused"
	// PrepayStatusUsed — подтверждение обработано; повторная обработка запрещена.
	PrepayStatusUsed PrepayStatus = "used"
)

// Сколько раз токен можно предъявлять шлюзу после успешной оплаты
// (повторная отправка чека, дозапрос статуса).
const PrepayUsableTimes = 3

// PrepayRecord связывает одно платёжное намерение шлюза с одним заказом и
// служит ключом идемпотентности расчёта: подтверждение с тем же токеном
// обрабатывается ровно один раз.
type PrepayRecord struct {
	Token       string
	OrderID     string
	UserID      string
	OrderType   OrderType
	PayStatus   PrepayStatus
	UsableTimes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет обязательные поля записи.
func (p *PrepayRecord) Validate() []error {
	var errs []error

	if p.Token == "" {
		errs = append(errs, ErrPrepayTokenRequired)
	}
	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}

	return errs
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PrepayStatus) Valid() bool {
	switch s {
	case PrepayStatusUnused, PrepayStatusUsed:
		return true
	default:
		return false
	}
}
