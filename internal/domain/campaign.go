package domain

import "time"

// CampaignStatus отражает состояние групповой акции.
type CampaignStatus string

const (
	// CampaignStatusNone — заказ не связан с акцией.
	CampaignStatusNone CampaignStatus = ""
	// CampaignStatusPending — акция открыта и принимает участников.
	CampaignStatusPending CampaignStatus = "pending"
	// CampaignStatusSucceeded — набрано требуемое число участников. Терминальное состояние.
	CampaignStatusSucceeded CampaignStatus = "succeeded"
	// CampaignStatusFailed — срок истёк без набора участников. Терминальное состояние,
	// выставляется внешним планировщиком.
	CampaignStatusFailed CampaignStatus = "failed"
)

// Campaign — групповая акция: когорта покупателей, совместно выкупающая товар.
type Campaign struct {
	ID               string
	InitiatorOrderID string
	GoodsID          string
	RequiredMembers  int
	Status           CampaignStatus
	MemberOrderIDs   []string
	ExpiresAt        time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate проверяет корректность ключевых полей акции.
func (c *Campaign) Validate() []error {
	var errs []error

	if c.InitiatorOrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if c.GoodsID == "" {
		errs = append(errs, ErrCampaignGoodsRequired)
	}
	if c.RequiredMembers < 2 {
		errs = append(errs, ErrCampaignMembersInvalid)
	}

	return errs
}

// MemberCount возвращает текущее число участников.
func (c *Campaign) MemberCount() int {
	return len(c.MemberOrderIDs)
}

// Terminal сообщает, достигла ли акция конечного состояния.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusSucceeded || s == CampaignStatusFailed
}
