package domain

import (
	"errors"
	"testing"
	"time"
)

func validOrder() Order {
	now := time.Now().UTC()
	return Order{
		ID:            "order-1",
		OrderNo:       "20260828120000aabbccdd",
		UserID:        "user-1",
		OrderType:     OrderTypeDirect,
		DeliveryType:  DeliveryTypeCourier,
		PayStatus:     PayStatusUnpaid,
		OrderStatus:   OrderStatusActive,
		PayPriceMinor: 10800,
		ExpressFeeMinor: 800,
		Lines: []OrderLine{{
			ID:         "line-1",
			OrderID:    "order-1",
			GoodsID:    "goods-1",
			SkuID:      "sku-1",
			GoodsName:  "Чай улун",
			PriceMinor: 5000,
			Qty:        2,
			TotalMinor: 10000,
			CreatedAt:  now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Valid(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected valid order, got %v", errs)
	}
}

func TestOrderValidateInvariants_PayPriceMath(t *testing.T) {
	// 50.00 x 2 + доставка 8.00 - скидка 10.00 = 108.00 - 10.00 = 98.00
	order := validOrder()
	order.DiscountMinor = 1000
	order.PayPriceMinor = 9800
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected valid order with discount, got %v", errs)
	}

	order.PayPriceMinor = 10800
	errs := order.ValidateInvariants()
	if len(errs) != 1 || !errors.Is(errs[0], ErrPayPriceMismatch) {
		t.Fatalf("expected pay price mismatch, got %v", errs)
	}
}

func TestOrderValidateInvariants_NegativeExpectedClampsToZero(t *testing.T) {
	// Скидка больше суммы заказа: к оплате ноль, а не отрицательное значение.
	order := validOrder()
	order.DiscountMinor = 20000
	order.PayPriceMinor = 0
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected clamped pay price to validate, got %v", errs)
	}
}

func TestOrderValidateInvariants_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Order)
		wantErr error
	}{
		{"missing user", func(o *Order) { o.UserID = "" }, ErrUserRequired},
		{"missing order no", func(o *Order) { o.OrderNo = "" }, ErrOrderNoRequired},
		{"no lines", func(o *Order) { o.Lines = nil }, ErrLinesRequired},
		{"negative pay price", func(o *Order) { o.PayPriceMinor = -1 }, ErrPayPriceNegative},
		{"zero qty", func(o *Order) { o.Lines[0].Qty = 0 }, ErrLineQtyInvalid},
		{"negative price", func(o *Order) { o.Lines[0].PriceMinor = -100 }, ErrLinePriceInvalid},
		{"total mismatch", func(o *Order) { o.Lines[0].TotalMinor = 1 }, ErrLineTotalMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			tt.mutate(&order)

			errs := order.ValidateInvariants()
			found := false
			for _, err := range errs {
				if errors.Is(err, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v in %v", tt.wantErr, errs)
			}
		})
	}
}

func TestOrderGoodsIDs_Deduplicates(t *testing.T) {
	order := validOrder()
	order.Lines = append(order.Lines,
		OrderLine{GoodsID: "goods-1", SkuID: "sku-2", PriceMinor: 100, Qty: 1, TotalMinor: 100},
		OrderLine{GoodsID: "goods-2", SkuID: "sku-1", PriceMinor: 100, Qty: 1, TotalMinor: 100},
	)

	ids := order.GoodsIDs()
	if len(ids) != 2 || ids[0] != "goods-1" || ids[1] != "goods-2" {
		t.Fatalf("unexpected goods ids: %v", ids)
	}
}

func TestConfirmPickup(t *testing.T) {
	base := func() Order {
		order := validOrder()
		order.DeliveryType = DeliveryTypePickup
		order.PayStatus = PayStatusPaid
		order.DeliveryStatus = DeliveryStatusPending
		order.ReceiptStatus = ReceiptStatusPending
		return order
	}

	tests := []struct {
		name     string
		mutate   func(*Order)
		campaign CampaignStatus
		wantErr  bool
	}{
		{"direct paid pickup", func(o *Order) {}, CampaignStatusNone, false},
		{"unpaid", func(o *Order) { o.PayStatus = PayStatusUnpaid }, CampaignStatusNone, true},
		{"courier order", func(o *Order) { o.DeliveryType = DeliveryTypeCourier }, CampaignStatusNone, true},
		{"already shipped", func(o *Order) { o.DeliveryStatus = DeliveryStatusShipped }, CampaignStatusNone, true},
		{"cancelled", func(o *Order) { o.OrderStatus = OrderStatusCancelled }, CampaignStatusNone, true},
		{"cancel requested", func(o *Order) { o.OrderStatus = OrderStatusPendingCancel }, CampaignStatusNone, true},
		{"group buy pending campaign", func(o *Order) { o.OrderType = OrderTypeGroupBuy }, CampaignStatusPending, true},
		{"group buy failed campaign", func(o *Order) { o.OrderType = OrderTypeGroupBuy }, CampaignStatusFailed, true},
		{"group buy succeeded campaign", func(o *Order) { o.OrderType = OrderTypeGroupBuy }, CampaignStatusSucceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := base()
			tt.mutate(&order)

			err := order.ConfirmPickup(tt.campaign, time.Now())
			if tt.wantErr {
				if !errors.Is(err, ErrPickupNotEligible) {
					t.Fatalf("expected ErrPickupNotEligible, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if order.DeliveryStatus != DeliveryStatusShipped ||
				order.ReceiptStatus != ReceiptStatusReceived ||
				order.OrderStatus != OrderStatusCompleted {
				t.Fatalf("pickup did not complete order: %+v", order)
			}
		})
	}
}

func TestFormatMinor(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{10800, "108.00"},
		{12345, "123.45"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		if got := FormatMinor(tt.amount); got != tt.want {
			t.Errorf("FormatMinor(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
