package domain

// DisplayStatus — текстовое состояние заказа для витрины, вычисляется из
// кортежа (order_status, pay_status, order_type, состояние акции, флаг
// возврата) при каждом чтении и нигде не хранится.
type DisplayStatus string

const (
	DisplayAwaitingPayment      DisplayStatus = "awaiting payment"
	DisplayAwaitingShipment     DisplayStatus = "paid, awaiting shipment"
	DisplayAwaitingReceipt      DisplayStatus = "shipped, awaiting receipt"
	DisplayAwaitingGroup        DisplayStatus = "paid, awaiting group"
	DisplayGroupShipment        DisplayStatus = "group complete, awaiting shipment"
	DisplayCampaignFailed       DisplayStatus = "campaign failed, refund pending"
	DisplayCampaignRefunded     DisplayStatus = "campaign failed, refunded"
	DisplayCancelled            DisplayStatus = "cancelled"
	DisplayCancelRequested      DisplayStatus = "cancel requested"
	DisplayCompleted            DisplayStatus = "completed"
)

// RenderStatus — чистая функция отображения состояния заказа. Побочных
// эффектов нет; результат полностью определяется аргументами.
func RenderStatus(o Order, campaign CampaignStatus) DisplayStatus {
	failedText := func() DisplayStatus {
		if o.IsRefunded {
			return DisplayCampaignRefunded
		}
		return DisplayCampaignFailed
	}

	switch o.OrderStatus {
	case OrderStatusCompleted:
		return DisplayCompleted
	case OrderStatusPendingCancel:
		return DisplayCancelRequested
	case OrderStatusCampaignFailed:
		return failedText()
	case OrderStatusCancelled:
		if o.OrderType == OrderTypeGroupBuy && campaign == CampaignStatusFailed {
			return failedText()
		}
		return DisplayCancelled
	}

	if o.PayStatus == PayStatusUnpaid {
		return DisplayAwaitingPayment
	}

	if o.OrderType == OrderTypeDirect {
		if o.DeliveryStatus == DeliveryStatusPending {
			return DisplayAwaitingShipment
		}
		return DisplayAwaitingReceipt
	}

	// Групповой заказ: текст зависит от состояния акции.
	switch campaign {
	case CampaignStatusFailed:
		return failedText()
	case CampaignStatusPending:
		return DisplayAwaitingGroup
	default:
		if o.DeliveryStatus == DeliveryStatusPending {
			return DisplayGroupShipment
		}
		return DisplayAwaitingReceipt
	}
}
