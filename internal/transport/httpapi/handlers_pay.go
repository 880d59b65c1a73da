package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/reconcile"
	"github.com/vladislavdragonenkov/minishop/internal/service/settlement"
)

type payNotifyReq struct {
	OrderNo       string `json:"order_no" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

type reconcileReq struct {
	BatchSize int `json:"batch_size"`
}

// handlePayNotify обрабатывает подтверждение оплаты от шлюза. Повторная
// доставка того же подтверждения отвечает успехом без второго списания;
// откат расчёта отвечает ошибкой, чтобы шлюз повторил доставку.
func (s *Server) handlePayNotify(c *gin.Context) {
	var req payNotifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "order_no and transaction_id are required")
		return
	}

	result, err := s.settler.Settle(c.Request.Context(), req.OrderNo, req.TransactionID)
	if err != nil {
		if domain.IsBusinessFailure(err) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "settlement failed")
		return
	}

	respondOK(c, gin.H{
		"result":    string(result),
		"duplicate": result == settlement.ResultDuplicate,
	})
}

// handleReconcile запускает один проход возврата средств по неудачным
// акциям и возвращает отчёт.
func (s *Server) handleReconcile(c *gin.Context) {
	var req reconcileReq
	_ = c.ShouldBindJSON(&req)

	report, err := s.reconciler.Run(c.Request.Context(), req.BatchSize)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "reconcile pass failed")
		return
	}

	respondOK(c, newReportView(report))
}

type reportItemView struct {
	OrderID string `json:"order_id"`
	OrderNo string `json:"order_no"`
	Amount  string `json:"amount"`
	Reason  string `json:"reason,omitempty"`
}

type reportView struct {
	Refunded []reportItemView `json:"refunded"`
	Failed   []reportItemView `json:"failed"`
}

func newReportView(report reconcile.Report) reportView {
	view := reportView{
		Refunded: make([]reportItemView, 0, len(report.Refunded)),
		Failed:   make([]reportItemView, 0, len(report.Failed)),
	}
	for _, item := range report.Refunded {
		view.Refunded = append(view.Refunded, newReportItemView(item))
	}
	for _, item := range report.Failed {
		view.Failed = append(view.Failed, newReportItemView(item))
	}
	return view
}

func newReportItemView(item reconcile.ItemResult) reportItemView {
	return reportItemView{
		OrderID: item.OrderID,
		OrderNo: item.OrderNo,
		Amount:  domain.FormatMinor(item.AmountMinor),
		Reason:  item.Reason,
	}
}
