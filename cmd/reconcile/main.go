package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// Утилита оператора: показывает оплаченные заказы неудачных акций, ожидающие
// возврата. Сам возврат выполняет сервис через POST /admin/reconcile, т.к.
// только он держит клиента платёжного шлюза.
func main() {
	var (
		dsn   string
		limit int
	)

	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: SHOP_POSTGRES_DSN)")
	flag.IntVar(&limit, "limit", 100, "maximum number of orders to list")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("SHOP_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("SHOP_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	orders, err := postgres.NewOrderRepository(store).ListFailedCampaignOrders(limit)
	if err != nil {
		fail("list failed campaign orders: %v", err)
	}

	if len(orders) == 0 {
		fmt.Println("no refunds pending")
		return
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("ORDER NO", "USER", "AMOUNT", "CAMPAIGN", "TX ID", "CREATED")
	for _, order := range orders {
		_ = table.Append([]string{
			order.OrderNo,
			order.UserID,
			domain.FormatMinor(order.PayPriceMinor),
			order.CampaignID,
			order.TransactionID,
			order.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	if err := table.Render(); err != nil {
		fail("render report: %v", err)
	}

	fmt.Printf("%d orders pending refund\n", len(orders))
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
