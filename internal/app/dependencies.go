package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/catalog"
	"github.com/vladislavdragonenkov/minishop/internal/service/coupon"
	"github.com/vladislavdragonenkov/minishop/internal/service/dealer"
	"github.com/vladislavdragonenkov/minishop/internal/service/delivery"
	"github.com/vladislavdragonenkov/minishop/internal/service/gateway"
	"github.com/vladislavdragonenkov/minishop/internal/storage/memory"
	"github.com/vladislavdragonenkov/minishop/internal/storage/postgres"
)

// Dependencies содержит зависимости приложения: хранилище и коллабораторов.
type Dependencies struct {
	Orders    domain.OrderRepository
	Campaigns domain.CampaignRepository
	Prepays   domain.PrepayRepository
	Unit      domain.SettlementUnit
	CartCache domain.CartCache

	Catalog  domain.CatalogService
	Delivery domain.DeliveryRuleService
	Coupons  domain.CouponService
	Gateway  domain.PaymentGateway
	Dealers  domain.DealerService

	PG     *postgres.Store // nil для in-memory режима
	Logger *log.Entry

	// EvictionCache — кеш корзин для воркера выселения; nil, если
	// выселение не требуется.
	EvictionCache *memory.CartCache
}

// NewDependencies собирает зависимости: PostgreSQL при заданном DSN, иначе
// in-memory хранилище. Внешние сервисы (каталог, доставка, купоны, шлюз,
// дилеры) — настраиваемые заглушки; в бою их заменяют живые клиенты.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Catalog:  catalog.NewMockService(),
		Delivery: delivery.NewMockService(),
		Coupons:  coupon.NewMockService(),
		Gateway:  gateway.NewMockGateway(),
		Dealers:  dealer.NewMockService(),
		Logger:   logger,
	}

	cartCache := memory.NewCartCache()
	deps.CartCache = cartCache
	deps.EvictionCache = cartCache

	if cfg.PostgresDSN == "" {
		store := memory.NewStore()
		deps.Orders = memory.NewOrderRepository(store)
		deps.Campaigns = memory.NewCampaignRepository(store)
		deps.Prepays = memory.NewPrepayRepository(store)
		deps.Unit = memory.NewSettlementUnit(store)
		logger.Info("using in-memory storage")
		return deps, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	deps.PG = store
	deps.Orders = postgres.NewOrderRepository(store)
	deps.Campaigns = postgres.NewCampaignRepository(store)
	deps.Prepays = postgres.NewPrepayRepository(store)
	deps.Unit = postgres.NewSettlementUnit(store, logger.WithField("component", "settlement-unit"))
	logger.Info("using postgres storage")
	return deps, nil
}

// Close освобождает ресурсы зависимостей.
func (d *Dependencies) Close() {
	if d.PG != nil {
		if err := d.PG.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
