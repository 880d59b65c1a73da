package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/minishop/internal/health"
	"github.com/vladislavdragonenkov/minishop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/minishop/internal/metrics"
	"github.com/vladislavdragonenkov/minishop/internal/service/campaign"
	"github.com/vladislavdragonenkov/minishop/internal/service/cart"
	"github.com/vladislavdragonenkov/minishop/internal/service/checkout"
	"github.com/vladislavdragonenkov/minishop/internal/service/notify"
	"github.com/vladislavdragonenkov/minishop/internal/service/pricing"
	"github.com/vladislavdragonenkov/minishop/internal/service/reconcile"
	"github.com/vladislavdragonenkov/minishop/internal/service/settlement"
	"github.com/vladislavdragonenkov/minishop/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/minishop/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает и запускает магазин: HTTP API, метрики, воркер выселения
// корзин. Блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Kafka опциональна: без брокеров уведомления уходят в лог.
	var notifier domain.Notifier = notify.NewLogNotifier()
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	machine := campaign.NewMachine(logger.WithField("component", "campaign"))
	if producer != nil {
		kafkaNotifier := kafka.NewNotifier(producer)
		notifier = kafkaNotifier
		machine.RegisterObserver(kafkaNotifier)
	}

	calc := pricing.NewCalculator(deps.Catalog, deps.Delivery, deps.Coupons,
		logger.WithField("component", "pricing"))
	carts := cart.NewStore(deps.CartCache, deps.Catalog, logger.WithField("component", "cart"))
	factory := checkout.NewFactory(deps.Orders, deps.Prepays, deps.Catalog, deps.Coupons, deps.Gateway,
		logger.WithField("component", "checkout"))
	settler := settlement.NewService(deps.Unit, deps.Catalog, deps.Dealers,
		notifier, notify.NewLogPrinter(), machine,
		logger.WithField("component", "settlement"))
	reconciler := reconcile.NewJob(deps.Orders, deps.Gateway,
		logger.WithField("component", "reconcile"),
		reconcile.WithMetrics(metrics.NewSettlementMetrics()))

	server := httpapi.NewServer(carts, calc, factory, settler, reconciler,
		deps.Orders, deps.Campaigns, cfg.JWTSecret,
		logger.WithField("component", "httpapi"))

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.PG != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.PG.Ping(checkCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	if deps.EvictionCache != nil {
		evictor := cart.NewEvictionWorker(deps.EvictionCache,
			cart.WithLogger(logger.WithField("component", "cart-eviction-worker")))
		go evictor.Run(ctx)
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(httpSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
