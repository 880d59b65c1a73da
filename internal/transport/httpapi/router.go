package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/cart"
	"github.com/vladislavdragonenkov/minishop/internal/service/checkout"
	"github.com/vladislavdragonenkov/minishop/internal/service/pricing"
	"github.com/vladislavdragonenkov/minishop/internal/service/reconcile"
	"github.com/vladislavdragonenkov/minishop/internal/service/settlement"
)

// Server собирает HTTP API магазина поверх gin.
type Server struct {
	carts      *cart.Store
	calc       *pricing.Calculator
	factory    *checkout.Factory
	settler    *settlement.Service
	reconciler *reconcile.Job
	orders     domain.OrderRepository
	campaigns  domain.CampaignRepository
	jwtSecret  []byte
	logger     *log.Entry
}

// NewServer создаёт HTTP-сервер с зависимостями.
func NewServer(
	carts *cart.Store,
	calc *pricing.Calculator,
	factory *checkout.Factory,
	settler *settlement.Service,
	reconciler *reconcile.Job,
	orders domain.OrderRepository,
	campaigns domain.CampaignRepository,
	jwtSecret string,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Server{
		carts:      carts,
		calc:       calc,
		factory:    factory,
		settler:    settler,
		reconciler: reconciler,
		orders:     orders,
		campaigns:  campaigns,
		jwtSecret:  []byte(jwtSecret),
		logger:     logger,
	}
}

// Router возвращает настроенный gin-роутер.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	// Подтверждение шлюза приходит server-to-server, без пользовательского токена.
	api.POST("/pay/notify", s.handlePayNotify)

	authed := api.Group("", s.authRequired())
	{
		authed.GET("/cart", s.handleCartDetail)
		authed.GET("/cart/count", s.handleCartCount)
		authed.POST("/cart/add", s.handleCartAdd)
		authed.POST("/cart/reduce", s.handleCartReduce)
		authed.POST("/cart/remove", s.handleCartRemove)
		authed.POST("/cart/clear", s.handleCartClear)

		authed.GET("/checkout", s.handleCheckoutPreview)
		authed.POST("/checkout", s.handleCheckoutSubmit)
		authed.GET("/buynow", s.handleBuyNowPreview)
		authed.POST("/buynow", s.handleBuyNowSubmit)

		authed.GET("/orders", s.handleOrderList)
		authed.GET("/order/:id", s.handleOrderDetail)
	}

	admin := router.Group("/admin", s.authRequired())
	{
		admin.POST("/reconcile", s.handleReconcile)
		admin.POST("/order/:id/pickup", s.handlePickup)
	}

	return router
}

// requestLogger пишет строку доступа на каждый запрос.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("http request")
	}
}
