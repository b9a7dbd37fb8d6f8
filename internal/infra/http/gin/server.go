package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/calendar"
	"innkeep/internal/app/handlers/occupancy"
	"innkeep/internal/app/handlers/reservations"
	"innkeep/internal/app/handlers/rules"
	"innkeep/internal/infra/config"
	"innkeep/internal/infra/obs"
)

// Service is the operation surface the HTTP layer drives; *engine.Engine implements it.
type Service interface {
	CheckAvailability(ctx context.Context, q calendar.CheckAvailabilityQuery) (dto.AvailabilityResult, error)
	BuildGrid(ctx context.Context, q calendar.BuildGridQuery) (dto.Grid, error)
	ComputeOccupancyStats(ctx context.Context, q occupancy.ComputeStatsQuery) (dto.OccupancyStats, error)
	ExportOccupancyReport(ctx context.Context, q occupancy.ExportReportQuery) (dto.ReportExport, error)
	GetReservation(ctx context.Context, q reservations.GetReservationQuery) (dto.Reservation, error)
	ListBlockPeriods(ctx context.Context, q calendar.ListBlockPeriodsQuery) ([]dto.BlockPeriod, error)
	ListRules(ctx context.Context, q rules.ListRulesQuery) ([]dto.Rule, error)
	CreateReservation(ctx context.Context, cmd reservations.CreateReservationCommand) (*dto.Reservation, error)
	ConfirmReservation(ctx context.Context, cmd reservations.ConfirmReservationCommand) (*dto.Reservation, error)
	CancelReservation(ctx context.Context, cmd reservations.CancelReservationCommand) (*dto.CancelResult, error)
	CreateBlockPeriod(ctx context.Context, cmd calendar.CreateBlockPeriodCommand) (*dto.BlockPeriod, error)
	DeactivateBlockPeriod(ctx context.Context, cmd calendar.DeactivateBlockPeriodCommand) (*dto.DeactivateResult, error)
	SetDatePrice(ctx context.Context, cmd calendar.SetDatePriceCommand) (*dto.PriceResult, error)
	UpsertRule(ctx context.Context, cmd rules.UpsertRuleCommand) (*dto.Rule, error)
}

type Handlers struct {
	Service Service
	Logger  *slog.Logger
	// Stream upgrades calendar websocket subscriptions; nil disables the route.
	Stream gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg.Env, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(env string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", HeaderCompany, HeaderActor, HeaderIdempotencyKey},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Retry-After",
			obs.HeaderRequestID,
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	if h.Service == nil {
		return router
	}
	api := router.Group("/api/v1")
	avail := AvailabilityHandler{Service: h.Service, Logger: h.Logger}
	api.GET("/rooms/:id/availability", avail.Check)
	api.GET("/grid", avail.Grid)
	api.GET("/occupancy", avail.Occupancy)
	api.POST("/occupancy/export", avail.Export)

	res := ReservationHandler{Service: h.Service, Logger: h.Logger}
	api.POST("/reservations", res.Create)
	api.GET("/reservations/:id", res.Get)
	api.POST("/reservations/:id/confirm", res.Confirm)
	api.POST("/reservations/:id/cancel", res.Cancel)

	cal := CalendarHandler{Service: h.Service, Logger: h.Logger}
	api.GET("/block-periods", cal.ListBlocks)
	api.POST("/block-periods", cal.CreateBlock)
	api.POST("/block-periods/:id/deactivate", cal.DeactivateBlock)
	api.PUT("/rooms/:id/prices", cal.SetPrices)

	rl := RuleHandler{Service: h.Service, Logger: h.Logger}
	api.GET("/rules", rl.List)
	api.PUT("/rules", rl.Upsert)

	if h.Stream != nil {
		api.GET("/calendar/stream", h.Stream)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
