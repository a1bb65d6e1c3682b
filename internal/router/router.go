package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/capd-api/internal/handler/health"
	promhandler "github.com/jwalitptl/capd-api/internal/handler/prometheus"
	"github.com/jwalitptl/capd-api/internal/middleware"
	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/pkg/metrics"
	"github.com/jwalitptl/capd-api/pkg/validator"
)

var dialysateRule = validator.Rule{
	Tag:     "dialysate",
	Message: "must be one of 1.5, 2.5 or 4.25",
	Valid: func(s string) bool {
		_, ok := model.ParseDialysate(s)
		return ok
	},
}

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// DeviceHandler mounts routes that take their own middleware chain.
type DeviceHandler interface {
	RegisterRoutes(*gin.RouterGroup, ...gin.HandlerFunc)
}

type Handlers struct {
	Treatment    Handler
	Patient      Handler
	Prescription Handler
	IoT          DeviceHandler
	Health       *health.Handler
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSOrigins    []string
	CORSMaxAge     time.Duration
	// Zero disables limiting of the device routes.
	RateLimit rate.Limit
	RateBurst int
	Gatherer  prometheus.Gatherer
}

type Router struct {
	engine   *gin.Engine
	handlers Handlers
	auth     *middleware.AuthMiddleware
	metrics  *metrics.Metrics
	config   RouterConfig
}

// NewRouter builds the engine with the core middleware chain. A nil auth
// leaves the clinical routes open.
func NewRouter(handlers Handlers, auth *middleware.AuthMiddleware, m *metrics.Metrics, config RouterConfig) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if err := validator.RegisterGin(dialysateRule); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.ErrorHandler(),
		middleware.Metrics(m),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSOrigins, config.CORSMaxAge),
		middleware.SizeLimit(config.MaxBodyBytes),
		middleware.Timeout(config.RequestTimeout),
	)

	return &Router{
		engine:   engine,
		handlers: handlers,
		auth:     auth,
		metrics:  m,
		config:   config,
	}, nil
}

func (r *Router) Setup() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.config.Gatherer != nil {
		r.engine.GET("/metrics", promhandler.New(r.config.Gatherer).Handler())
	}

	api := r.engine.Group("/api")

	if r.handlers.IoT != nil {
		device := []gin.HandlerFunc{middleware.NoCache()}
		if r.config.RateLimit > 0 {
			limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
				Rate:  r.config.RateLimit,
				Burst: r.config.RateBurst,
			})
			device = append(device, limiter.RateLimit())
		}
		r.handlers.IoT.RegisterRoutes(api, device...)
	}

	clinical := api.Group("")
	if r.auth != nil {
		clinical.Use(r.auth.Authenticate())
	}
	for _, h := range []Handler{r.handlers.Treatment, r.handlers.Patient, r.handlers.Prescription} {
		if h != nil {
			h.RegisterRoutes(clinical)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
