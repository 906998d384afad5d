package api

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"meanrevbacktest/internal/app"
	"meanrevbacktest/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

var (
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meanrev_api_requests_total",
		Help: "Total API requests by route and status code",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meanrev_api_request_duration_seconds",
		Help:    "API request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	backtestDays = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meanrev_backtest_days",
		Help:    "Number of trading days per backtest request",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
	})
)

type ApiHandler struct {
	// nil unless postgres is a price source or cache
	Db              *sql.DB
	BacktestHandler app.BacktestHandler
	Logger          *zap.SugaredLogger
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.Use(m.requestContextMiddleware)
	engine.Use(metricsMiddleware)

	engine.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to meanrev"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.POST("/backtest", m.backtest)

	return engine
}

func (m ApiHandler) StartApi(port int) error {
	return m.InitializeRouterEngine().Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, 500)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.FromContext(c.Request.Context()).Errorw("request failed", "status", code, "error", err)
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

// requestContextMiddleware tags the request with an id and puts a
// logger carrying it on the request context
func (m ApiHandler) requestContextMiddleware(c *gin.Context) {
	requestID := c.GetHeader(requestIDHeader)
	if _, err := uuid.Parse(requestID); err != nil {
		requestID = uuid.NewString()
	}
	c.Set("requestID", requestID)
	c.Header(requestIDHeader, requestID)

	log := m.Logger
	if log == nil {
		log = zap.S()
	}
	log = log.With("requestID", requestID)
	c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), log))

	start := time.Now()
	c.Next()

	log.Infow(
		"handled request",
		"method", c.Request.Method,
		"route", c.FullPath(),
		"status", c.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
		"ip", c.ClientIP(),
	)
}

func metricsMiddleware(c *gin.Context) {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	start := time.Now()
	c.Next()

	requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	requestTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
}
