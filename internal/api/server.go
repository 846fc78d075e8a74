// Package api is the HTTP surface for operating the bot: status,
// configuration, lifecycle, and journal queries.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/koshedutech/binance-futures-bot/internal/auth"
	"github.com/koshedutech/binance-futures-bot/internal/bot"
	"github.com/koshedutech/binance-futures-bot/internal/database"
)

// BotController is the orchestrator surface the API drives.
type BotController interface {
	Configure(bot.Policy)
	Start()
	Stop()
	GetStatus() bot.Status
	GetLogs() []bot.LogEntry
}

// Server hosts the operator API.
type Server struct {
	engine     *gin.Engine
	controller BotController
	auth       *auth.Manager
	db         *database.DB
	metrics    http.Handler
	log        zerolog.Logger
}

// NewServer builds the router. db and metrics may be nil.
func NewServer(controller BotController, authManager *auth.Manager, db *database.DB, metrics http.Handler, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		engine:     engine,
		controller: controller,
		auth:       authManager,
		db:         db,
		metrics:    metrics,
		log:        log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}
	s.engine.POST("/api/auth/login", s.handleLogin)

	api := s.engine.Group("/api", s.auth.Middleware())
	api.GET("/status", s.handleStatus)
	api.GET("/logs", s.handleLogs)
	api.POST("/config", s.handleConfig)
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)
	if s.db != nil {
		api.GET("/signals", s.handleSignals)
		api.GET("/orders", s.handleOrders)
	}
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info().Str("addr", addr).Msg("API server listening")
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.auth.Enabled() {
		c.JSON(http.StatusOK, gin.H{"token": "", "auth_disabled": true})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	if !s.auth.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	token, err := s.auth.GenerateToken()
	if err != nil {
		s.log.Error().Err(err).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.GetStatus())
}

func (s *Server) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": s.controller.GetLogs()})
}

type configRequest struct {
	Enabled           *bool   `json:"enabled" binding:"required"`
	MinScore          int     `json:"min_score"`
	MinOrderIntervalS int     `json:"min_order_interval_sec"`
	AccountPercentage float64 `json:"account_percentage"`
	Leverage          int     `json:"leverage"`
	MarginType        string  `json:"margin_type"`
}

func (s *Server) handleConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy := bot.Policy{
		Enabled:           *req.Enabled,
		MinScore:          req.MinScore,
		MinOrderInterval:  time.Duration(req.MinOrderIntervalS) * time.Second,
		AccountPercentage: req.AccountPercentage,
		Leverage:          req.Leverage,
		MarginType:        req.MarginType,
	}
	s.controller.Configure(policy)

	c.JSON(http.StatusOK, s.controller.GetStatus())
}

func (s *Server) handleStart(c *gin.Context) {
	s.controller.Start()
	c.JSON(http.StatusOK, s.controller.GetStatus())
}

func (s *Server) handleStop(c *gin.Context) {
	s.controller.Stop()
	c.JSON(http.StatusOK, s.controller.GetStatus())
}

func (s *Server) handleSignals(c *gin.Context) {
	records, err := s.db.RecentSignals(c.Request.Context(), 50)
	if err != nil {
		s.log.Error().Err(err).Msg("signal query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": records})
}

func (s *Server) handleOrders(c *gin.Context) {
	records, err := s.db.RecentOrders(c.Request.Context(), 50)
	if err != nil {
		s.log.Error().Err(err).Msg("order query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": records})
}
