package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/qbot/internal/access"
	"github.com/suPer8Hu/qbot/internal/common"
	"github.com/suPer8Hu/qbot/internal/httpapi/handlers"
	"github.com/suPer8Hu/qbot/internal/httpapi/middleware"
)

type RouterConfig struct {
	BotSecret string
	// AdminJWTSecret enables the /admin routes when set.
	AdminJWTSecret string
}

func NewRouter(cfg RouterConfig, bot handlers.UpdateDispatcher, gate *access.Gate, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.AccessLog(logger))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(bot, gate, logger)

	r.GET("/health", h.Health)
	r.POST("/webhook", middleware.WebhookSecret(cfg.BotSecret), h.Webhook)

	if cfg.AdminJWTSecret != "" && gate != nil {
		admin := r.Group("/admin")
		admin.Use(middleware.AuthRequired(cfg.AdminJWTSecret))
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.AddUser)
		admin.DELETE("/users/:id", h.RemoveUser)
	}
	return r
}
