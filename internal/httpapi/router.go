package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/common"
	"github.com/taxmitra/taxmitra/internal/config"
	"github.com/taxmitra/taxmitra/internal/httpapi/handlers"
	"github.com/taxmitra/taxmitra/internal/httpapi/middleware"
	"github.com/taxmitra/taxmitra/internal/store/rabbitmq"
	"github.com/taxmitra/taxmitra/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, pub)

	r.GET("/ping", h.Ping)

	// CRUD users register
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Conversation (JWT required)
	authGroup.GET("/conversation/session", h.GetActiveConversation)
	authGroup.POST("/conversation/sessions", h.CreateConversationSession)
	authGroup.POST("/conversation/messages", h.SendConversationMessage)
	authGroup.GET("/conversation/sessions/:session_id/messages", h.ListConversationMessages)

	// Analysis (JWT required)
	authGroup.POST("/analysis", h.GenerateAnalysis)
	authGroup.POST("/analysis/async", h.GenerateAnalysisAsync)
	authGroup.GET("/analysis/jobs/:job_id", h.GetAnalysisJob)
	authGroup.GET("/analysis/latest", h.GetLatestAnalysis)

	return r
}
