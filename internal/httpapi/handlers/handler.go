package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/ai"
	"github.com/taxmitra/taxmitra/internal/analysis"
	"github.com/taxmitra/taxmitra/internal/common"
	"github.com/taxmitra/taxmitra/internal/config"
	"github.com/taxmitra/taxmitra/internal/conversation"
	"github.com/taxmitra/taxmitra/internal/email"
	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/httpapi/middleware"
	"github.com/taxmitra/taxmitra/internal/oracle"
	"github.com/taxmitra/taxmitra/internal/store/rabbitmq"
	"github.com/taxmitra/taxmitra/internal/store/redisstore"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	Rabbit      *rabbitmq.Publisher
	SMTPSetting email.SMTPConfig
	ConvSvc     *conversation.Service
	AnalysisSvc *analysis.Service
	AnalysisRpo *analysis.Repo
	Facts       *facts.Repo
}

func NewHandler(db *gorm.DB, cfg config.Config, r *redisstore.Store, pub *rabbitmq.Publisher) *Handler {
	var provider ai.Provider
	switch strings.ToLower(cfg.AIProvider) {
	case "", "gemini":
		provider = ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "ollama":
		provider = ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
	default:
		panic(fmt.Sprintf("unsupported AI_PROVIDER=%q", cfg.AIProvider))
	}

	factRepo := facts.NewRepo(db)
	convSvc := conversation.NewService(conversation.NewRepo(db), factRepo, oracle.NewExtractor(provider))
	analysisRepo := analysis.NewRepo(db)
	analysisSvc := analysis.NewService(analysisRepo, factRepo, oracle.NewStrategist(provider))

	return &Handler{
		DB:     db,
		Cfg:    cfg,
		Redis:  r,
		Rabbit: pub,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
		ConvSvc:     convSvc,
		AnalysisSvc: analysisSvc,
		AnalysisRpo: analysisRepo,
		Facts:       factRepo,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func ok(c *gin.Context, data any) { common.OK(c, data) }

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	common.Fail(c, httpStatus, code, msg)
}
