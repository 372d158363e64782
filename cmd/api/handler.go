package api

import (
	authRepo "dailyrush-backend/internal/auth/repository"
	authUsecase "dailyrush-backend/internal/auth/usecase"
	"dailyrush-backend/internal/session"
	taskDelivery "dailyrush-backend/internal/task/delivery"
	"dailyrush-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase authUsecase.AuthUsecase
	session     *session.Context
	fcmRepo     authRepo.FCMTokenRepository
	config      *config.Config
	taskHandler *taskDelivery.TaskHandler
}

func NewHandler(authUc authUsecase.AuthUsecase, sessionCtx *session.Context, fcmRepo authRepo.FCMTokenRepository, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase: authUc,
		session:     sessionCtx,
		fcmRepo:     fcmRepo,
		config:      cfg,
		taskHandler: taskDelivery.NewTaskHandler(sessionCtx),
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.session, h.fcmRepo, h.taskHandler)

	return r.Run(addr)
}
