package api

import (
	"net/http"

	"dailyrush-backend/internal/auth/delivery"
	authRepo "dailyrush-backend/internal/auth/repository"
	authUsecase "dailyrush-backend/internal/auth/usecase"
	"dailyrush-backend/internal/session"
	taskDelivery "dailyrush-backend/internal/task/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, sessionCtx *session.Context, fcmRepo authRepo.FCMTokenRepository, taskHandler *taskDelivery.TaskHandler) {
	authHandler := delivery.NewAuthHandler(authUc, sessionCtx, fcmRepo)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUc), authHandler.Me)
			auth.PUT("/profile", delivery.AuthMiddleware(authUc), authHandler.UpdateProfile)
			auth.DELETE("/profile", delivery.AuthMiddleware(authUc), authHandler.ResetProfile)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUc))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Task routes. Deliberately unauthenticated: guest mode is a
		// first-class citizen, the session context routes each request
		// to the right namespace.
		tasks := api.Group("/tasks")
		{
			tasks.GET("", taskHandler.GetTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.PATCH("/:id/toggle", taskHandler.ToggleTask)
			tasks.DELETE("/completed", taskHandler.ClearCompleted)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.DELETE("", taskHandler.ClearAll)
			tasks.GET("/export", taskHandler.Export)
			tasks.GET("/stats", taskHandler.Stats)
		}

		// Points total
		api.GET("/points", taskHandler.Points)
	}
}
