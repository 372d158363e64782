package main

import (
	"context"
	"log"

	api "dailyrush-backend/cmd/api"
	authdomain "dailyrush-backend/internal/auth/domain"
	authRepo "dailyrush-backend/internal/auth/repository"
	authUsecase "dailyrush-backend/internal/auth/usecase"
	"dailyrush-backend/internal/migration"
	"dailyrush-backend/internal/session"
	taskRepo "dailyrush-backend/internal/task/repository"
	"dailyrush-backend/internal/task/scheduler"
	taskUsecase "dailyrush-backend/internal/task/usecase"
	"dailyrush-backend/pkg/cache"
	"dailyrush-backend/pkg/config"
	"dailyrush-backend/pkg/database"
	"dailyrush-backend/pkg/fcm"
	"dailyrush-backend/pkg/firebase"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.FCMToken{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize local cache store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	store := cache.NewRedisStore(rdb)

	// Initialize remote store. Without a configured project the widget
	// runs cache-only: everything works, nothing syncs.
	var remote taskRepo.RemoteStore
	if cfg.FirebaseProjectID != "" {
		client, err := firebase.NewFirestoreClient(context.Background(), cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize Firestore (remote sync disabled): %v", err)
		} else {
			remote = taskRepo.NewFirestoreStore(client)
			log.Println("Firestore remote store initialized")
		}
	} else {
		log.Println("[WARN] FIREBASE_PROJECT_ID not configured, remote sync disabled")
	}

	// Initialize FCM client for due-task reminders (optional)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (reminders disabled): %v", err)
		}
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	cacheRepo := taskRepo.NewCacheRepository(store)
	identityCache := authRepo.NewIdentityCache(store)

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, cfg)
	migrator := migration.NewCoordinator(cacheRepo, store, remote)
	manager := taskUsecase.NewManager(cacheRepo, remote, migrator)

	// Resolve the session identity: provider session first, cached
	// identity second, guest mode last.
	resolver := authUsecase.NewResolver(authUsecaseInstance, identityCache)
	state := resolver.Resolve(context.Background(), "")
	log.Printf("Identity resolved: %s", state)

	sessionCtx := session.NewContext(resolver, manager, remote)

	// Warm the current namespace so the first request is served from
	// loaded state.
	if _, err := sessionCtx.Reconciler(context.Background()); err != nil {
		log.Printf("[WARN] Failed to warm session: %v", err)
	}

	// Start due-task reminder scheduler
	reminderScheduler := scheduler.NewReminderScheduler(manager, fcmTokenRepo, fcmClient, cfg.ReminderInterval, cfg.ReminderWindow)
	reminderScheduler.Start()
	defer reminderScheduler.Stop()
	defer manager.CloseAll()

	// Start HTTP server
	handler := api.NewHandler(authUsecaseInstance, sessionCtx, fcmTokenRepo, cfg)
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
