package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prep_arena/internal/api"
	"prep_arena/internal/app/service"
	"prep_arena/internal/common/security"
	"prep_arena/internal/domain/repository"
	"prep_arena/internal/platform/cache"
	"prep_arena/internal/platform/config"
	"prep_arena/internal/platform/database"
	"prep_arena/internal/platform/logger"
)

func main() {
	config.Load()

	log := logger.NewNamedLogger("server")
	defer logger.Sync()

	security.InitJWT()

	database.Connect()
	defer database.Close()

	cache.ConnectRedis()
	defer cache.CloseRedis()

	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)

	txRunner := database.NewTxRunner(database.DB)
	sbCache := cache.NewScoreboardCache(cache.RDB, config.AppConfig.ScoreboardCacheTTL)

	authService := service.NewAuthService(userRepo)
	problemService := service.NewProblemService(problemRepo)
	contestService := service.NewContestService(contestRepo, userRepo, sbCache)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, contestRepo, userRepo, txRunner, sbCache)
	ratingService := service.NewRatingService(contestRepo, userRepo, txRunner, sbCache, config.AppConfig.RatingK)

	router := api.NewRouter(authService, problemService, contestService, submissionService, ratingService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infow("server starting", "port", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-stop

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server shutdown failed", "error", err)
	}
	log.Info("server stopped gracefully")
}
