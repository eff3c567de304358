package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codearena/internal/api"
	"codearena/internal/app/service"
	"codearena/internal/common/security"
	"codearena/internal/domain/repository"
	"codearena/internal/judge"
	"codearena/internal/platform/cache"
	"codearena/internal/platform/config"
	"codearena/internal/platform/database"
	"codearena/internal/platform/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	log, err := logger.New(os.Getenv("LOG_DIR"))
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.Connect(cfg.DBConnStr)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database connected")

	rdb, err := cache.Connect(cmd.Context(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("redis connected")

	tokens := security.NewTokenManager(cfg.JWTKey, cfg.JWTExp)

	judgeClient := judge.NewClient(judge.ClientConfig{
		BaseURL:      cfg.JudgeURL,
		AuthToken:    cfg.JudgeAuthToken,
		PollInterval: cfg.JudgePollInterval,
		MaxWait:      cfg.JudgeMaxWait,
	}, log)

	userRepo := repository.NewPgUserRepository(db)
	problemRepo := repository.NewPgProblemRepository(db)
	submissionRepo := repository.NewPgSubmissionRepository(db)
	contestRepo := repository.NewPgContestRepository(db)

	authService := service.NewAuthService(userRepo, tokens)
	problemService := service.NewProblemService(problemRepo, userRepo, db, log)
	contestService := service.NewContestService(contestRepo, rdb, cfg.LeaderboardCacheTTL, cfg.LeaderboardSizeLimit, log)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, userRepo, contestService, judgeClient, log)

	router := api.NewRouter(tokens, authService, problemService, submissionService, contestService)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // Must outlast the judging wait budget
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	log.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
