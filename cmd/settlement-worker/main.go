package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"invoicewallet/internal/application/dto"
	"invoicewallet/internal/infrastructure/config"
	"invoicewallet/internal/infrastructure/di"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.LUTC)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("dotenv load warning error=%v", err)
	}

	cfg, cfgErr := config.LoadConfig()
	if cfgErr != nil {
		logger.Printf("startup config error code=%s message=%s metadata=%v", cfgErr.Code, cfgErr.Message, cfgErr.Metadata)
		return 1
	}
	logger.Printf(
		"settlement worker config persistence_mode=%s chain_mode=%s networks=%v scheduler_enabled=%t",
		cfg.PersistenceMode,
		cfg.ChainMode,
		cfg.NetworkNames(),
		cfg.SchedulerEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, buildErr := di.Build(ctx, cfg, logger)
	if buildErr != nil {
		logger.Printf("dependency wiring error: %v", buildErr)
		return 1
	}
	defer container.Close()

	if container.InitializePersistenceUseCase != nil {
		logger.Printf("persistence initialization starting database_target=%s", cfg.DatabaseTarget)
		persistenceErr := container.InitializePersistenceUseCase.Execute(ctx, dto.InitializePersistenceCommand{
			ReadinessTimeout:       cfg.DBReadinessTimeout,
			ReadinessRetryInterval: cfg.DBReadinessRetryInterval,
		})
		if persistenceErr != nil {
			logger.Printf(
				"persistence initialization failed code=%s message=%s metadata=%v",
				persistenceErr.Code,
				persistenceErr.Message,
				persistenceErr.Details,
			)
			return 1
		}
		logger.Printf("persistence initialization completed database_target=%s", cfg.DatabaseTarget)
	}

	schedulerDone := sync.WaitGroup{}
	if container.Scheduler != nil && container.Scheduler.Enabled() {
		schedulerDone.Add(1)
		go func() {
			defer schedulerDone.Done()
			container.Scheduler.Start(ctx)
		}()
	} else {
		logger.Printf("invoice scheduler disabled; serving ops endpoints only")
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- container.Server.Start()
	}()

	exitCode := 0
	select {
	case err := <-serverErrCh:
		if err != nil {
			logger.Printf("ops server startup failed: %v", err)
			exitCode = 1
		}
		stop()
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := container.Server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("graceful shutdown failed: %v", err)
			exitCode = 1
		} else if err := <-serverErrCh; err != nil {
			logger.Printf("ops server stopped with error: %v", err)
			exitCode = 1
		}
	}

	// Trackers leave in-flight transactions pending; the next start resumes them.
	schedulerDone.Wait()
	logger.Printf("settlement worker stopped")
	return exitCode
}
