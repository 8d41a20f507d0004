package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"raffle/bot"
	"raffle/config"
	"raffle/database"
	"raffle/events"
	"raffle/models"
	"raffle/repository"
	"raffle/scheduler"
	"raffle/service"
	"raffle/telemetry"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting giveaway engine...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize unit of work factory and pool-backed repositories
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	giveawayRepo := repository.NewGiveawayRepository(db)
	jobRepo := repository.NewJobRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Initialize Discord bot and its adapters. The engine only sees the
	// NotificationSink / MemberDirectory / Authorizer interfaces.
	log.Println("Initializing Discord bot...")
	// The services and the bot reference each other, so wire the bot first
	// with a late-bound service handle.
	serviceHandle := &giveawayServiceHandle{}
	discordBot, err := bot.New(bot.Config{Token: cfg.DiscordToken}, serviceHandle, eventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	sink := bot.NewAnnouncer(discordBot.Session())
	directory := bot.NewMemberDirectory(discordBot.Session(), nil)
	authorizer := bot.NewAuthorizer(discordBot.Session())

	// Initialize services
	selector := service.NewWinnerSelector()
	lifecycleService := service.NewLifecycleService(uowFactory, giveawayRepo, ledgerRepo, selector, directory, sink)
	giveawayService := service.NewGiveawayService(uowFactory, lifecycleService, directory, authorizer, sink)
	serviceHandle.GiveawayService = giveawayService
	log.Println("Services initialized successfully")

	// Start the job executor
	executor := scheduler.NewExecutor(cfg, jobRepo, eventBus)
	executor.RegisterHandler(models.TransitionEnd, lifecycleService.HandleEnd)
	executor.RegisterHandler(models.TransitionClaimTimeout, lifecycleService.HandleClaimTimeout)
	executorDone := make(chan struct{})
	go func() {
		defer close(executorDone)
		if err := executor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Executor stopped: %v", err)
		}
	}()

	// Expose metrics
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: telemetry.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Wait for context cancellation
	log.Printf("Giveaway engine is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down...")

	// Close Discord bot connection
	if err := discordBot.Close(); err != nil {
		log.Printf("Error closing Discord bot: %v", err)
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics server: %v", err)
	}

	// Let in-flight jobs finish their current attempt
	select {
	case <-executorDone:
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded waiting for executor")
	}

	// Close database connection
	log.Println("Closing database connection...")
	db.Close()

	log.Println("Shutdown completed")
	return nil
}

// giveawayServiceHandle lets the bot be constructed before the service that
// depends on the bot's session-backed adapters.
type giveawayServiceHandle struct {
	service.GiveawayService
}
