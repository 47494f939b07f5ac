// Package main is the entry point for the storeops retail operations
// service: the decision pipeline, the allocation planner, the autonomous
// agent loop and the admin HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/agent"
	"github.com/aristath/storeops/internal/clients/posfeed"
	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/database"
	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/events"
	"github.com/aristath/storeops/internal/modules/allocation"
	"github.com/aristath/storeops/internal/modules/audit"
	"github.com/aristath/storeops/internal/modules/cooloff"
	"github.com/aristath/storeops/internal/modules/decisions"
	"github.com/aristath/storeops/internal/modules/drift"
	"github.com/aristath/storeops/internal/modules/guardrails"
	"github.com/aristath/storeops/internal/modules/inventory"
	"github.com/aristath/storeops/internal/modules/pricing"
	"github.com/aristath/storeops/internal/modules/scoring"
	"github.com/aristath/storeops/internal/modules/transfers"
	"github.com/aristath/storeops/internal/server"
	"github.com/aristath/storeops/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Bool("agent_enabled", cfg.AgentEnabled).
		Msg("Starting storeops")

	// Three databases: the append-only decision trail, operational retail
	// state, and ephemeral cache data
	decisionsDB := mustOpenDB(log, cfg.DataDir, "decisions", database.ProfileLedger)
	defer decisionsDB.Close()
	retailDB := mustOpenDB(log, cfg.DataDir, "retail", database.ProfileStandard)
	defer retailDB.Close()
	cacheDB := mustOpenDB(log, cfg.DataDir, "cache", database.ProfileCache)
	defer cacheDB.Close()

	eventManager := events.NewManager(log)

	// Persistence layer
	proposals := decisions.NewProposalRepository(decisionsDB.Conn(), log)
	cooloffs := cooloff.NewRepository(decisionsDB.Conn(), log)
	audits := audit.NewRepository(decisionsDB.Conn(), log)
	transferRepo := transfers.NewRepository(decisionsDB.Conn(), log)
	outlets := inventory.NewOutletRepository(retailDB.Conn(), log)
	stocks := inventory.NewStockRepository(retailDB.Conn(), log)
	velocities := inventory.NewVelocityRepository(retailDB.Conn(), log)
	products := inventory.NewProductRepository(retailDB.Conn(), log)
	pricingRepo := pricing.NewRepository(retailDB.Conn(), log)
	agentRuns := agent.NewRunRepository(cacheDB.Conn(), log)

	// Decision pipeline
	policy := cfg.Policy
	chain := guardrails.NewChain(log,
		guardrails.NewPriceDeltaBoundRule(policy.Guardrails),
		guardrails.NewMarginFloorRule(policy.Guardrails),
		&guardrails.StockAvailableRule{},
		guardrails.NewVelocityFloorRule(policy.Guardrails),
		guardrails.NewCooloffGuardRule(cooloffs, policy.CooloffHours),
	)
	engine := scoring.NewEngine(policy.Thresholds)
	orchestrator := decisions.NewOrchestrator(chain, engine, proposals, cooloffs, audits, eventManager, policy, log)

	// Planning services
	allocator := allocation.NewAllocator(policy.Allocator, log)
	allocationService := allocation.NewService(allocator, stocks, outlets, velocities, log)
	pricingService := pricing.NewService(pricingRepo, products, velocities, log)

	// Drift monitoring over recent proposal scores
	driftMetrics := drift.NewRepository(decisionsDB.Conn(), log)
	baselines := drift.NewBaselineStore(cacheDB.Conn(), log)
	driftMonitor := drift.NewMonitor(proposalScores(proposals), baselines, driftMetrics, eventManager, policy.Drift, log)

	// Autonomous agent
	agentJob := agent.NewAgent(
		orchestrator, pricingService, allocationService, stocks, transferRepo,
		agentRuns, eventManager, policy.Agent, log,
	)

	scheduler := agent.NewScheduler(log)
	if cfg.AgentEnabled {
		if err := scheduler.AddJob(cfg.AgentSchedule, agentJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.AgentSchedule).Msg("Failed to register agent job")
		}
	}
	driftJob := &driftCheckJob{monitor: driftMonitor, featureSets: cfg.DriftFeatures}
	if err := scheduler.AddJob("0 0 * * * *", driftJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register drift check job")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// POS sales feed keeps the velocity table current
	var feed *posfeed.Client
	if cfg.POSFeedURL != "" {
		feed = posfeed.NewClient(cfg.POSFeedURL, velocities, eventManager, log)
		if err := feed.Start(); err != nil {
			log.Warn().Err(err).Msg("POS feed unavailable, continuing without live velocity")
		}
		defer feed.Stop()
	}

	srv := server.New(server.Config{
		Log:          log,
		Cfg:          cfg,
		Orchestrator: orchestrator,
		Proposals:    proposals,
		Audits:       audits,
		Allocation:   allocationService,
		Transfers:    transferRepo,
		DriftMonitor: driftMonitor,
		DriftMetrics: driftMetrics,
		AgentRuns:    agentRuns,
		AgentJob:     agentJob,
		Events:       eventManager,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

// mustOpenDB opens and migrates one database or exits
func mustOpenDB(log zerolog.Logger, dataDir, name string, profile database.DatabaseProfile) *database.DB {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Str("database", name).Msg("Failed to migrate database")
	}
	log.Info().Str("database", name).Str("profile", string(profile)).Msg("Database ready")
	return db
}

// proposalScores adapts the proposal repository into a drift score source.
// Feature sets map onto decision types: pricing_score and transfer_score.
func proposalScores(proposals *decisions.ProposalRepository) drift.ScoreSource {
	return func(featureSet string, limit int) ([]float64, error) {
		decisionType := domain.DecisionPricing
		if featureSet == "transfer_score" {
			decisionType = domain.DecisionTransfer
		}
		return proposals.RecentScores(decisionType, limit)
	}
}

// driftCheckJob runs the drift monitor over the configured feature sets
type driftCheckJob struct {
	monitor     *drift.Monitor
	featureSets []string
}

func (j *driftCheckJob) Name() string { return "drift_check" }

func (j *driftCheckJob) Run() error {
	var lastErr error
	for _, featureSet := range j.featureSets {
		if _, err := j.monitor.Check(featureSet, 500); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
