package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/SynisterSage/verityapp-sub001/internal/caller"
	"github.com/SynisterSage/verityapp-sub001/internal/config"
	"github.com/SynisterSage/verityapp-sub001/internal/db"
	"github.com/SynisterSage/verityapp-sub001/internal/escalate"
	"github.com/SynisterSage/verityapp-sub001/internal/handlers"
	"github.com/SynisterSage/verityapp-sub001/internal/invites"
	"github.com/SynisterSage/verityapp-sub001/internal/notify"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
	"github.com/SynisterSage/verityapp-sub001/internal/recordings"
	"github.com/SynisterSage/verityapp-sub001/internal/risk"
	"github.com/SynisterSage/verityapp-sub001/internal/router"
	"github.com/SynisterSage/verityapp-sub001/internal/screening"
	"github.com/SynisterSage/verityapp-sub001/internal/server"
	"github.com/SynisterSage/verityapp-sub001/internal/transcribe"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the call-screening API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg := config.Load()
	logger := newLogger(cfg, opts.Verbose)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "insecure-dev-secret"
		logger.Warn("JWT_SECRET not set, using insecure development secret")
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// Schema statements are idempotent, reapplying on boot is safe.
	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	policy, err := riskPolicy(cfg, logger)
	if err != nil {
		return err
	}
	classifier := caller.NewClassifier(logger, policy)

	profileService := profiles.NewService(logger, profiles.NewPGStore(pool))
	ledger := screening.NewLedger(logger, screening.NewPGStore(pool))

	inviteStore := invites.NewPGStore(pool)
	inviteService := invites.NewService(logger, inviteStore, invites.NewIssuer(logger, inviteStore))

	notifyStore := notify.NewPGStore(pool)
	notifyService := notify.NewService(logger, notifyStore)
	expo := notify.NewExpoSender(logger, cfg.ExpoAccessToken).WithBaseURL(cfg.ExpoPushURL)
	dispatcher := notify.NewDispatcher(logger, notifyStore, notifyStore, expo).
		WithConcurrency(cfg.NotifyConcurrency)

	escalator, err := buildEscalator(cfg, logger, pool)
	if err != nil {
		return err
	}

	archive, err := recordings.NewArchive(logger, cfg.RecordingsDir)
	if err != nil {
		return fmt.Errorf("open recording archive: %w", err)
	}

	processor := router.NewCallProcessor(logger, classifier, ledger, profileService, router.NewPGStore(pool)).
		WithDispatcher(dispatcher).
		WithEscalator(escalator).
		WithArchive(archive)
	if cfg.SpeechKey != "" {
		recognizer := transcribe.NewAzureRecognizer(logger, cfg.SpeechRegion, cfg.SpeechKey)
		if cfg.SpeechEndpoint != "" {
			recognizer = recognizer.WithBaseURL(cfg.SpeechEndpoint)
		}
		processor = processor.WithTranscriber(transcribe.NewAggregator(logger, recognizer))
	} else {
		logger.Warn("SPEECH_KEY not set, calls will not be transcribed")
	}
	if cfg.VoiceDetectorURL != "" {
		processor = processor.WithDetector(risk.NewDetector(logger, cfg.VoiceDetectorURL))
	}

	registrars := []server.Registrar{
		handlers.NewProfilesHandler(profileService),
		handlers.NewScreeningHandler(classifier, ledger, profileService),
		handlers.NewInvitesHandler(inviteService, profileService),
		handlers.NewDevicesHandler(notifyService, profileService),
		handlers.NewChannelsHandler(escalator, profileService),
		handlers.NewCallsHandler(processor, archive, profileService),
	}
	if !cfg.Production() {
		registrars = append(registrars, handlers.NewTokenHandler(cfg.JWTSecret))
	}

	e := server.New(cfg, logger, registrars...)

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.ListenAddr), slog.String("env", cfg.Env))
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// riskPolicy loads the high-risk country set, falling back to the built-in
// list when no file is configured.
func riskPolicy(cfg *config.Config, logger *slog.Logger) (caller.Policy, error) {
	if cfg.RiskCountriesFile == "" {
		return caller.DefaultPolicy(), nil
	}
	policy, err := caller.LoadPolicy(cfg.RiskCountriesFile)
	if err != nil {
		return caller.Policy{}, fmt.Errorf("load risk policy: %w", err)
	}
	logger.Info("risk policy loaded",
		slog.String("path", cfg.RiskCountriesFile),
		slog.Int("countries", len(policy.Regions())),
	)
	return policy, nil
}

// buildEscalator registers every chat transport the config carries
// credentials for. A profile can only add channels of registered kinds.
func buildEscalator(cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) (*escalate.Escalator, error) {
	var senders []escalate.Sender
	if cfg.TelegramBotToken != "" {
		telegram, err := escalate.NewTelegramSender(logger, cfg.TelegramBotToken)
		if err != nil {
			return nil, fmt.Errorf("telegram sender: %w", err)
		}
		senders = append(senders, telegram)
	}
	if cfg.LarkAppID != "" {
		senders = append(senders, escalate.NewLarkSender(logger, cfg.LarkAppID, cfg.LarkAppSecret))
	}
	if len(senders) == 0 {
		logger.Warn("no chat transports configured, channel escalation disabled")
	}
	return escalate.NewEscalator(logger, escalate.NewPGStore(pool), senders...), nil
}
