package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ConnectID-SG/connectid/internal/alert"
	"github.com/ConnectID-SG/connectid/internal/api"
	"github.com/ConnectID-SG/connectid/internal/bot"
	"github.com/ConnectID-SG/connectid/internal/dispatch"
	"github.com/ConnectID-SG/connectid/internal/geo"
	"github.com/ConnectID-SG/connectid/internal/notify"
	"github.com/ConnectID-SG/connectid/internal/onboard"
	"github.com/ConnectID-SG/connectid/internal/scheduler"
	"github.com/ConnectID-SG/connectid/internal/store"
	"github.com/ConnectID-SG/connectid/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ConnectID state data
	DefaultStateDir = "/var/lib/connectid"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "connectid.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	notifier, err := notify.NewTelegramNotifier(
		notify.WithToken(*flags.telegramToken),
		notify.WithDispatchChatID(*flags.dispatchChatID),
		notify.WithDebug(util.ParseBoolEnv("TELEGRAM_DEBUG", false)),
	)
	if err != nil {
		slog.Error("Failed to initialize Telegram notifier", "error", err)
		os.Exit(1)
	}

	alerts := buildAlertSender()

	controller, err := dispatch.NewController(
		dispatch.WithStore(st),
		dispatch.WithNotifier(notifier),
		dispatch.WithAlertSender(alerts),
	)
	if err != nil {
		slog.Error("Failed to initialize dispatch controller", "error", err)
		os.Exit(1)
	}

	flow, err := onboard.NewFlow(
		onboard.WithStore(st),
		onboard.WithNotifier(notifier),
	)
	if err != nil {
		slog.Error("Failed to initialize onboarding flow", "error", err)
		os.Exit(1)
	}

	router, err := bot.NewRouter(controller, flow, st)
	if err != nil {
		slog.Error("Failed to initialize update router", "error", err)
		os.Exit(1)
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(*flags.sweepSchedule, func() {
		processed, err := controller.Sweep(context.Background())
		if err != nil {
			slog.Error("Sweep job failed", "error", err)
			return
		}
		if processed > 0 {
			slog.Info("Sweep job assigned signals", "processed", processed)
		}
	}); err != nil {
		slog.Error("Failed to schedule sweep job", "error", err)
		os.Exit(1)
	}

	server, err := api.NewServer(
		api.WithAddr(*flags.apiAddr),
		api.WithStore(st),
		api.WithController(controller),
		api.WithLocator(geo.NewResolver()),
		api.WithRouter(router),
	)
	if err != nil {
		slog.Error("Failed to initialize API server", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping ConnectID with configured modules")
	if err := server.Run(); err != nil {
		slog.Error("ConnectID failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ConnectID exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	TelegramToken  string
	DispatchChatID int64
	APIAddr        string
	SweepSchedule  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	telegramToken  *string
	dispatchChatID *int64
	apiAddr        *string
	sweepSchedule  *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("CONNECTID_STATE_DIR"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		DispatchChatID: util.ParseInt64Env("TELEGRAM_CHAT_ID", 0),
		APIAddr:        os.Getenv("API_ADDR"),
		SweepSchedule:  os.Getenv("SWEEP_SCHEDULE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CONNECTID_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	if config.SweepSchedule == "" {
		config.SweepSchedule = scheduler.SweepSchedule
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CONNECTID_STATE_DIR", config.StateDir,
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"TELEGRAM_CHAT_ID_SET", config.DispatchChatID != 0,
		"API_ADDR", config.APIAddr,
		"SWEEP_SCHEDULE", config.SweepSchedule)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for ConnectID data (overrides $CONNECTID_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN or SQLite path (overrides $DATABASE_URL)"),
		telegramToken:  flag.String("telegram-token", config.TelegramToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		dispatchChatID: flag.Int64("dispatch-chat-id", config.DispatchChatID, "dispatcher group chat id (overrides $TELEGRAM_CHAT_ID)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepSchedule:  flag.String("sweep-schedule", config.SweepSchedule, "cron schedule for the signal sweep (overrides $SWEEP_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"telegramTokenSet", *flags.telegramToken != "",
		"dispatchChatID_set", *flags.dispatchChatID != 0,
		"apiAddr", *flags.apiAddr,
		"sweepSchedule", *flags.sweepSchedule)

	return flags
}

// openStore selects the backend from the DSN shape: Postgres URLs go to
// the Postgres store, everything else is treated as a SQLite path.
func openStore(dsn string) (store.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		slog.Info("Using Postgres store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Info("Using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildAlertSender wires the Twilio SMS sender when credentials are
// present, otherwise alerts are disabled.
func buildAlertSender() alert.Sender {
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" {
		slog.Info("Twilio credentials not configured, emergency contact alerts disabled")
		return alert.NoopSender{}
	}
	sender, err := alert.NewTwilioSender()
	if err != nil {
		slog.Error("Failed to initialize Twilio sender, emergency contact alerts disabled", "error", err)
		return alert.NoopSender{}
	}
	return sender
}
