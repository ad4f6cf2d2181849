package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/covehq/cove/internal/api"
	"github.com/covehq/cove/internal/genai"
	"github.com/covehq/cove/internal/lockfile"
	"github.com/covehq/cove/internal/store"
	"github.com/covehq/cove/internal/twiliosms"
	"github.com/covehq/cove/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Cove state data
	DefaultStateDir = "/var/lib/cove"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "cove.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Guard the state directory against a second instance when using
	// file-based storage
	if store.DetectDSNType(*flags.dbDSN) == store.DSNTypeSQLite {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	smsOpts := buildSMSOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Cove with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "sms", len(smsOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	if err := api.Run(ctx, storeOpts, smsOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("Cove failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Cove exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL        string
	StateDir           string
	TwilioSID          string
	TwilioAuthToken    string
	OpenAIKey          string
	APIAddr            string
	CountryCode        string
	NudgeCron          string
	DuplicateWindowMin int
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	twilioSID    *string
	twilioToken  *string
	openaiKey    *string
	apiAddr      *string
	countryCode  *string
	nudgeCron    *string
	dupWindowMin *int
}

// initializeLogger sets up structured logging. COVE_DEBUG enables debug output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("COVE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StateDir:           os.Getenv("COVE_STATE_DIR"),
		TwilioSID:          os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		APIAddr:            os.Getenv("API_ADDR"),
		CountryCode:        os.Getenv("DEFAULT_COUNTRY_CODE"),
		NudgeCron:          os.Getenv("NUDGE_CRON"),
		DuplicateWindowMin: util.ParseIntEnv("DUPLICATE_WINDOW_MIN", 0),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COVE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"COVE_STATE_DIR", config.StateDir,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"DEFAULT_COUNTRY_CODE", config.CountryCode,
		"NUDGE_CRON", config.NudgeCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for Cove data (overrides $COVE_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		twilioSID:    flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:  flag.String("twilio-auth-token", config.TwilioAuthToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		countryCode:  flag.String("country-code", config.CountryCode, "default country code for phone normalization (overrides $DEFAULT_COUNTRY_CODE)"),
		nudgeCron:    flag.String("nudge-cron", config.NudgeCron, "cron schedule for the nudge sweep (overrides $NUDGE_CRON)"),
		dupWindowMin: flag.Int("duplicate-window-min", config.DuplicateWindowMin, "duplicate lead suppression window in minutes (overrides $DUPLICATE_WINDOW_MIN)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"twilioSIDSet", *flags.twilioSID != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"countryCode", *flags.countryCode,
		"nudgeCron", *flags.nudgeCron)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		slog.Debug("Configuring store", "dsn_type", store.DetectDSNType(*flags.dbDSN))
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildSMSOptions constructs Twilio SMS configuration options
func buildSMSOptions(flags Flags) []twiliosms.Option {
	var smsOpts []twiliosms.Option
	if *flags.twilioSID != "" {
		smsOpts = append(smsOpts, twiliosms.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		smsOpts = append(smsOpts, twiliosms.WithAuthToken(*flags.twilioToken))
	}
	return smsOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.countryCode != "" {
		apiOpts = append(apiOpts, api.WithCountryCode(*flags.countryCode))
	}
	if *flags.nudgeCron != "" {
		apiOpts = append(apiOpts, api.WithNudgeCron(*flags.nudgeCron))
	}
	if *flags.dupWindowMin > 0 {
		apiOpts = append(apiOpts, api.WithDuplicateWindow(time.Duration(*flags.dupWindowMin)*time.Minute))
	}
	return apiOpts
}
