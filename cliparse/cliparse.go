package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/transitions"
)

// Supported database types
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMemory   = "memory"
)

const (
	defaultPort      = 3318
	defaultSQLiteURL = "file:yap.db"
)

type Config struct {
	Port                int
	DatabaseURL         string
	DatabaseType        string
	ModeratorKeySalt    string
	TransitionInterval  time.Duration
	DefaultPollDuration time.Duration
}

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	// A missing .env is fine; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	fs := flag.NewFlagSet("yap", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or memory)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.ModeratorKeySalt, "moderator-salt", "", "Moderator key salt (prefer env)")

	// Engine timing
	fs.DurationVar(&cfg.TransitionInterval, "interval", 0, "How often each event is checked for expired polls")
	fs.DurationVar(&cfg.DefaultPollDuration, "default-duration", 0, "Voting window for polls without a duration")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = defaultPort
		}
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabaseSQLite
		}
	}
	switch cfg.DatabaseType {
	case DatabaseSQLite, DatabasePostgres, DatabaseMemory:
	default:
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		switch cfg.DatabaseType {
		case DatabaseSQLite:
			cfg.DatabaseURL = defaultSQLiteURL
		case DatabasePostgres:
			return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
		}
	}

	// Secrets - MUST be provided
	if cfg.ModeratorKeySalt == "" {
		cfg.ModeratorKeySalt = os.Getenv("MODERATOR_KEY_SALT")
	}
	if cfg.ModeratorKeySalt == "" {
		return Config{}, errors.New("MODERATOR_KEY_SALT required")
	}

	var err error
	if cfg.TransitionInterval, err = durationOrEnv(cfg.TransitionInterval, "TRANSITION_INTERVAL", transitions.DefaultInterval); err != nil {
		return Config{}, err
	}
	if cfg.DefaultPollDuration, err = durationOrEnv(cfg.DefaultPollDuration, "DEFAULT_POLL_DURATION", models.DefaultPollDuration); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func durationOrEnv(flagValue time.Duration, env string, def time.Duration) (time.Duration, error) {
	if flagValue < 0 {
		return 0, fmt.Errorf("%s must be positive", env)
	}
	if flagValue > 0 {
		return flagValue, nil
	}

	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", env, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", env)
	}
	return d, nil
}
