package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Server
	Port        string `envconfig:"PORT" default:"8080"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	// Database
	DBHost         string `envconfig:"DB_HOST" default:"localhost"`
	DBPort         string `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"DB_PASSWORD"`
	DBName         string `envconfig:"DB_NAME" default:"palace_of_quests"`
	DBSSLMode      string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`

	// JWT
	JWTSecret        string        `envconfig:"JWT_SECRET"`
	JWTAccessExpiry  time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
	JWTRefreshExpiry time.Duration `envconfig:"JWT_REFRESH_EXPIRY" default:"720h"`

	// Pi Network
	PiAPIKey         string        `envconfig:"PI_API_KEY"`
	PiAPIURL         string        `envconfig:"PI_API_URL" default:"https://api.minepi.com"`
	PiSandbox        bool          `envconfig:"PI_SANDBOX" default:"false"`
	PiTimeout        time.Duration `envconfig:"PI_TIMEOUT" default:"10s"`
	PiMaxRetries     int           `envconfig:"PI_MAX_RETRIES" default:"3"`
	PiRetryBaseDelay time.Duration `envconfig:"PI_RETRY_BASE_DELAY" default:"200ms"`
	PiRateLimit      float64       `envconfig:"PI_RATE_LIMIT" default:"20"`

	// Admin
	AdminPiUIDs string `envconfig:"ADMIN_PI_UIDS"`
	AdminToken  string `envconfig:"ADMIN_TOKEN"`

	// Jobs
	LogRetentionDays  int           `envconfig:"LOG_RETENTION_DAYS" default:"30"`
	ReconcileSchedule string        `envconfig:"RECONCILE_SCHEDULE" default:"@every 10m"`
	ReconcileAfter    time.Duration `envconfig:"RECONCILE_AFTER" default:"15m"`

	Game
}

// Game holds the tunable game economy constants.
type Game struct {
	MaxLevel              int             `envconfig:"MAX_LEVEL" default:"250"`
	LevelUpExperienceBase int64           `envconfig:"LEVEL_UP_EXPERIENCE_BASE" default:"1000"`
	WelcomeBonus          decimal.Decimal `envconfig:"WELCOME_BONUS" default:"10"`
	PremiumPrice          decimal.Decimal `envconfig:"PREMIUM_PRICE" default:"9.99"`
	PremiumDuration       time.Duration   `envconfig:"PREMIUM_DURATION" default:"8760h"`
	QuestExpiry           time.Duration   `envconfig:"QUEST_EXPIRY" default:"24h"`
	HealthPerLevel        int             `envconfig:"HEALTH_PER_LEVEL" default:"10"`
	ManaPerLevel          int             `envconfig:"MANA_PER_LEVEL" default:"5"`
}

// DefaultGame returns the economy constants with their default values.
func DefaultGame() Game {
	return Game{
		MaxLevel:              250,
		LevelUpExperienceBase: 1000,
		WelcomeBonus:          decimal.NewFromInt(10),
		PremiumPrice:          decimal.RequireFromString("9.99"),
		PremiumDuration:       365 * 24 * time.Hour,
		QuestExpiry:           24 * time.Hour,
		HealthPerLevel:        10,
		ManaPerLevel:          5,
	}
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.DBPassword == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if c.PiAPIKey == "" {
		errs = append(errs, errors.New("PI_API_KEY is required"))
	}
	if c.MaxLevel <= 0 || c.LevelUpExperienceBase <= 0 {
		errs = append(errs, errors.New("MAX_LEVEL and LEVEL_UP_EXPERIENCE_BASE must be positive"))
	}
	if !c.PremiumPrice.IsPositive() || c.PremiumDuration <= 0 {
		errs = append(errs, errors.New("PREMIUM_PRICE and PREMIUM_DURATION must be positive"))
	}
	if c.WelcomeBonus.IsNegative() {
		errs = append(errs, errors.New("WELCOME_BONUS must not be negative"))
	}
	if c.QuestExpiry <= 0 {
		errs = append(errs, errors.New("QUEST_EXPIRY must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AdminPiUIDList splits ADMIN_PI_UIDS on commas.
func (c *Config) AdminPiUIDList() []string {
	var out []string
	for _, uid := range strings.Split(c.AdminPiUIDs, ",") {
		if uid = strings.TrimSpace(uid); uid != "" {
			out = append(out, uid)
		}
	}
	return out
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}
