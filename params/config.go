package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Agent struct {
	// OwnerID is the marketplace identity the agent trades as.
	OwnerID string
	// ListenAddr is the status API bind address.
	ListenAddr string
	DataDir    string
	LogFile    string
	// FeedURL is the websocket endpoint delivering offer notifications.
	FeedURL string
}

type Currency struct {
	// KeySKU is the top denomination. Its worth in base units comes from the
	// price list at runtime, not from config.
	KeySKU string
	// Metal denominations, highest to lowest, worth in base units
	// (1 base unit = half a scrap).
	RefinedSKU   string
	ReclaimedSKU string
	ScrapSKU     string
	// WeaponsAsCurrency appends WeaponSKUs below scrap, each worth one base unit.
	WeaponsAsCurrency bool
	WeaponSKUs        []string
	// HighValueMultiple flags an item for dupe checking when its unit price
	// exceeds this many keys.
	HighValueMultiple int
}

type Retry struct {
	AcceptAttempts  int
	DeclineAttempts int
	ConfirmAttempts int
	EscrowAttempts  int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	// EscrowFailWindow: two terminal escrow-check failures inside this window
	// arm the restart valve.
	EscrowFailWindow time.Duration
	// RemoteTimeout bounds a single remote call attempt.
	RemoteTimeout time.Duration
	EscrowTimeout time.Duration
}

type Config struct {
	Agent    Agent
	Currency Currency
	Retry    Retry
}

func Default() Config {
	return Config{
		Agent: Agent{
			OwnerID:    "",
			ListenAddr: ":8090",
			DataDir:    "data",
			LogFile:    "data/agent.log",
			FeedURL:    "",
		},
		Currency: Currency{
			KeySKU:            "5021;6",
			RefinedSKU:        "5002;6",
			ReclaimedSKU:      "5001;6",
			ScrapSKU:          "5000;6",
			WeaponsAsCurrency: false,
			WeaponSKUs:        nil,
			HighValueMultiple: 15,
		},
		Retry: Retry{
			AcceptAttempts:   6,
			DeclineAttempts:  3,
			ConfirmAttempts:  5,
			EscrowAttempts:   5,
			BaseDelay:        time.Second,
			MaxDelay:         30 * time.Second,
			EscrowFailWindow: 5 * time.Minute,
			RemoteTimeout:    10 * time.Second,
			EscrowTimeout:    20 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables.
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("AGENT_OWNER_ID"); v != "" {
		cfg.Agent.OwnerID = v
	}
	if v := os.Getenv("AGENT_LISTEN"); v != "" {
		cfg.Agent.ListenAddr = v
	}
	if v := os.Getenv("AGENT_DATA_DIR"); v != "" {
		cfg.Agent.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Agent.LogFile = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		cfg.Agent.FeedURL = v
	}

	if v := os.Getenv("WEAPONS_AS_CURRENCY"); v != "" {
		cfg.Currency.WeaponsAsCurrency = v == "true"
	}
	if v := os.Getenv("WEAPON_SKUS"); v != "" {
		cfg.Currency.WeaponSKUs = strings.Split(v, ",")
	}
	if v := os.Getenv("HIGH_VALUE_MULTIPLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Currency.HighValueMultiple = n
		}
	}

	if v := os.Getenv("RETRY_BASE_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Retry.BaseDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("RETRY_MAX_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ESCROW_FAIL_WINDOW_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Retry.EscrowFailWindow = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}
