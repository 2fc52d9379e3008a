package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "IDMint"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultOTPTTL          = 10 * time.Minute
	defaultOTPRequestLimit = 5
	defaultOTPVerifyLimit  = 10
	defaultOTPStore        = "postgres"
	defaultNotifier        = "twilio"
	defaultChainNetwork    = "localhost"
	defaultMintTimeout     = 5 * time.Minute
	defaultChainTimeout    = 15 * time.Second
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	contractEnvPrefix      = "CONTRACT_ADDRESS_"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	OTP      OTPConfig
	Twilio   TwilioConfig
	Notifier string
	Chain    ChainConfig
	Mint     MintConfig
}

// OTPConfig tunes code lifetime, storage backend and per-phone throttling of
// code requests and verification attempts. A zero limit disables it.
type OTPConfig struct {
	Store                 string
	TTL                   time.Duration
	RequestsPerHour       int
	VerifyAttemptsPerHour int
}

// TwilioConfig holds SMS delivery credentials and the sender number.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// ChainConfig describes the target network and its category contract registry.
// Contracts is keyed by lower-case network, then by category name.
type ChainConfig struct {
	RPCURL      string
	Network     string
	CallTimeout time.Duration
	Contracts   map[string]map[string]string
}

// MintConfig describes the external minting command.
type MintConfig struct {
	Command string
	WorkDir string
	Timeout time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		OTP: OTPConfig{
			Store:                 strings.ToLower(getEnv("OTP_STORE", defaultOTPStore)),
			TTL:                   defaultOTPTTL,
			RequestsPerHour:       defaultOTPRequestLimit,
			VerifyAttemptsPerHour: defaultOTPVerifyLimit,
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},
		Notifier: strings.ToLower(getEnv("NOTIFIER", defaultNotifier)),
		Chain: ChainConfig{
			RPCURL:      os.Getenv("CHAIN_RPC_URL"),
			Network:     strings.ToLower(getEnv("CHAIN_NETWORK", defaultChainNetwork)),
			CallTimeout: defaultChainTimeout,
			Contracts:   contractsFromEnv(os.Environ()),
		},
		Mint: MintConfig{
			Command: os.Getenv("MINT_COMMAND"),
			WorkDir: os.Getenv("MINT_WORKDIR"),
			Timeout: defaultMintTimeout,
		},
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	var err error
	if cfg.OTP.TTL, err = durationEnv("OTP_TTL", cfg.OTP.TTL); err != nil {
		return Config{}, err
	}
	if cfg.Mint.Timeout, err = durationEnv("MINT_TIMEOUT", cfg.Mint.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Chain.CallTimeout, err = durationEnv("CHAIN_CALL_TIMEOUT", cfg.Chain.CallTimeout); err != nil {
		return Config{}, err
	}
	if cfg.OTP.RequestsPerHour, err = intEnv("OTP_REQUESTS_PER_HOUR", cfg.OTP.RequestsPerHour); err != nil {
		return Config{}, err
	}
	if cfg.OTP.VerifyAttemptsPerHour, err = intEnv("OTP_VERIFY_ATTEMPTS_PER_HOUR", cfg.OTP.VerifyAttemptsPerHour); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" && !c.IsDev() {
		return fmt.Errorf("DATABASE_URL must be set")
	}

	switch c.OTP.Store {
	case "postgres":
		if c.DatabaseURL == "" && !c.IsDev() {
			return fmt.Errorf("OTP_STORE=postgres requires DATABASE_URL")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("OTP_STORE=redis requires REDIS_URL")
		}
	case "memory":
		if !c.IsDev() {
			return fmt.Errorf("OTP_STORE=memory is only allowed when APP_ENV=%s", defaultAppEnv)
		}
	default:
		return fmt.Errorf("unknown OTP_STORE %q", c.OTP.Store)
	}

	switch c.Notifier {
	case "twilio":
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.FromNumber == "" {
			return fmt.Errorf("NOTIFIER=twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER")
		}
	case "log":
	default:
		return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
	}

	if c.Chain.RPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL must be set")
	}
	if c.Mint.Command == "" {
		return fmt.Errorf("MINT_COMMAND must be set")
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.Mint.Timeout <= 0 {
		return fmt.Errorf("MINT_TIMEOUT must be positive")
	}
	return nil
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// NetworkContracts returns the category→contract map for the configured network.
func (c Config) NetworkContracts() map[string]string {
	return c.Chain.Contracts[c.Chain.Network]
}

// contractsFromEnv collects CONTRACT_ADDRESS_<NETWORK>_<CATEGORY>=0x... entries.
// The category is the last underscore-separated segment.
func contractsFromEnv(environ []string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, contractEnvPrefix) || value == "" {
			continue
		}
		rest := strings.TrimPrefix(key, contractEnvPrefix)
		idx := strings.LastIndex(rest, "_")
		if idx <= 0 || idx == len(rest)-1 {
			continue
		}
		network := strings.ToLower(rest[:idx])
		category := strings.ToLower(rest[idx+1:])
		if out[network] == nil {
			out[network] = make(map[string]string)
		}
		out[network][category] = value
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
