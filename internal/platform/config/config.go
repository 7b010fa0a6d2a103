package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"chronostamp/internal/registry/models"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration
	ChallengeTTL  time.Duration

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Registry    RegistryConfig

	// ClaimRateLimit is claims per second per caller; zero disables limiting.
	ClaimRateLimit float64
	ClaimBurst     int
	TxTimeout      time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	Partitions    int32
	Replicas      int16
	RelayInterval time.Duration
}

type RegistryConfig struct {
	Address     common.Address
	Owner       common.Address
	OwnerPolicy models.OwnerPolicy
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("BADGE_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", devSigningKey),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:      envOr("KAFKA_TOPIC", "badge-events"),
			Partitions: 3,
			Replicas:   1,
		},
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.ChallengeTTL, err = durationEnv("CHALLENGE_TTL", 5*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.TxTimeout, err = durationEnv("TX_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.RelayInterval, err = durationEnv("KAFKA_RELAY_INTERVAL", time.Second); err != nil {
		return Server{}, err
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for b := range strings.SplitSeq(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	if v := os.Getenv("CLAIM_RATE_LIMIT"); v != "" {
		if cfg.ClaimRateLimit, err = strconv.ParseFloat(v, 64); err != nil || cfg.ClaimRateLimit < 0 {
			return Server{}, fmt.Errorf("CLAIM_RATE_LIMIT: invalid value %q", v)
		}
	} else {
		cfg.ClaimRateLimit = 5
	}
	cfg.ClaimBurst = 10
	if v := os.Getenv("CLAIM_RATE_BURST"); v != "" {
		if cfg.ClaimBurst, err = strconv.Atoi(v); err != nil || cfg.ClaimBurst < 1 {
			return Server{}, fmt.Errorf("CLAIM_RATE_BURST: invalid value %q", v)
		}
	}

	if cfg.Registry, err = registryFromEnv(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func registryFromEnv() (RegistryConfig, error) {
	owner := os.Getenv("REGISTRY_OWNER")
	if !common.IsHexAddress(owner) || common.HexToAddress(owner) == (common.Address{}) {
		return RegistryConfig{}, fmt.Errorf("REGISTRY_OWNER: a non-zero hex address is required")
	}
	rc := RegistryConfig{Owner: common.HexToAddress(owner)}

	if addr := os.Getenv("REGISTRY_ADDRESS"); addr != "" {
		if !common.IsHexAddress(addr) {
			return RegistryConfig{}, fmt.Errorf("REGISTRY_ADDRESS: invalid address %q", addr)
		}
		rc.Address = common.HexToAddress(addr)
	} else {
		// Same address the owner's first contract deployment would get.
		rc.Address = crypto.CreateAddress(rc.Owner, 0)
	}

	policy, err := models.ParseOwnerPolicy(envOr("REGISTRY_COLLECTION_OWNER_POLICY", string(models.OwnerPolicyCaller)))
	if err != nil {
		return RegistryConfig{}, fmt.Errorf("REGISTRY_COLLECTION_OWNER_POLICY: %w", err)
	}
	rc.OwnerPolicy = policy
	return rc, nil
}

// UsesDevSigningKey reports whether the JWT key was left at its default.
func (s Server) UsesDevSigningKey() bool {
	return s.JWTSigningKey == devSigningKey
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
