// config.go: Environment configuration for building a Service at process start.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package crypto

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/agilira/go-errors"
	"github.com/allisson/go-env"
	validation "github.com/jellydator/validation"
	"github.com/jellydator/validation/is"
	"github.com/joho/godotenv"
)

// Environment variables read by LoadConfig.
const (
	EnvMasterKey        = "PHYLAX_MASTER_KEY"
	EnvMasterKeyID      = "PHYLAX_MASTER_KEY_ID"
	EnvKDFAlgorithm     = "PHYLAX_KDF_ALGORITHM"
	EnvScryptN          = "PHYLAX_SCRYPT_N"
	EnvScryptR          = "PHYLAX_SCRYPT_R"
	EnvScryptP          = "PHYLAX_SCRYPT_P"
	EnvBatchConcurrency = "PHYLAX_BATCH_CONCURRENCY"
	EnvLogLevel         = "PHYLAX_LOG_LEVEL"
	EnvMetricsNamespace = "PHYLAX_METRICS_NAMESPACE"
)

// Config holds everything needed to construct a Service.
type Config struct {
	// MasterKeyHex is the 64 character hex master key. Never log it.
	MasterKeyHex string
	// MasterKeyID optionally labels the master key (at most 16 characters).
	MasterKeyID string

	// KDFAlgorithm is "scrypt" or "argon2id".
	KDFAlgorithm string
	// ScryptN, ScryptR and ScryptP tune scrypt; zero means default.
	ScryptN int
	ScryptR int
	ScryptP int

	// BatchConcurrency bounds EncryptFields/DecryptFields; zero means GOMAXPROCS.
	BatchConcurrency int

	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string
	// MetricsNamespace prefixes metric names.
	MetricsNamespace string
}

// LoadConfig reads configuration from the environment, after loading the
// nearest .env file found walking up from the working directory. Variables
// already set in the environment win over the .env file.
func LoadConfig() *Config {
	loadDotEnv()

	return &Config{
		MasterKeyHex:     strings.TrimSpace(env.GetString(EnvMasterKey, "")),
		MasterKeyID:      env.GetString(EnvMasterKeyID, ""),
		KDFAlgorithm:     env.GetString(EnvKDFAlgorithm, KDFScrypt),
		ScryptN:          env.GetInt(EnvScryptN, DefaultScryptN),
		ScryptR:          env.GetInt(EnvScryptR, DefaultScryptR),
		ScryptP:          env.GetInt(EnvScryptP, DefaultScryptP),
		BatchConcurrency: env.GetInt(EnvBatchConcurrency, 0),
		LogLevel:         env.GetString(EnvLogLevel, "info"),
		MetricsNamespace: env.GetString(EnvMetricsNamespace, "phylax"),
	}
}

// Validate checks the configuration. Any failure is a ConfigurationError:
// the process must not start with it.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.MasterKeyHex,
			validation.Required.Error("master key is not set"),
			validation.Length(2*KeySize, 2*KeySize).Error("master key must be 32 bytes (64 hex characters)"),
			is.Hexadecimal.Error("master key must be hexadecimal"),
		),
		validation.Field(&c.MasterKeyID, validation.Length(0, 2*keyIDBytes)),
		validation.Field(&c.KDFAlgorithm, validation.In(KDFScrypt, KDFArgon2id)),
		validation.Field(&c.ScryptN, validation.Min(0), validation.By(powerOfTwoOrZero)),
		validation.Field(&c.ScryptR, validation.Min(0)),
		validation.Field(&c.ScryptP, validation.Min(0)),
		validation.Field(&c.BatchConcurrency, validation.Min(0)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return configurationError(goerrors.Wrap(err, ErrCodeConfigInvalid, "invalid configuration"))
	}
	return nil
}

// KDFParams returns the password derivation parameters described by c.
func (c *Config) KDFParams() KDFParams {
	return KDFParams{
		Algorithm: c.KDFAlgorithm,
		N:         c.ScryptN,
		R:         c.ScryptR,
		P:         c.ScryptP,
	}.withDefaults()
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogValue keeps the master key out of log output.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("master_key_set", c.MasterKeyHex != ""),
		slog.String("master_key_id", c.MasterKeyID),
		slog.String("kdf_algorithm", c.KDFAlgorithm),
		slog.Int("scrypt_n", c.ScryptN),
		slog.Int("batch_concurrency", c.BatchConcurrency),
		slog.String("log_level", c.LogLevel),
		slog.String("metrics_namespace", c.MetricsNamespace),
	)
}

// NewServiceFromConfig validates cfg and builds the KeyManager and Service.
// Options in opts are applied after the ones derived from cfg.
func NewServiceFromConfig(cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, configurationError(goerrors.New(ErrCodeConfigInvalid, "configuration is required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var kmOpts []KeyManagerOption
	if cfg.MasterKeyID != "" {
		kmOpts = append(kmOpts, WithMasterKeyID(cfg.MasterKeyID))
	}
	km, err := NewKeyManagerFromHex(cfg.MasterKeyHex, kmOpts...)
	if err != nil {
		return nil, err
	}

	base := []Option{WithKDFParams(cfg.KDFParams())}
	if cfg.BatchConcurrency > 0 {
		base = append(base, WithConcurrency(cfg.BatchConcurrency))
	}
	return NewService(km, append(base, opts...)...)
}

func powerOfTwoOrZero(value interface{}) error {
	n, _ := value.(int)
	if n == 0 || (n > 1 && n&(n-1) == 0) {
		return nil
	}
	return errors.New("must be a power of two greater than 1")
}

// loadDotEnv loads the first .env file found from the working directory up
// to the filesystem root.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
