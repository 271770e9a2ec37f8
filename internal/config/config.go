// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envFileName = ".env.local"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string `env:"PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"` // debug, release, test

	// CORS設定（カンマ区切り）
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// セッション設定
	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionLifetime    time.Duration `env:"SESSION_LIFETIME" envDefault:"2h"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// データベース設定
	DBDriver       string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"file:spa-auth.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`

	// セッションストア用Redis接続URL
	RedisURL string `env:"REDIS_URL" envDefault:"redis://127.0.0.1:6379/0"`

	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// SessionSecret が未設定のため起動時に生成した場合 true
	GeneratedSecret bool `env:"-"`
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// ローカル開発ではプロセスごとの署名鍵で代用する
	if config.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		config.SessionSecret = secret
		config.GeneratedSecret = true
	}

	return config, nil
}

// loadEnvFile はカレントディレクトリ、なければ親ディレクトリの .env.local を読み込みます。
// 既に設定されている環境変数は上書きしません。
func loadEnvFile() {
	for _, path := range envFileCandidates() {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func envFileCandidates() []string {
	cwd, err := os.Getwd()
	if err != nil {
		return []string{envFileName}
	}
	candidates := []string{filepath.Join(cwd, envFileName)}
	if parent := filepath.Dir(cwd); parent != cwd {
		candidates = append(candidates, filepath.Join(parent, envFileName))
	}
	return candidates
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SessionLifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be positive")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	// 本番環境では厳格にチェックする
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
	}

	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
