package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Session    SessionConfig
	Referral   ReferralConfig
	Deposit    DepositConfig
	Explorer   ExplorerConfig
	Withdrawal WithdrawalConfig
	Redis      RedisConfig
	Telegram   TelegramConfig
	SMTP       SMTPConfig
	Firebase   FirebaseConfig
	Cloudinary CloudinaryConfig
	Workers    WorkersConfig
	Admin      AdminConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql | postgres | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// SessionConfig holds the two earning-session surfaces. Both share one engine.
type SessionConfig struct {
	TaskDuration time.Duration
	VipDuration  time.Duration
	Cooldown     time.Duration
}

type ReferralConfig struct {
	Level1Rate float64
	Level2Rate float64
	Level3Rate float64
}

type DepositConfig struct {
	MinAmount     float64
	PendingExpiry time.Duration
	// Platform receiving addresses keyed by network (BSC, ETHEREUM, POLYGON, TRON).
	Addresses map[string]string
}

type ExplorerConfig struct {
	Timeout        time.Duration
	BscScanURL     string
	BscScanKey     string
	EtherscanURL   string
	EtherscanKey   string
	PolygonScanURL string
	PolygonScanKey string
	TronGridURL    string
	TronGridKey    string
	// USDT token contracts keyed by network.
	USDTContracts map[string]string
}

type WithdrawalConfig struct {
	MinAmount float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelegramConfig struct {
	BotToken string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type WorkersConfig struct {
	SweepInterval    time.Duration
	DetectorInterval time.Duration
	DetectorAutoRun  bool
	NotifyQueueSize  int
}

type AdminConfig struct {
	Email    string
	Password string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8099"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			DSN:             getEnv("DB_DSN", "vipearn:vipearn@tcp(localhost:3306)/vipearn?charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getDuration("JWT_REFRESH_EXPIRY", 168*time.Hour),
			Issuer:        "vipearn",
		},
		Session: SessionConfig{
			TaskDuration: getDuration("SESSION_TASK_DURATION", time.Hour),
			VipDuration:  getDuration("SESSION_VIP_DURATION", 24*time.Hour),
			Cooldown:     getDuration("SESSION_COOLDOWN", 24*time.Hour),
		},
		Referral: ReferralConfig{
			Level1Rate: getFloat("REFERRAL_RATE_L1", 0.10),
			Level2Rate: getFloat("REFERRAL_RATE_L2", 0.05),
			Level3Rate: getFloat("REFERRAL_RATE_L3", 0.02),
		},
		Deposit: DepositConfig{
			MinAmount:     getFloat("DEPOSIT_MIN_AMOUNT", 10),
			PendingExpiry: getDuration("DEPOSIT_PENDING_EXPIRY", 24*time.Hour),
			Addresses: map[string]string{
				"BSC":      getEnv("DEPOSIT_ADDRESS_BSC", ""),
				"ETHEREUM": getEnv("DEPOSIT_ADDRESS_ETHEREUM", ""),
				"POLYGON":  getEnv("DEPOSIT_ADDRESS_POLYGON", ""),
				"TRON":     getEnv("DEPOSIT_ADDRESS_TRON", ""),
			},
		},
		Explorer: ExplorerConfig{
			Timeout:        getDuration("EXPLORER_TIMEOUT", 15*time.Second),
			BscScanURL:     getEnv("BSCSCAN_API_URL", "https://api.bscscan.com/api"),
			BscScanKey:     getEnv("BSCSCAN_API_KEY", ""),
			EtherscanURL:   getEnv("ETHERSCAN_API_URL", "https://api.etherscan.io/api"),
			EtherscanKey:   getEnv("ETHERSCAN_API_KEY", ""),
			PolygonScanURL: getEnv("POLYGONSCAN_API_URL", "https://api.polygonscan.com/api"),
			PolygonScanKey: getEnv("POLYGONSCAN_API_KEY", ""),
			TronGridURL:    getEnv("TRONGRID_API_URL", "https://api.trongrid.io"),
			TronGridKey:    getEnv("TRONGRID_API_KEY", ""),
			USDTContracts: map[string]string{
				"BSC":      getEnv("USDT_CONTRACT_BSC", "0x55d398326f99059fF775485246999027B3197955"),
				"ETHEREUM": getEnv("USDT_CONTRACT_ETHEREUM", "0xdAC17F958D2ee523a2206206994597C13D831ec7"),
				"POLYGON":  getEnv("USDT_CONTRACT_POLYGON", "0xc2132D05D31c914a87C6611C10748AEb04B58e8F"),
				"TRON":     getEnv("USDT_CONTRACT_TRON", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"),
			},
		},
		Withdrawal: WithdrawalConfig{
			MinAmount: getFloat("WITHDRAWAL_MIN_AMOUNT", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@vipearn.local"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},
		Workers: WorkersConfig{
			SweepInterval:    getDuration("SWEEP_INTERVAL", time.Minute),
			DetectorInterval: getDuration("DETECTOR_INTERVAL", 2*time.Minute),
			DetectorAutoRun:  getBool("DETECTOR_AUTORUN", true),
			NotifyQueueSize:  getInt("NOTIFY_QUEUE_SIZE", 256),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@vipearn.local"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
