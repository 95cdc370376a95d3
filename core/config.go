package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRememberMeDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	SendgridConfig struct {
		Key string
	}

	// ZoomConfig holds the system-wide Zoom Server-to-Server OAuth app
	// credentials used when a user has not stored their own.
	ZoomConfig struct {
		AccountID    string
		ClientID     string
		ClientSecret string
	}

	// WhatsAppConfig holds the system-wide WhatsApp Business credentials
	// used when a session creator has not stored their own.
	WhatsAppConfig struct {
		PhoneNumberID string
		Token         string
	}

	StorageConfig struct {
		Endpoint      string
		AccessKey     string
		SecretKey     string
		Bucket        string
		UseSSL        bool
		PublicBaseURL string
	}

	RollbarConfig struct {
		Token string
	}

	RemindersConfig struct {
		Interval time.Duration
		LockTTL  time.Duration
	}

	Config struct {
		Env      string // DEV (default), TEST, QA, PROD
		AppName  string
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		SecretKey                 []byte
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SupportEmail              mail.Address
		PasswordResetTimeoutDelta time.Duration
		ApprovalCacheTTL          time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Sendgrid  SendgridConfig
		Zoom      ZoomConfig
		WhatsApp  WhatsAppConfig
		Storage   StorageConfig
		Rollbar   RollbarConfig
		Reminders RemindersConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the app configuration from the environment. A
// config/.env.<env> file is loaded first if it exists; env vars are
// prefixed with the current ENV (eg. DEV_DATABASE_NAME).
func NewConfig(workDir string) *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "4fw&n$yhpl8f-h+%09n)a^2c1wagb4qb5!e3m2k&t3(hlv7f#n")
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("supportEmail", "support@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("approvalCacheTtl", 30*time.Second)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("jwtRememberMeDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("serverShutdownTimeout", 20*time.Second)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "darasa")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTls", true)

	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisDb", 0)

	v.SetDefault("storageBucket", "darasa-receipts")
	v.SetDefault("storageUseSsl", true)

	v.SetDefault("remindersInterval", time.Minute)
	v.SetDefault("remindersLockTtl", time.Minute)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:      env,
		AppName:  v.GetString("appName"),
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		WorkDir:  workDir,

		SecretKey:                 []byte(v.GetString("secretKey")),
		FrontendBaseURL:           v.GetString("frontendBaseUrl"),
		DefaultFromEmail:          mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SupportEmail:              mail.Address{Name: v.GetString("appName") + " Support", Address: v.GetString("supportEmail")},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		ApprovalCacheTTL:          v.GetDuration("approvalCacheTtl"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			DebugHost:                 v.GetString("serverDebugHost"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRememberMeDelta:        v.GetDuration("jwtRememberMeDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			DisableTLS:    v.GetBool("databaseDisableTls"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redisAddr"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDb"),
		},
		Sendgrid: SendgridConfig{Key: v.GetString("sendgridKey")},
		Zoom: ZoomConfig{
			AccountID:    v.GetString("zoomAccountId"),
			ClientID:     v.GetString("zoomClientId"),
			ClientSecret: v.GetString("zoomClientSecret"),
		},
		WhatsApp: WhatsAppConfig{
			PhoneNumberID: v.GetString("whatsappPhoneNumberId"),
			Token:         v.GetString("whatsappToken"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("storageEndpoint"),
			AccessKey:     v.GetString("storageAccessKey"),
			SecretKey:     v.GetString("storageSecretKey"),
			Bucket:        v.GetString("storageBucket"),
			UseSSL:        v.GetBool("storageUseSsl"),
			PublicBaseURL: v.GetString("storagePublicBaseUrl"),
		},
		Rollbar: RollbarConfig{Token: v.GetString("rollbarToken")},
		Reminders: RemindersConfig{
			Interval: v.GetDuration("remindersInterval"),
			LockTTL:  v.GetDuration("remindersLockTtl"),
		},
	}
}
