package core

import (
	"fmt"
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
	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		AppName         string
		SecretKey       string
		FrontendBaseURL string
		SeedDemoData    bool

		defaultFromEmail string
		SendgridApiKey   string
		RollbarToken     string

		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Exam     ExamConfig
	}

	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine      string // memory | bolt
		Path        string
		Namespace   string
		OpenTimeout time.Duration
	}

	ExamConfig struct {
		// SweepInterval is how often expired attempts are looked up for auto-submission.
		SweepInterval time.Duration
		// GracePeriod is how long after its deadline a student may still submit an attempt.
		GracePeriod time.Duration
		// PassPercentage is the lowest percentage an evaluated submission passes with.
		PassPercentage float64
	}
)

const (
	EngineMemory = "memory"
	EngineBolt   = "bolt"
)

// DefaultFromEmail parses the configured sender address; it falls back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func (c *Config) SetDefaultFromEmail(email string) { c.defaultFromEmail = email }

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Exam Portal")
	v.SetDefault("secretKey", "k3x!v9@q-m0d2&zp#4t7s(w1)e8r5y6u=o+a_c^lb")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("seedDemoData", true)
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("database.engine", EngineBolt)
	v.SetDefault("database.path", filepath.Join("data", "exam-portal.db"))
	v.SetDefault("database.namespace", "exam-app-storage")
	v.SetDefault("database.openTimeout", time.Second)
	v.SetDefault("exam.sweepInterval", time.Second)
	v.SetDefault("exam.gracePeriod", 30*time.Second)
	v.SetDefault("exam.passPercentage", 60.0)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", EngineMemory)
		v.SetDefault("seedDemoData", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

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

	dbPath := v.GetString("database.path")
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workDir, dbPath)
	}

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   workDir,
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		SeedDemoData:              v.GetBool("seedDemoData"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
		JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Addr:            v.GetString("server.addr"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:      v.GetString("database.engine"),
			Path:        dbPath,
			Namespace:   v.GetString("database.namespace"),
			OpenTimeout: v.GetDuration("database.openTimeout"),
		},
		Exam: ExamConfig{
			SweepInterval:  v.GetDuration("exam.sweepInterval"),
			GracePeriod:    v.GetDuration("exam.gracePeriod"),
			PassPercentage: v.GetFloat64("exam.passPercentage"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests: in-memory storage, no seed, no network.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		WorkDir:                   Getwd(),
		AppName:                   "Exam Portal",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		defaultFromEmail:          "noreply@localhost",
		JWTExpirationDelta:        10 * time.Minute,
		JWTRefreshExpirationDelta: 4 * time.Hour,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server:                    ServerConfig{Host: "localhost", Addr: ":0", ShutdownTimeout: time.Second},
		Database:                  DatabaseConfig{Engine: EngineMemory, Namespace: "exam-app-storage", OpenTimeout: time.Second},
		Exam:                      ExamConfig{SweepInterval: 10 * time.Millisecond, GracePeriod: 30 * time.Second, PassPercentage: 60},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("env=%s build=%s debug=%t db=%s", c.Env, c.Build, c.Debug, c.Database.Engine)
}
