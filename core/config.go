package core

import (
	"log"
	"net"
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
		Host             string
		DebugHost        string
		ShutdownTimeout  time.Duration
		CORSAllowHeaders []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RealtimeConfig struct {
		Driver     string // memory | postgres | nats
		Channel    string // postgres NOTIFY channel
		NATSURL    string
		BufferSize int
	}

	DashboardConfig struct {
		APIURL        string
		FeedSize      int
		DedupCapacity int
		DedupTTL      time.Duration
	}

	AlertsConfig struct {
		EmailTo          []mail.Address
		EmailMinSeverity string
	}

	Config struct {
		AppName          string
		Build            string
		Env              string
		Debug            bool
		TestMode         bool
		WorkDir          string
		TimeZone         *time.Location
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address

		Server    ServerConfig
		Database  DatabaseConfig
		Realtime  RealtimeConfig
		Dashboard DashboardConfig
		Alerts    AlertsConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IsMemory reports whether the in-memory store is configured (DEV & tests).
func (c DatabaseConfig) IsMemory() bool {
	return c.Engine == "memory"
}

// NewConfig loads the configuration from the environment.
// The active environment is read from ENV (DEV by default) and used as env prefix, eg. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Masomo Watch")
	v.SetDefault("build", "develop")
	v.SetDefault("timeZone", "UTC")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Masomo Watch <noreply@localhost>")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.corsAllowHeaders", []string{"authorization", "x-client-info", "apikey", "content-type"})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "masomo_watch")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "masomo")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("realtime.driver", "postgres")
	v.SetDefault("realtime.channel", "table_changes")
	v.SetDefault("realtime.natsURL", "nats://127.0.0.1:4222")
	v.SetDefault("realtime.bufferSize", 64)

	v.SetDefault("dashboard.apiURL", "http://localhost:8000")
	v.SetDefault("dashboard.feedSize", 20)
	v.SetDefault("dashboard.dedupCapacity", 1024)
	v.SetDefault("dashboard.dedupTTL", 24*time.Hour)

	v.SetDefault("alerts.emailTo", "")
	v.SetDefault("alerts.emailMinSeverity", "high")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "memory")
		v.SetDefault("realtime.driver", "memory")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	loc, err := time.LoadLocation(v.GetString("timeZone"))
	if err != nil {
		log.Fatalf("config.LoadLocation(%s): %v", v.GetString("timeZone"), err)
	}

	conf := &Config{
		AppName:        v.GetString("appName"),
		Build:          v.GetString("build"),
		Env:            env,
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		WorkDir:        wd,
		TimeZone:       loc,
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:             v.GetString("server.host"),
			DebugHost:        v.GetString("server.debugHost"),
			ShutdownTimeout:  v.GetDuration("server.shutdownTimeout"),
			CORSAllowHeaders: v.GetStringSlice("server.corsAllowHeaders"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Realtime: RealtimeConfig{
			Driver:     v.GetString("realtime.driver"),
			Channel:    v.GetString("realtime.channel"),
			NATSURL:    v.GetString("realtime.natsURL"),
			BufferSize: v.GetInt("realtime.bufferSize"),
		},
		Dashboard: DashboardConfig{
			APIURL:        v.GetString("dashboard.apiURL"),
			FeedSize:      v.GetInt("dashboard.feedSize"),
			DedupCapacity: v.GetInt("dashboard.dedupCapacity"),
			DedupTTL:      v.GetDuration("dashboard.dedupTTL"),
		},
		Alerts: AlertsConfig{
			EmailMinSeverity: v.GetString("alerts.emailMinSeverity"),
		},
	}

	if from, err := mail.ParseAddress(v.GetString("defaultFromEmail")); err == nil {
		conf.DefaultFromEmail = *from
	} else {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	if to := strings.TrimSpace(v.GetString("alerts.emailTo")); to != "" {
		addrs, err := mail.ParseAddressList(to)
		if err != nil {
			log.Fatalf("config.alerts.emailTo: %v", err)
		}
		for _, a := range addrs {
			conf.Alerts.EmailTo = append(conf.Alerts.EmailTo, *a)
		}
	}
	return conf
}
