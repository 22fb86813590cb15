package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		defaultFromEmail string

		Database     DatabaseConfig
		Server       ServerConfig
		Mail         MailConfig
		Notification NotificationConfig
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		SQLitePath    string
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	MailConfig struct {
		Transport      string // console | sendgrid | smtp
		SendgridApiKey string
		SMTPHost       string
		SMTPPort       string
		SMTPUser       string
		SMTPPassword   string
		SMTPStartTLS   bool
	}

	NotificationConfig struct {
		BatchSize         int
		ListLimit         int
		DedupWindow       time.Duration
		ReminderLookahead time.Duration
		SendTimeout       time.Duration
		TimeZone          string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (c *Config) SetDefaultFromEmail(addr string) {
	c.defaultFromEmail = addr
}

// Location returns the time zone used to format dates in notifications.
func (c NotificationConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

func (m MailConfig) SMTPAddress() string {
	return net.JoinHostPort(m.SMTPHost, m.SMTPPort)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "masomo")
	v.SetDefault("dbUser", "masomo")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("dbSQLitePath", "masomo.db")

	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("mailTransport", "console")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("smtpHost", "localhost")
	v.SetDefault("smtpPort", "587")
	v.SetDefault("smtpUser", "")
	v.SetDefault("smtpPassword", "")
	v.SetDefault("smtpStartTLS", true)

	v.SetDefault("notificationBatchSize", 50)
	v.SetDefault("notificationListLimit", 50)
	v.SetDefault("notificationDedupWindow", 48*time.Hour)
	v.SetDefault("notificationReminderLookahead", 24*time.Hour)
	v.SetDefault("notificationSendTimeout", 30*time.Second)
	v.SetDefault("notificationTimeZone", "UTC")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if p := os.Getenv("ENV_FILE"); p != "" {
		dotEnvPath = p
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:     v.GetString("rollbarToken"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
			SQLitePath:    v.GetString("dbSQLitePath"),
		},
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Mail: MailConfig{
			Transport:      strings.ToLower(v.GetString("mailTransport")),
			SendgridApiKey: v.GetString("sendgridApiKey"),
			SMTPHost:       v.GetString("smtpHost"),
			SMTPPort:       v.GetString("smtpPort"),
			SMTPUser:       v.GetString("smtpUser"),
			SMTPPassword:   v.GetString("smtpPassword"),
			SMTPStartTLS:   v.GetBool("smtpStartTLS"),
		},
		Notification: NotificationConfig{
			BatchSize:         v.GetInt("notificationBatchSize"),
			ListLimit:         v.GetInt("notificationListLimit"),
			DedupWindow:       v.GetDuration("notificationDedupWindow"),
			ReminderLookahead: v.GetDuration("notificationReminderLookahead"),
			SendTimeout:       v.GetDuration("notificationSendTimeout"),
			TimeZone:          v.GetString("notificationTimeZone"),
		},
	}
	if conf.Notification.BatchSize <= 0 {
		log.Fatalf("config: invalid notificationBatchSize %d", conf.Notification.BatchSize)
	}
	return conf
}
