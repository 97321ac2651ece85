package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/validator"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Pabau struct {
		APIKey   string `mapstructure:"apiKey" validate:"required"`
		BaseURL  string `mapstructure:"baseURL" validate:"required,url"`
		PageSize int    `mapstructure:"pageSize" validate:"gte=1,lte=50"` // documented API maximum is 50 per page
	} `mapstructure:"pabau"`
	Mailchimp struct {
		APIKey       string `mapstructure:"apiKey" validate:"required"`
		ServerPrefix string `mapstructure:"serverPrefix" validate:"required"` // e.g. us1
		ListID       string `mapstructure:"listId" validate:"required"`
	} `mapstructure:"mailchimp"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN" validate:"required"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Sync struct {
		Interval       time.Duration `mapstructure:"interval" validate:"gt=0"`       // cycle cadence
		RunOnStart     bool          `mapstructure:"runOnStart"`                     // fire a cycle immediately on boot
		PushBatchSize  int           `mapstructure:"pushBatchSize" validate:"gte=1"` // members per bulk-upsert call
		PushBatchPause time.Duration `mapstructure:"pushBatchPause"`                 // pause between bulk batches
	} `mapstructure:"sync"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// MailchimpBaseURL constructs the Mailchimp API base URL from the server prefix.
func (c *Config) MailchimpBaseURL() string {
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", c.Mailchimp.ServerPrefix)
}

// Validate checks that everything needed to reach both APIs and the database
// is present. Called by the service entrypoint; the seeder only needs the DSN
// and skips this.
func (c *Config) Validate() error {
	return validator.Validate(c)
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	// Create new viper instance
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("pabau.baseURL", "https://api.oauth.pabau.com")
	v.SetDefault("pabau.pageSize", 50)
	v.SetDefault("mailchimp.serverPrefix", "us1")

	v.SetDefault("sync.interval", 3*time.Hour)
	v.SetDefault("sync.runOnStart", false)
	v.SetDefault("sync.pushBatchSize", 500)
	v.SetDefault("sync.pushBatchPause", 500*time.Millisecond)

	v.SetDefault("database.postgresAutoMigrate", true)

	// Config file settings
	v.SetConfigName("default") // name of config file (without extension)
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.pabau-mailchimp-sync")
	v.AddConfigPath("/etc/pabau-mailchimp-sync")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if key := os.Getenv("PABAU_API_KEY"); key != "" {
		v.Set("pabau.apiKey", key)
	}
	if key := os.Getenv("MAILCHIMP_API_KEY"); key != "" {
		v.Set("mailchimp.apiKey", key)
	}
	if listID := os.Getenv("MAILCHIMP_LIST_ID"); listID != "" {
		v.Set("mailchimp.listId", listID)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
