package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Db
	ExportDir       string
	ArchiveDir      string
	CombinedPath    string
	SQLitePath      string
	LogLevel        string
	MetricsTextfile string
	Scrape          Scrape
	Vendors         []Vendor
	Kafka           Kafka
	S3              S3
}

type Db struct {
	Enabled  bool
	Host     string
	DbName   string
	Port     string
	User     string
	Password string
}

// DSN is the go-sql-driver/mysql data source name for Db.
func (d Db) DSN() string {
	return fmt.Sprintf("%s:%s@(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC", d.User, d.Password, d.Host, d.Port, d.DbName)
}

type Scrape struct {
	UserAgent string
	Delay     time.Duration
	Timeout   time.Duration
	MaxPages  int
}

type Kafka struct {
	Brokers string
	Topic   string
}

func (k Kafka) Enabled() bool {
	return k.Brokers != "" && k.Topic != ""
}

type S3 struct {
	Region string
	Bucket string
	Prefix string
}

func (s S3) Enabled() bool {
	return s.Region != "" && s.Bucket != ""
}

// Vendor describes one listing site. PageURL is the URL of page N with the
// literal "{page}" in place of N; when empty, pages are addressed with a
// ?page=N query on BaseURL.
type Vendor struct {
	Name            string
	BaseURL         string
	PageURL         string
	NotFoundMessage string
	Selectors       Selectors
	Detail          DetailSelectors
}

// Selectors are goquery selectors. Item is evaluated on the page, the rest
// inside each item.
type Selectors struct {
	Item         string
	Name         string
	Link         string
	Price        string
	BasePrice    string
	Discount     string
	StockStatus  string
	AvailableQty string
}

// DetailSelectors are evaluated on each product page when the list page does
// not carry stock data. AvailableQty takes the last match, such as the
// highest option of a quantity dropdown.
type DetailSelectors struct {
	StockStatus  string
	AvailableQty string
}

func (d DetailSelectors) Enabled() bool {
	return d.StockStatus != "" || d.AvailableQty != ""
}

// Configure loads ./conf/config-local.yml, falling back to ./conf/config.yml.
func Configure() (Config, error) {
	return ConfigureFrom(filepath.Join(".", "conf"))
}

// ConfigureFrom loads configuration from dir. A missing config file is not an
// error: defaults and environment overrides still apply.
func ConfigureFrom(dir string) (Config, error) {
	var config Config
	v := viper.New()

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.dbName", "catalog_tracker")
	v.SetDefault("db.user", "user")
	v.SetDefault("db.password", "password")
	currentDirectory, err := os.Getwd()
	if err != nil {
		currentDirectory = "."
	}
	v.SetDefault("exportDir", filepath.Join(currentDirectory, "exports"))
	v.SetDefault("archiveDir", filepath.Join(currentDirectory, "archive"))
	v.SetDefault("logLevel", "info")
	v.SetDefault("scrape.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("scrape.delay", "800ms")
	v.SetDefault("scrape.timeout", "30s")
	v.SetDefault("scrape.maxPages", 50)

	_, localConfErr := os.Stat(filepath.Join(dir, "config-local.yml"))
	_, confErr := os.Stat(filepath.Join(dir, "config.yml"))
	if localConfErr == nil || confErr == nil {
		if localConfErr == nil {
			v.SetConfigName("config-local")
		} else {
			v.SetConfigName("config")
		}
		v.SetConfigType("yml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file error: %w", err)
		}
	}
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unmarshal config file error: %w", err)
	}

	overrideFromEnv(&config)
	if config.CombinedPath == "" {
		config.CombinedPath = filepath.Join(config.ExportDir, "normalized_combined.csv")
	}
	return config, nil
}

func overrideFromEnv(config *Config) {
	set := func(dst *string, key string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	set(&config.Host, "db_host")
	set(&config.DbName, "db_db_name")
	set(&config.Port, "db_port")
	set(&config.User, "db_user")
	set(&config.Password, "db_password")
	set(&config.ExportDir, "export_dir")
	set(&config.ArchiveDir, "archive_dir")
	set(&config.CombinedPath, "combined_path")
	set(&config.SQLitePath, "sqlite_path")
	set(&config.LogLevel, "log_level")
	set(&config.MetricsTextfile, "metrics_textfile")
	set(&config.Kafka.Brokers, "kafka_brokers")
	set(&config.Kafka.Topic, "kafka_topic")
	set(&config.S3.Region, "s3_region")
	set(&config.S3.Bucket, "s3_bucket")
	set(&config.S3.Prefix, "s3_prefix")

	if val := os.Getenv("db_enabled"); val != "" {
		config.Db.Enabled = strings.EqualFold(val, "true") || val == "1"
	}
}

// VendorsNamed returns the configured vendors whose names are listed, or all
// of them when names is empty.
func (c Config) VendorsNamed(names []string) ([]Vendor, error) {
	if len(names) == 0 {
		return c.Vendors, nil
	}
	var out []Vendor
	for _, name := range names {
		found := false
		for _, v := range c.Vendors {
			if v.Name == name {
				out = append(out, v)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown vendor %q", name)
		}
	}
	return out, nil
}
