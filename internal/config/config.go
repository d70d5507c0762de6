package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Google        GoogleConfig        `yaml:"google"`
	Folders       FolderConfig        `yaml:"folders"`
	Local         LocalConfig         `yaml:"local"`
	EventRegistry EventRegistryConfig `yaml:"event_registry"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Sync          SyncConfig          `yaml:"sync"`
	LogLevel      string              `yaml:"log_level"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GoogleConfig holds the offline OAuth2 credentials for the Drive and
// Sheets APIs. The three credential values come from the environment,
// never from the config file; absence is surfaced when the client is
// constructed.
type GoogleConfig struct {
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	RefreshToken string `yaml:"-"`
	RedirectURL  string `yaml:"redirect_url"`
	SharePublic  bool   `yaml:"share_public"`
}

// FolderConfig names the four fixed Drive folders plus the master
// spreadsheet that new projects are copied from. All ids are opaque
// constants to the rest of the system.
type FolderConfig struct {
	Sheets        string `yaml:"sheets"`
	Data          string `yaml:"data"`
	ArchiveSheets string `yaml:"archive_sheets"`
	ArchiveData   string `yaml:"archive_data"`
	MasterSheetID string `yaml:"master_sheet_id"`
	SourcesSheet  string `yaml:"sources_sheet"`
	SourcesRange  string `yaml:"sources_range"`
}

type LocalConfig struct {
	DataDir string `yaml:"data_dir"`
}

type EventRegistryConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	ArticlesPerPage int           `yaml:"articles_per_page"`
	RequestDelay    time.Duration `yaml:"request_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	Retry           RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type WorkflowConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	FlowID  string `yaml:"flow_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// RabbitMQConfig configures the optional project event publisher. An
// empty URL disables publishing entirely.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.Google.RefreshToken = os.Getenv("GOOGLE_REFRESH_TOKEN")

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = "http://localhost:3000"
	}
	if c.Local.DataDir == "" {
		c.Local.DataDir = "data/projects"
	}
	if c.Folders.SourcesRange == "" {
		c.Folders.SourcesRange = "Sheet1!A2:E"
	}
	if c.EventRegistry.BaseURL == "" {
		c.EventRegistry.BaseURL = "https://eventregistry.org/api/v1/article/getArticles"
	}
	if c.EventRegistry.ArticlesPerPage == 0 {
		c.EventRegistry.ArticlesPerPage = 100
	}
	if c.EventRegistry.RequestDelay == 0 {
		c.EventRegistry.RequestDelay = 1 * time.Second
	}
	if c.EventRegistry.Timeout == 0 {
		c.EventRegistry.Timeout = 30 * time.Second
	}
	if c.EventRegistry.Retry.MaxAttempts == 0 {
		c.EventRegistry.Retry.MaxAttempts = 3
	}
	if c.EventRegistry.Retry.InitialBackoff == 0 {
		c.EventRegistry.Retry.InitialBackoff = 1 * time.Second
	}
	if c.EventRegistry.Retry.MaxBackoff == 0 {
		c.EventRegistry.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Workflow.BaseURL == "" {
		c.Workflow.BaseURL = "https://runchat.app/api/v1"
	}
	if c.Workflow.Timeout == 0 {
		c.Workflow.Timeout = 60 * time.Second
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "pressdesk"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "projects"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "project_events"
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 5 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
