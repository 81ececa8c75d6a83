package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/maitre-io/maitre/pkg/protocol"
)

// Config is the top-level maitre configuration.
type Config struct {
	Restaurant RestaurantConfig `json:"restaurant" yaml:"restaurant"`
	API        APIConfig        `json:"api" yaml:"api"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Shifts     ShiftsConfig     `json:"shifts" yaml:"shifts"`
	Connectors ConnectorConfig  `json:"connectors" yaml:"connectors"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// RestaurantConfig holds the floor settings and the data used to seed an
// empty roster.
type RestaurantConfig struct {
	Name     string              `json:"name" yaml:"name"`
	DataDir  string              `json:"data_dir" yaml:"data_dir"`
	MenuFile string              `json:"menu_file,omitempty" yaml:"menu_file,omitempty"`
	Menu     []protocol.MenuItem `json:"menu,omitempty" yaml:"menu,omitempty"`
	Waiters  []string            `json:"waiters,omitempty" yaml:"waiters,omitempty"`
	Queue    []SeedParty         `json:"queue,omitempty" yaml:"queue,omitempty"`
}

// SeedParty is a party placed in the waiting queue at first start. It is a
// group when Members is not empty.
type SeedParty struct {
	Name              string      `json:"name" yaml:"name"`
	Priority          string      `json:"priority,omitempty" yaml:"priority,omitempty"`
	Notes             string      `json:"notes,omitempty" yaml:"notes,omitempty"`
	Preferences       []string    `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	Members           []SeedGuest `json:"members,omitempty" yaml:"members,omitempty"`
	ArrivedMinutesAgo int         `json:"arrived_minutes_ago,omitempty" yaml:"arrived_minutes_ago,omitempty"`
}

// SeedGuest is one member of a seeded group.
type SeedGuest struct {
	Name        string   `json:"name" yaml:"name"`
	Priority    string   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Preferences []string `json:"preferences,omitempty" yaml:"preferences,omitempty"`
}

// MenuFile is the structure of a standalone menu file.
type MenuFile struct {
	Items []protocol.MenuItem `json:"items" yaml:"items"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Key  string `json:"api_key" yaml:"api_key"`
}

// StorageConfig selects the roster backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`                 // "sqlite" (default) or "postgres"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"` // sqlite file, defaults to <data_dir>/roster.db
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`   // postgres connection string
}

// ShiftsConfig holds cron specs that open and close shifts automatically.
// An empty spec leaves that shift manual.
type ShiftsConfig struct {
	Morning   string `json:"morning,omitempty" yaml:"morning,omitempty"`
	Afternoon string `json:"afternoon,omitempty" yaml:"afternoon,omitempty"`
	Night     string `json:"night,omitempty" yaml:"night,omitempty"`
	Close     string `json:"close,omitempty" yaml:"close,omitempty"`
	Timezone  string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Specs returns the configured shift start specs keyed by shift.
func (s ShiftsConfig) Specs() map[protocol.Shift]string {
	out := make(map[protocol.Shift]string)
	for shift, spec := range map[protocol.Shift]string{
		protocol.ShiftMorning:   s.Morning,
		protocol.ShiftAfternoon: s.Afternoon,
		protocol.ShiftNight:     s.Night,
	} {
		if spec != "" {
			out[shift] = spec
		}
	}
	return out
}

// Location resolves Timezone, defaulting to the local zone.
func (s ShiftsConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// ConnectorConfig holds settings for outbound notifiers and inbound intake.
type ConnectorConfig struct {
	Slack    *SlackConfig    `json:"slack,omitempty" yaml:"slack,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty" yaml:"telegram,omitempty"`
	RabbitMQ *RabbitMQConfig `json:"rabbitmq,omitempty" yaml:"rabbitmq,omitempty"`
	Intake   *IntakeConfig   `json:"intake,omitempty" yaml:"intake,omitempty"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	Token   string `json:"token" yaml:"token"`
	Channel string `json:"channel" yaml:"channel"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string  `json:"token" yaml:"token"`
	ChatIDs []int64 `json:"chat_ids" yaml:"chat_ids"`
}

// RabbitMQConfig holds the broker the floor events are published to.
type RabbitMQConfig struct {
	URL      string `json:"url" yaml:"url"`
	Exchange string `json:"exchange,omitempty" yaml:"exchange,omitempty"`
}

// IntakeConfig lists the sources allowed to post arrivals.
type IntakeConfig struct {
	Sources map[string]IntakeSource `json:"sources" yaml:"sources"`
}

// IntakeSource authenticates one arrival source, by HMAC secret or bearer token.
type IntakeSource struct {
	Secret      string `json:"secret,omitempty" yaml:"secret,omitempty"`
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Buffer int    `json:"buffer,omitempty" yaml:"buffer,omitempty"` // entries kept for /api/logs
}

// SlogLevel parses Level. Empty means info.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	err := lvl.UnmarshalText([]byte(l.Level))
	return lvl, err
}

// Load reads configuration from a JSON or YAML file, chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := unmarshal(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Restaurant.MenuFile != "" {
		mf, err := loadMenuFile(filepath.Dir(path), cfg.Restaurant.DataDir, cfg.Restaurant.MenuFile)
		if err != nil {
			return nil, err
		}
		applyMenuFile(&cfg, mf)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func unmarshal(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

// loadMenuFile reads and parses a menu file.
// Relative paths are resolved against configDir first, then dataDir.
func loadMenuFile(configDir, dataDir, menuFile string) (*MenuFile, error) {
	path := menuFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir, menuFile)
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(dataDir, menuFile)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read menu file %s: %w", path, err)
	}
	var mf MenuFile
	if err := unmarshal(path, data, &mf); err != nil {
		return nil, fmt.Errorf("config: parse menu file %s: %w", path, err)
	}
	return &mf, nil
}

// applyMenuFile uses the menu file only when the config has no inline menu.
func applyMenuFile(cfg *Config, mf *MenuFile) {
	if len(cfg.Restaurant.Menu) == 0 {
		cfg.Restaurant.Menu = mf.Items
	}
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" && c.Restaurant.DataDir != "" {
		c.Storage.Path = filepath.Join(c.Restaurant.DataDir, "roster.db")
	}
	if c.Connectors.RabbitMQ != nil && c.Connectors.RabbitMQ.Exchange == "" {
		c.Connectors.RabbitMQ.Exchange = "maitre.floor"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Default returns the built-in configuration: the demo floor the daemon
// seeds when no config file is given.
func Default() *Config {
	cfg := &Config{
		Restaurant: RestaurantConfig{
			Name:    "Meu Restaurante",
			DataDir: "/data",
			Menu: []protocol.MenuItem{
				{Name: "Pizza Margherita", Price: 45.00},
				{Name: "Refrigerante Coca-Cola", Price: 7.50},
				{Name: "Lasanha Bolonhesa", Price: 38.00},
			},
			Waiters: []string{"João Silva", "Maria Oliveira", "Carlos Souza"},
			Queue: []SeedParty{
				{Name: "Ana Paula", Priority: "normal", ArrivedMinutesAgo: 10},
				{Name: "Pedro Souza", Priority: "priority", ArrivedMinutesAgo: 5},
				{
					Name:              "Família Garcia",
					Members:           []SeedGuest{{Name: "João G."}, {Name: "Maria G."}},
					ArrivedMinutesAgo: 8,
				},
			},
		},
		API: APIConfig{Host: "0.0.0.0"},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFromEnv builds a config from environment variables with MAITRE_ prefix,
// starting from Default.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	cfg.Restaurant.Name = getenv("MAITRE_RESTAURANT_NAME", cfg.Restaurant.Name)
	cfg.Restaurant.DataDir = getenv("MAITRE_DATA_DIR", cfg.Restaurant.DataDir)
	cfg.API = APIConfig{
		Host: getenv("MAITRE_API_HOST", "0.0.0.0"),
		Port: getenvInt("MAITRE_API_PORT", 8080),
		Key:  os.Getenv("MAITRE_API_KEY"),
	}

	cfg.Storage.Driver = getenv("MAITRE_STORAGE_DRIVER", "sqlite")
	cfg.Storage.DSN = os.Getenv("MAITRE_POSTGRES_DSN")
	cfg.Storage.Path = ""
	if cfg.Storage.Driver == "sqlite" {
		cfg.Storage.Path = filepath.Join(cfg.Restaurant.DataDir, "roster.db")
	}

	cfg.Shifts = ShiftsConfig{
		Morning:   os.Getenv("MAITRE_SHIFT_MORNING"),
		Afternoon: os.Getenv("MAITRE_SHIFT_AFTERNOON"),
		Night:     os.Getenv("MAITRE_SHIFT_NIGHT"),
		Close:     os.Getenv("MAITRE_SHIFT_CLOSE"),
		Timezone:  os.Getenv("MAITRE_SHIFT_TIMEZONE"),
	}

	if token := os.Getenv("MAITRE_SLACK_TOKEN"); token != "" {
		cfg.Connectors.Slack = &SlackConfig{
			Token:   token,
			Channel: os.Getenv("MAITRE_SLACK_CHANNEL"),
		}
	}

	if token := os.Getenv("MAITRE_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("MAITRE_TELEGRAM_CHAT_ID"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: MAITRE_TELEGRAM_CHAT_ID: %w", err)
			}
			cfg.Connectors.Telegram.ChatIDs = parsed
		}
	}

	if url := os.Getenv("MAITRE_AMQP_URL"); url != "" {
		cfg.Connectors.RabbitMQ = &RabbitMQConfig{
			URL:      url,
			Exchange: getenv("MAITRE_AMQP_EXCHANGE", "maitre.floor"),
		}
	}

	cfg.Logging.Level = getenv("MAITRE_LOG_LEVEL", "info")
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Restaurant.Name) == "" {
		errs = append(errs, "restaurant.name is required")
	}
	if c.Restaurant.DataDir == "" {
		errs = append(errs, "restaurant.data_dir is required")
	}

	seen := make(map[string]bool)
	for i, it := range c.Restaurant.Menu {
		key := strings.ToLower(strings.TrimSpace(it.Name))
		switch {
		case key == "":
			errs = append(errs, fmt.Sprintf("restaurant.menu[%d].name is required", i))
		case seen[key]:
			errs = append(errs, fmt.Sprintf("restaurant.menu[%d] duplicates %q", i, it.Name))
		}
		seen[key] = true
		if it.Price < 0 {
			errs = append(errs, fmt.Sprintf("restaurant.menu[%d].price must not be negative", i))
		}
	}
	for i, name := range c.Restaurant.Waiters {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("restaurant.waiters[%d] is blank", i))
		}
	}
	for i, p := range c.Restaurant.Queue {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Sprintf("restaurant.queue[%d].name is required", i))
		}
		if _, err := protocol.ParsePriority(p.Priority); err != nil {
			errs = append(errs, fmt.Sprintf("restaurant.queue[%d].priority %q is invalid", i, p.Priority))
		}
		for j, m := range p.Members {
			if strings.TrimSpace(m.Name) == "" {
				errs = append(errs, fmt.Sprintf("restaurant.queue[%d].members[%d].name is required", i, j))
			}
			if _, err := protocol.ParsePriority(m.Priority); err != nil {
				errs = append(errs, fmt.Sprintf("restaurant.queue[%d].members[%d].priority %q is invalid", i, j, m.Priority))
			}
		}
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for sqlite")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, "storage.dsn is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q must be sqlite or postgres", c.Storage.Driver))
	}

	for _, s := range []struct{ name, spec string }{
		{"morning", c.Shifts.Morning},
		{"afternoon", c.Shifts.Afternoon},
		{"night", c.Shifts.Night},
		{"close", c.Shifts.Close},
	} {
		if s.spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(s.spec); err != nil {
			errs = append(errs, fmt.Sprintf("shifts.%s: %v", s.name, err))
		}
	}
	if _, err := c.Shifts.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("shifts.timezone: %v", err))
	}

	if sl := c.Connectors.Slack; sl != nil {
		if sl.Token == "" {
			errs = append(errs, "connectors.slack.token is required")
		}
		if sl.Channel == "" {
			errs = append(errs, "connectors.slack.channel is required")
		}
	}
	if tg := c.Connectors.Telegram; tg != nil {
		if tg.Token == "" {
			errs = append(errs, "connectors.telegram.token is required")
		}
		if len(tg.ChatIDs) == 0 {
			errs = append(errs, "connectors.telegram.chat_ids is required")
		}
	}
	if mq := c.Connectors.RabbitMQ; mq != nil && mq.URL == "" {
		errs = append(errs, "connectors.rabbitmq.url is required")
	}
	if in := c.Connectors.Intake; in != nil {
		for name, src := range in.Sources {
			if src.Secret == "" && src.BearerToken == "" {
				errs = append(errs, fmt.Sprintf("connectors.intake.sources.%s needs a secret or bearer_token", name))
			}
		}
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid", c.Logging.Level))
	}
	if c.Logging.Buffer < 0 {
		errs = append(errs, "logging.buffer must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
