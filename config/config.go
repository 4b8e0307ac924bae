// Package config loads the server configuration from YAML with
// environment overrides.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tickbook/domain/manager"
	"tickbook/domain/orderbook"
	"tickbook/domain/symbol"
	"tickbook/infra/logging"
)

const envPrefix = "TICKBOOK_"

type Config struct {
	Logging   logging.Config  `yaml:"logging"`
	Books     BooksConfig     `yaml:"books"`
	GRPC      ListenConfig    `yaml:"grpc"`
	HTTP      ListenConfig    `yaml:"http"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// BooksConfig holds the default tick window applied to every symbol and
// optional per-symbol overrides. An empty Symbols list configures the
// whole roster with the defaults.
type BooksConfig struct {
	TickSize decimal.Decimal `yaml:"tick_size"`
	MinTick  int64           `yaml:"min_tick"`
	MaxTick  int64           `yaml:"max_tick"`
	Capacity int             `yaml:"capacity"`
	Symbols  []SymbolBook    `yaml:"symbols"`
}

type SymbolBook struct {
	Symbol   string          `yaml:"symbol"`
	TickSize decimal.Decimal `yaml:"tick_size"`
	MinTick  *int64          `yaml:"min_tick"`
	MaxTick  *int64          `yaml:"max_tick"`
	Capacity *int            `yaml:"capacity"`
}

type OutboxConfig struct {
	Dir string `yaml:"dir"`
	// Encoding is binary or proto.
	Encoding string `yaml:"encoding"`
}

type BroadcastConfig struct {
	Enabled bool `yaml:"enabled"`
	// Driver is sarama or kafka-go.
	Driver   string        `yaml:"driver"`
	Brokers  []string      `yaml:"brokers"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
}

func Default() Config {
	return Config{
		Logging: logging.NewDefaultConfig(),
		Books: BooksConfig{
			TickSize: decimal.New(1, -2),
			MinTick:  9_000,
			MaxTick:  11_000,
			Capacity: 1 << 12,
		},
		GRPC: ListenConfig{Addr: ":50051"},
		HTTP: ListenConfig{Addr: ":8080"},
		Outbox: OutboxConfig{
			Dir:      "./data/outbox",
			Encoding: "binary",
		},
		Broadcast: BroadcastConfig{
			Driver:   "sarama",
			Brokers:  []string{"localhost:9092"},
			Topic:    "tickbook.executions",
			Interval: 250 * time.Millisecond,
			Batch:    512,
		},
	}
}

// Load reads path over the defaults, applies TICKBOOK_* overrides and
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if !c.Books.TickSize.IsPositive() {
		return errors.Newf("books.tick_size %s must be positive", c.Books.TickSize)
	}
	if _, err := c.ManagerConfigs(); err != nil {
		return err
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	switch c.Outbox.Encoding {
	case "binary", "proto":
	default:
		return errors.Newf("outbox.encoding %q: want binary or proto", c.Outbox.Encoding)
	}
	if c.Outbox.Dir == "" {
		return errors.New("outbox.dir is required")
	}
	if c.Broadcast.Enabled {
		switch c.Broadcast.Driver {
		case "sarama", "kafka-go":
		default:
			return errors.Newf("broadcast.driver %q: want sarama or kafka-go", c.Broadcast.Driver)
		}
		if len(c.Broadcast.Brokers) == 0 {
			return errors.New("broadcast.brokers is required")
		}
		if c.Broadcast.Topic == "" {
			return errors.New("broadcast.topic is required")
		}
		if c.Broadcast.Interval <= 0 {
			return errors.Newf("broadcast.interval %s must be positive", c.Broadcast.Interval)
		}
	}
	return nil
}

// ManagerConfigs resolves the book section into one config per symbol.
func (c *Config) ManagerConfigs() ([]manager.BookConfig, error) {
	entries := c.Books.Symbols
	if len(entries) == 0 {
		for _, s := range symbol.All() {
			entries = append(entries, SymbolBook{Symbol: s.String()})
		}
	}

	out := make([]manager.BookConfig, 0, len(entries))
	for _, e := range entries {
		sym, err := symbol.Parse(e.Symbol)
		if err != nil {
			return nil, errors.Wrap(err, "books.symbols")
		}
		bc := manager.BookConfig{
			Symbol:   sym,
			MinTick:  orderbook.Tick(c.Books.MinTick),
			MaxTick:  orderbook.Tick(c.Books.MaxTick),
			Capacity: c.Books.Capacity,
		}
		if e.MinTick != nil {
			bc.MinTick = orderbook.Tick(*e.MinTick)
		}
		if e.MaxTick != nil {
			bc.MaxTick = orderbook.Tick(*e.MaxTick)
		}
		if e.Capacity != nil {
			bc.Capacity = *e.Capacity
		}
		if err := bc.Validate(); err != nil {
			return nil, errors.Wrapf(err, "books.symbols %s", sym)
		}
		if e.TickSize.IsNegative() {
			return nil, errors.Newf("books.symbols %s: tick_size %s is negative", sym, e.TickSize)
		}
		out = append(out, bc)
	}
	return out, nil
}

// TickSizes maps each configured symbol to its tick size in currency
// units. Symbols without an override use books.tick_size.
func (c *Config) TickSizes() map[symbol.Symbol]decimal.Decimal {
	out := make(map[symbol.Symbol]decimal.Decimal, symbol.Count)
	for _, s := range symbol.All() {
		out[s] = c.Books.TickSize
	}
	for _, e := range c.Books.Symbols {
		sym, err := symbol.Parse(e.Symbol)
		if err != nil || !e.TickSize.IsPositive() {
			continue
		}
		out[sym] = e.TickSize
	}
	return out
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv(envPrefix + "GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := os.Getenv(envPrefix + "HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv(envPrefix + "OUTBOX_DIR"); v != "" {
		cfg.Outbox.Dir = v
	}
	if v := os.Getenv(envPrefix + "KAFKA_BROKERS"); v != "" {
		cfg.Broadcast.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv(envPrefix + "KAFKA_TOPIC"); v != "" {
		cfg.Broadcast.Topic = v
	}
}
