package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dhtcompare/internal/logger"
)

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// ChordConfig holds the parameters of the Chord subsystem.
type ChordConfig struct {
	FingerTableSize int `yaml:"fingerTableSize"`
}

// PastryConfig holds the parameters of the Pastry subsystem. LeafSize
// is L/2, the number of neighbors tracked on each side of a node in its
// leaf set.
type PastryConfig struct {
	B        int `yaml:"b"`
	LeafSize int `yaml:"leafSize"`
}

// IndexConfig holds the parameters of the local B+ tree index.
type IndexConfig struct {
	BPlusTreeOrder int `yaml:"bplusTreeOrder"`
}

// DHTConfig carries every protocol-level knob recognized by the core
// packages: identifier space width, Chord/Pastry tuning, the local index,
// worker-pool sizing for concurrent facade operations, and how many
// stabilization rounds build_network runs synchronously before returning.
type DHTConfig struct {
	HashBitSize         int          `yaml:"hashBitSize"`
	Chord               ChordConfig  `yaml:"chord"`
	Pastry              PastryConfig `yaml:"pastry"`
	Index               IndexConfig  `yaml:"index"`
	WorkerPoolSize      int          `yaml:"workerPoolSize"`
	StabilizationRounds int          `yaml:"stabilizationRounds"`
}

type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	DHT       DHTConfig       `yaml:"dht"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no YAML file is supplied:
// a 160-bit identifier space, a full Chord finger table, Pastry with
// hex-digit routing (b=4, base 16) and a leaf set of 8 per side, a B+
// tree of order 32, a worker pool of 32, and 3 stabilization rounds.
func Default() *Config {
	return &Config{
		Logger: LoggerConfig{
			Active:   false,
			Level:    "info",
			Encoding: "console",
			Mode:     "stdout",
		},
		DHT: DHTConfig{
			HashBitSize:         160,
			Chord:               ChordConfig{FingerTableSize: 160},
			Pastry:              PastryConfig{B: 4, LeafSize: 8},
			Index:               IndexConfig{BPlusTreeOrder: 32},
			WorkerPoolSize:      32,
			StabilizationRounds: 3,
		},
	}
}

// LoadConfig loads the configuration from a YAML file at the given path.
// It performs only syntactic parsing; call ValidateConfig afterward.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration:
//
//	DHT_HASH_BIT_SIZE          -> cfg.DHT.HashBitSize
//	DHT_CHORD_FINGER_TABLE_SIZE-> cfg.DHT.Chord.FingerTableSize
//	DHT_PASTRY_B                -> cfg.DHT.Pastry.B
//	DHT_PASTRY_LEAF_SIZE         -> cfg.DHT.Pastry.LeafSize
//	DHT_BPLUS_TREE_ORDER         -> cfg.DHT.Index.BPlusTreeOrder
//	DHT_WORKER_POOL_SIZE         -> cfg.DHT.WorkerPoolSize
//	DHT_STABILIZATION_ROUNDS     -> cfg.DHT.StabilizationRounds
//	TRACE_ENABLED                -> cfg.Telemetry.Tracing.Enabled
//	TRACE_EXPORTER               -> cfg.Telemetry.Tracing.Exporter
//	TRACE_ENDPOINT               -> cfg.Telemetry.Tracing.Endpoint
//	LOGGER_ENABLED               -> cfg.Logger.Active
//	LOGGER_LEVEL                 -> cfg.Logger.Level
//	LOGGER_ENCODING              -> cfg.Logger.Encoding
//	LOGGER_MODE                  -> cfg.Logger.Mode
//	LOGGER_FILE_PATH             -> cfg.Logger.File.Path
func (cfg *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DHT_HASH_BIT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DHT.HashBitSize = n
		}
	}
	if v := os.Getenv("DHT_CHORD_FINGER_TABLE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DHT.Chord.FingerTableSize = n
		}
	}
	if v := os.Getenv("DHT_PASTRY_B"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DHT.Pastry.B = n
		}
	}
	if v := os.Getenv("DHT_PASTRY_LEAF_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DHT.Pastry.LeafSize = n
		}
	}
	if v := os.Getenv("DHT_BPLUS_TREE_ORDER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DHT.Index.BPlusTreeOrder = n
		}
	}
	if v := os.Getenv("DHT_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DHT.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("DHT_STABILIZATION_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DHT.StabilizationRounds = n
		}
	}
	if v := os.Getenv("TRACE_ENABLED"); v != "" {
		v = strings.ToLower(v)
		cfg.Telemetry.Tracing.Enabled = v == "true" || v == "1" || v == "yes"
	}
	if v := os.Getenv("TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.Tracing.Exporter = v
	}
	if v := os.Getenv("TRACE_ENDPOINT"); v != "" {
		cfg.Telemetry.Tracing.Endpoint = v
	}
	if v := os.Getenv("LOGGER_ENABLED"); v != "" {
		v = strings.ToLower(v)
		cfg.Logger.Active = v == "true" || v == "1" || v == "yes"
	}
	if v := os.Getenv("LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOGGER_ENCODING"); v != "" {
		cfg.Logger.Encoding = v
	}
	if v := os.Getenv("LOGGER_MODE"); v != "" {
		cfg.Logger.Mode = v
	}
	if v := os.Getenv("LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.File.Path = v
	}
}

// ValidateConfig checks structural and cross-field correctness. All
// detected issues are accumulated and returned as a single error.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.DHT.HashBitSize <= 0 {
		errs = append(errs, "dht.hashBitSize must be > 0")
	}
	if cfg.DHT.Chord.FingerTableSize <= 0 {
		errs = append(errs, "dht.chord.fingerTableSize must be > 0")
	}
	if cfg.DHT.Chord.FingerTableSize > cfg.DHT.HashBitSize {
		errs = append(errs, "dht.chord.fingerTableSize must be <= dht.hashBitSize")
	}
	if cfg.DHT.Pastry.B <= 0 {
		errs = append(errs, "dht.pastry.b must be > 0")
	} else if cfg.DHT.HashBitSize%cfg.DHT.Pastry.B != 0 {
		errs = append(errs, "dht.hashBitSize must be a multiple of dht.pastry.b")
	}
	if cfg.DHT.Pastry.LeafSize <= 0 {
		errs = append(errs, "dht.pastry.leafSize must be > 0")
	}
	if cfg.DHT.Index.BPlusTreeOrder < 3 {
		errs = append(errs, "dht.index.bplusTreeOrder must be >= 3")
	}
	if cfg.DHT.WorkerPoolSize < 1 {
		errs = append(errs, "dht.workerPoolSize must be >= 1")
	}
	if cfg.DHT.StabilizationRounds < 0 {
		errs = append(errs, "dht.stabilizationRounds must be >= 0")
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig prints the loaded configuration at Debug level.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),

		logger.F("dht.hashBitSize", cfg.DHT.HashBitSize),
		logger.F("dht.chord.fingerTableSize", cfg.DHT.Chord.FingerTableSize),
		logger.F("dht.pastry.b", cfg.DHT.Pastry.B),
		logger.F("dht.pastry.leafSize", cfg.DHT.Pastry.LeafSize),
		logger.F("dht.index.bplusTreeOrder", cfg.DHT.Index.BPlusTreeOrder),
		logger.F("dht.workerPoolSize", cfg.DHT.WorkerPoolSize),
		logger.F("dht.stabilizationRounds", cfg.DHT.StabilizationRounds),

		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
		logger.F("telemetry.tracing.endpoint", cfg.Telemetry.Tracing.Endpoint),
	)
}
