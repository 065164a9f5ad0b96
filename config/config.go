package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"robustroute/checkpoint"
	"robustroute/optimizer"
	"robustroute/routing"
	"robustroute/solver"
)

const envPrefix = "ROBUSTROUTE_"

// Config struct to hold configuration from toml file
type Config struct {
	Run        RunConfig               `toml:"run"`
	Generator  GeneratorConfig         `toml:"generator"`
	Optimizer  optimizer.Config        `toml:"optimizer"`
	Solver     solver.Config           `toml:"solver"`
	Heuristic  routing.HeuristicConfig `toml:"heuristic"`
	Pool       PoolConfig              `toml:"pool"`
	Checkpoint checkpoint.Config       `toml:"checkpoint"`
	Log        LogConfig               `toml:"log"`
}

type RunConfig struct {
	Topology string `toml:"topology"` // YAML/JSON file; empty uses [generator]
	Mode     string `toml:"mode"`     // robust, ecmp, su2, ...
	Verify   bool   `toml:"verify"`
	Oracle   string `toml:"oracle"` // refinement or trivial
}

// GeneratorConfig builds a synthetic topology. A and B are the kind's
// size parameters, e.g. rows and cols for torus2d or lowers and uppers for
// clos.
type GeneratorConfig struct {
	Kind     string  `toml:"kind"`
	A        int     `toml:"a"`
	B        int     `toml:"b"`
	Servers  int     `toml:"servers"`
	Capacity float64 `toml:"capacity"`
}

type PoolConfig struct {
	Workers int `toml:"workers"` // 0 = logical CPUs
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSize    int    `toml:"max_size"` // MB
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"` // days
	Compress   bool   `toml:"compress"`
}

func Default() *Config {
	return &Config{
		Run:        RunConfig{Mode: routing.ModeRobust, Verify: true, Oracle: "refinement"},
		Generator:  GeneratorConfig{Kind: "clique", A: 6, Servers: 5, Capacity: 1},
		Optimizer:  optimizer.DefaultConfig(),
		Solver:     solver.DefaultConfig(),
		Heuristic:  routing.HeuristicConfig{},
		Checkpoint: checkpoint.Config{Backend: "memory"},
		Log: LogConfig{
			Level:      "info",
			File:       "./logs/robustroute.log",
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Load reads an optional .env file, then the TOML file at path (skipped
// when path is empty), then ROBUSTROUTE_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file found, using environment variables")
	}

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Run.Mode == "" {
		log.Warningf("Run mode not specified in config, using %s", def.Run.Mode)
		c.Run.Mode = def.Run.Mode
	}
	if c.Run.Oracle == "" {
		c.Run.Oracle = def.Run.Oracle
	}
	if c.Optimizer.Objective == "" {
		log.Warningf("Optimizer objective not specified in config, using %s", def.Optimizer.Objective)
		c.Optimizer.Objective = def.Optimizer.Objective
	}
	if c.Optimizer.Tolerance <= 0 {
		c.Optimizer.Tolerance = def.Optimizer.Tolerance
	}
	if c.Optimizer.ZeroFlow <= 0 {
		c.Optimizer.ZeroFlow = def.Optimizer.ZeroFlow
	}
	if c.Solver.Tolerance <= 0 {
		c.Solver.Tolerance = def.Solver.Tolerance
	}
	if c.Solver.CutTolerance <= 0 {
		c.Solver.CutTolerance = def.Solver.CutTolerance
	}
	if c.Solver.MaxCutRounds <= 0 {
		c.Solver.MaxCutRounds = def.Solver.MaxCutRounds
	}
	if c.Checkpoint.Backend == "file" && c.Checkpoint.Dir == "" {
		log.Warningf("Checkpoint dir not specified in config, using ./checkpoints")
		c.Checkpoint.Dir = "./checkpoints"
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate rejects settings that cannot describe a run.
func (c *Config) Validate() error {
	var errs []error
	if c.Run.Topology == "" && c.Generator.Kind == "" {
		errs = append(errs, errors.New("run.topology or generator.kind is required"))
	}
	if c.Optimizer.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("optimizer.max_iterations must not be negative, got %d", c.Optimizer.MaxIterations))
	}
	if c.Pool.Workers < 0 {
		errs = append(errs, fmt.Errorf("pool.workers must not be negative, got %d", c.Pool.Workers))
	}
	switch c.Run.Oracle {
	case "refinement", "trivial":
	default:
		errs = append(errs, fmt.Errorf("unknown run.oracle %q", c.Run.Oracle))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

func applyEnv(c *Config) {
	c.Run.Topology = getEnv("TOPOLOGY", c.Run.Topology)
	c.Run.Mode = getEnv("MODE", c.Run.Mode)
	c.Run.Verify = getEnvAsBool("VERIFY", c.Run.Verify)
	c.Run.Oracle = getEnv("ORACLE", c.Run.Oracle)
	c.Optimizer.Objective = getEnv("OBJECTIVE", c.Optimizer.Objective)
	c.Optimizer.MaxIterations = getEnvAsInt("MAX_ITERATIONS", c.Optimizer.MaxIterations)
	c.Pool.Workers = getEnvAsInt("WORKERS", c.Pool.Workers)
	c.Checkpoint.Backend = getEnv("CHECKPOINT_BACKEND", c.Checkpoint.Backend)
	c.Checkpoint.Dir = getEnv("CHECKPOINT_DIR", c.Checkpoint.Dir)
	if v := getEnv("ETCD_ENDPOINTS", ""); v != "" {
		c.Checkpoint.EtcdEndpoints = strings.Split(v, ",")
	}
	c.Checkpoint.RedisAddr = getEnv("REDIS_ADDR", c.Checkpoint.RedisAddr)
	c.Checkpoint.RedisPassword = getEnv("REDIS_PASSWORD", c.Checkpoint.RedisPassword)
	c.Checkpoint.PostgresDSN = getEnv("POSTGRES_DSN", c.Checkpoint.PostgresDSN)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(envPrefix + key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warnf("Invalid integer for %s%s, using %d", envPrefix, key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(envPrefix + key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Warnf("Invalid boolean for %s%s, using %v", envPrefix, key, defaultValue)
		return defaultValue
	}
	return value
}
