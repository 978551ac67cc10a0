package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// Ledger engine knobs. Changing Accuracy or DayOffset on a live dataset
	// changes replay results, so treat them as deploy-time constants.
	LedgerAccuracy        uint64
	LedgerDayOffset       int64
	LedgerMaxDurationDays uint32
	LedgerMaxBatch        int

	// AmountScale is the number of decimal places used when rendering raw
	// ledger units in API responses.
	AmountScale int32

	// SweepCron schedules periodic processing of ongoing sub-loans; empty
	// disables the sweep.
	SweepCron string
}

// fileConfig is the optional YAML overlay loaded from CONFIG_FILE. Unset
// fields keep the env/default value.
type fileConfig struct {
	AppPort string `yaml:"app_port"`

	MySQL struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
		DB   string `yaml:"db"`
		User string `yaml:"user"`
		Pass string `yaml:"pass"`
	} `yaml:"mysql"`

	Redis struct {
		Addr string `yaml:"addr"`
		DB   *int   `yaml:"db"`
	} `yaml:"redis"`

	Ledger struct {
		Accuracy        *uint64 `yaml:"accuracy"`
		DayOffset       *int64  `yaml:"day_offset"`
		MaxDurationDays *uint32 `yaml:"max_duration_days"`
		MaxBatch        *int    `yaml:"max_batch"`
		AmountScale     *int32  `yaml:"amount_scale"`
		SweepCron       string  `yaml:"sweep_cron"`
	} `yaml:"ledger"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func Load() *Config {
	c := &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "subledger"),
		MySQLUser: getenv("MYSQL_USER", "subledger"),
		MySQLPass: getenv("MYSQL_PASS", "subledger"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		IdempTTLSecs: 300,

		LedgerAccuracy:        1,
		LedgerDayOffset:       -10_800,
		LedgerMaxDurationDays: 3650,
		LedgerMaxBatch:        32,
		AmountScale:           0,
		SweepCron:             getenv("SWEEP_CRON", ""),
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("IDEMPOTENCY_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IdempTTLSecs = n
		}
	}
	if v := os.Getenv("LEDGER_ACCURACY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			c.LedgerAccuracy = n
		}
	}
	if v := os.Getenv("LEDGER_DAY_OFFSET"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.LedgerDayOffset = n
		}
	}
	if v := os.Getenv("LEDGER_MAX_DURATION_DAYS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil && n > 0 {
			c.LedgerMaxDurationDays = uint32(n)
		}
	}
	if v := os.Getenv("LEDGER_MAX_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.LedgerMaxBatch = n
		}
	}
	if v := os.Getenv("AMOUNT_SCALE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n >= 0 {
			c.AmountScale = int32(n)
		}
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		// an unreadable overlay keeps the env values; Validate still guards
		// the merged result
		_ = c.applyFile(path)
	}
	return c
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	if f.AppPort != "" {
		c.AppPort = f.AppPort
	}
	if f.MySQL.Host != "" {
		c.MySQLHost = f.MySQL.Host
	}
	if f.MySQL.Port != "" {
		c.MySQLPort = f.MySQL.Port
	}
	if f.MySQL.DB != "" {
		c.MySQLDB = f.MySQL.DB
	}
	if f.MySQL.User != "" {
		c.MySQLUser = f.MySQL.User
	}
	if f.MySQL.Pass != "" {
		c.MySQLPass = f.MySQL.Pass
	}
	if f.Redis.Addr != "" {
		c.RedisAddr = f.Redis.Addr
	}
	if f.Redis.DB != nil {
		c.RedisDB = *f.Redis.DB
	}
	if f.Ledger.Accuracy != nil && *f.Ledger.Accuracy > 0 {
		c.LedgerAccuracy = *f.Ledger.Accuracy
	}
	if f.Ledger.DayOffset != nil {
		c.LedgerDayOffset = *f.Ledger.DayOffset
	}
	if f.Ledger.MaxDurationDays != nil && *f.Ledger.MaxDurationDays > 0 {
		c.LedgerMaxDurationDays = *f.Ledger.MaxDurationDays
	}
	if f.Ledger.MaxBatch != nil && *f.Ledger.MaxBatch > 0 {
		c.LedgerMaxBatch = *f.Ledger.MaxBatch
	}
	if f.Ledger.AmountScale != nil && *f.Ledger.AmountScale >= 0 {
		c.AmountScale = *f.Ledger.AmountScale
	}
	if f.Ledger.SweepCron != "" {
		c.SweepCron = f.Ledger.SweepCron
	}
	return nil
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.LedgerAccuracy == 0 {
		return errors.New("LEDGER_ACCURACY must be positive")
	}
	if c.LedgerMaxBatch <= 0 || c.LedgerMaxBatch > 32 {
		return errors.New("LEDGER_MAX_BATCH must be in [1,32]")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
