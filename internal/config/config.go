// Package config holds the tunable knobs of the transactional core, laid
// out as nested structs and populated via viper.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for one engine instance.
type Config struct {
	DataDir string

	WriteLog   WriteLogConfig
	MVCC       MVCCConfig
	Committer  CommitterConfig
	Cache      CacheConfig
	Tx         TxConfig
	Persist    PersistConfig
}

// WriteLogConfig controls the in-memory ring of recently published commits.
type WriteLogConfig struct {
	Capacity int // write_log_capacity: entries retained (the OCC window length)
}

// MVCCConfig controls index retention.
type MVCCConfig struct {
	Retention      time.Duration // mvcc_retention: loaded, but not consulted by the retention sweep, which trims to the oldest open begin timestamp
	SweepInterval  time.Duration
}

// CommitterConfig controls the committer's pipeline and backpressure.
type CommitterConfig struct {
	PendingHighWater int // pending_high_water: backpressure threshold
	PipelineWorkers  int // ants pool size for the concurrent persistence stage
	QueueDepth       int // loaded, but not passed to the committer, whose submit queue is sized by PendingHighWater
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	CapacityBytes   int64 // cache_capacity_bytes
	AvgEntryBytes   int64 // used to translate CapacityBytes into an LRU entry-count cap
}

// TxConfig controls per-transaction behavior.
type TxConfig struct {
	DefaultDeadline time.Duration // transaction_deadline
}

// PersistConfig selects and configures the durable backend.
type PersistConfig struct {
	Driver   string // "sqlite" | "memory"
	SQLitePath string
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		WriteLog: WriteLogConfig{
			Capacity: 4096,
		},
		MVCC: MVCCConfig{
			Retention:     5 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Committer: CommitterConfig{
			PendingHighWater: 1024,
			PipelineWorkers:  8,
			QueueDepth:       256,
		},
		Cache: CacheConfig{
			CapacityBytes: 64 * 1024 * 1024,
			AvgEntryBytes: 4096,
		},
		Tx: TxConfig{
			DefaultDeadline: 5 * time.Second,
		},
		Persist: PersistConfig{
			Driver:     "memory",
			SQLitePath: "",
		},
	}
}

// Load reads configuration from the given file (if non-empty) and from
// REACTORCORE_-prefixed environment variables, overlaying onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("REACTORCORE")
	v.AutomaticEnv()

	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg.DataDir = v.GetString("datadir")
	cfg.WriteLog.Capacity = v.GetInt("writelog.capacity")
	cfg.MVCC.Retention = v.GetDuration("mvcc.retention")
	cfg.MVCC.SweepInterval = v.GetDuration("mvcc.sweepinterval")
	cfg.Committer.PendingHighWater = v.GetInt("committer.pendinghighwater")
	cfg.Committer.PipelineWorkers = v.GetInt("committer.pipelineworkers")
	cfg.Committer.QueueDepth = v.GetInt("committer.queuedepth")
	cfg.Cache.CapacityBytes = v.GetInt64("cache.capacitybytes")
	cfg.Cache.AvgEntryBytes = v.GetInt64("cache.avgentrybytes")
	cfg.Tx.DefaultDeadline = v.GetDuration("tx.defaultdeadline")
	cfg.Persist.Driver = v.GetString("persist.driver")
	cfg.Persist.SQLitePath = v.GetString("persist.sqlitepath")

	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("datadir", cfg.DataDir)
	v.SetDefault("writelog.capacity", cfg.WriteLog.Capacity)
	v.SetDefault("mvcc.retention", cfg.MVCC.Retention)
	v.SetDefault("mvcc.sweepinterval", cfg.MVCC.SweepInterval)
	v.SetDefault("committer.pendinghighwater", cfg.Committer.PendingHighWater)
	v.SetDefault("committer.pipelineworkers", cfg.Committer.PipelineWorkers)
	v.SetDefault("committer.queuedepth", cfg.Committer.QueueDepth)
	v.SetDefault("cache.capacitybytes", cfg.Cache.CapacityBytes)
	v.SetDefault("cache.avgentrybytes", cfg.Cache.AvgEntryBytes)
	v.SetDefault("tx.defaultdeadline", cfg.Tx.DefaultDeadline)
	v.SetDefault("persist.driver", cfg.Persist.Driver)
	v.SetDefault("persist.sqlitepath", cfg.Persist.SQLitePath)
}
