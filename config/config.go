// Package config loads and validates the scheduler's operator-supplied
// configuration: its queue tree and the cluster-wide memory sizing used
// to translate a task's memory requirement into worker slots.
package config

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/capshare/scheduler/scheduler/server"
)

// QueueSpec is one queue's operator-supplied configuration, as read
// from the config file (§6 Configuration, per queue).
type QueueSpec struct {
	Name                    string   `mapstructure:"name"`
	CapacityPercent         *float64 `mapstructure:"capacity"`
	MaxCapacityPercent      *float64 `mapstructure:"maximum-capacity"`
	MinimumUserLimitPercent int      `mapstructure:"minimum-user-limit-percent"`
	SupportsPriorities      bool     `mapstructure:"supports-priority"`
}

// Config is the top-level scheduler configuration.
type Config struct {
	Queues []QueueSpec `mapstructure:"queues"`

	ClusterMapMemoryMB       int `mapstructure:"mapred.cluster.map.memory.mb"`
	ClusterReduceMemoryMB    int `mapstructure:"mapred.cluster.reduce.memory.mb"`
	ClusterMaxMapMemoryMB    int `mapstructure:"mapred.cluster.max.map.memory.mb"`
	ClusterMaxReduceMemoryMB int `mapstructure:"mapred.cluster.max.reduce.memory.mb"`

	WorkerMaxMapSlots    int `mapstructure:"worker.max-map-slots"`
	WorkerMaxReduceSlots int `mapstructure:"worker.max-reduce-slots"`

	MemoryAware bool `mapstructure:"memory-aware"`

	// Workers is the static task-tracker host list used by the default
	// StaticFetcher when cluster membership isn't discovered dynamically.
	Workers []string `mapstructure:"workers"`
}

// Load reads and parses the configuration file at path into a Config.
// Keys are matched whole, dots included (e.g.
// "mapred.cluster.map.memory.mb"), not split into nested sections.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)
	v.SetEnvPrefix("capsched")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading configuration from %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing configuration")
	}
	return &cfg, nil
}

// Validate enforces the §6 start-time invariants, aggregating every
// violation found rather than stopping at the first one.
func (c *Config) Validate() error {
	var result *multierror.Error

	if len(c.Queues) == 0 {
		result = multierror.Append(result, fmt.Errorf("invalid configuration: at least one queue must be defined"))
	}

	seen := make(map[string]bool, len(c.Queues))
	sum := 0.0
	for _, q := range c.Queues {
		if q.Name == "" {
			result = multierror.Append(result, fmt.Errorf("invalid configuration: queue with empty name"))
			continue
		}
		if seen[q.Name] {
			result = multierror.Append(result, fmt.Errorf("invalid configuration: duplicate queue name %q", q.Name))
		}
		seen[q.Name] = true

		if q.CapacityPercent != nil {
			sum += *q.CapacityPercent
		}
		if q.CapacityPercent != nil && q.MaxCapacityPercent != nil && *q.CapacityPercent > *q.MaxCapacityPercent {
			result = multierror.Append(result, fmt.Errorf("invalid configuration: queue %q capacity %.2f exceeds maximum-capacity %.2f", q.Name, *q.CapacityPercent, *q.MaxCapacityPercent))
		}
		if q.MinimumUserLimitPercent < 0 || q.MinimumUserLimitPercent > 100 {
			result = multierror.Append(result, fmt.Errorf("invalid configuration: queue %q minimum-user-limit-percent %d out of range [0,100]", q.Name, q.MinimumUserLimitPercent))
		}
	}
	if sum > 100.0 {
		result = multierror.Append(result, fmt.Errorf("invalid configuration: queue capacities sum to %.2f, exceeds 100", sum))
	}

	return result.ErrorOrNil()
}

// QueueConfigs converts the parsed queue specs into the scheduler
// server's QueueConfig values.
func (c *Config) QueueConfigs() []server.QueueConfig {
	out := make([]server.QueueConfig, 0, len(c.Queues))
	for _, q := range c.Queues {
		out = append(out, server.QueueConfig{
			Name:                    q.Name,
			CapacityPercent:         q.CapacityPercent,
			MaxCapacityPercent:      q.MaxCapacityPercent,
			MinimumUserLimitPercent: q.MinimumUserLimitPercent,
			SupportsPriorities:      q.SupportsPriorities,
		})
	}
	return out
}

// WorkerSlots returns the uniform per-worker slot capacity every task
// tracker in the cluster offers.
func (c *Config) WorkerSlots() server.WorkerSlotConfig {
	slots := server.WorkerSlotConfig{
		MaxMapSlots:    c.WorkerMaxMapSlots,
		MaxReduceSlots: c.WorkerMaxReduceSlots,
	}
	if slots.MaxMapSlots <= 0 {
		slots.MaxMapSlots = 1
	}
	if slots.MaxReduceSlots <= 0 {
		slots.MaxReduceSlots = 1
	}
	return slots
}

// DefaultSlotsPerTask derives the worker-slot cost of one map/reduce
// task from the cluster's configured memory sizing: a job admitted at
// the cluster's maximum memory footprint occupies
// ceil(maxMemory/memory) of a worker's same-kind slots.
func (c *Config) DefaultSlotsPerTask() (slotsPerMap, slotsPerReduce int) {
	slotsPerMap = ratio(c.ClusterMaxMapMemoryMB, c.ClusterMapMemoryMB)
	slotsPerReduce = ratio(c.ClusterMaxReduceMemoryMB, c.ClusterReduceMemoryMB)
	return
}

func ratio(max, unit int) int {
	if max <= 0 || unit <= 0 {
		return 1
	}
	r := int(math.Ceil(float64(max) / float64(unit)))
	if r < 1 {
		return 1
	}
	return r
}
