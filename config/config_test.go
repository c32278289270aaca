package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadParsesQueuesAndMemorySettings(t *testing.T) {
	path := writeConfig(t, `
queues:
  - name: default
    capacity: 60
    minimum-user-limit-percent: 25
  - name: adhoc
    capacity: 40
    maximum-capacity: 50
mapred.cluster.map.memory.mb: 1024
mapred.cluster.max.map.memory.mb: 2048
worker.max-map-slots: 8
worker.max-reduce-slots: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Queues, 2)
	assert.Equal(t, "default", cfg.Queues[0].Name)
	assert.Equal(t, 60.0, *cfg.Queues[0].CapacityPercent)
	assert.Equal(t, 25, cfg.Queues[0].MinimumUserLimitPercent)
	assert.Equal(t, 50.0, *cfg.Queues[1].MaxCapacityPercent)
	assert.Equal(t, 1024, cfg.ClusterMapMemoryMB)
	assert.Equal(t, 8, cfg.WorkerMaxMapSlots)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsOverCommittedCapacity(t *testing.T) {
	a, b := 70.0, 50.0
	cfg := &Config{Queues: []QueueSpec{{Name: "a", CapacityPercent: &a}, {Name: "b", CapacityPercent: &b}}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsCapacityOverMax(t *testing.T) {
	cap, max := 50.0, 30.0
	cfg := &Config{Queues: []QueueSpec{{Name: "a", CapacityPercent: &cap, MaxCapacityPercent: &max}}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNoQueues(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDuplicateQueueNames(t *testing.T) {
	cfg := &Config{Queues: []QueueSpec{{Name: "a"}, {Name: "a"}}}
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cap := 50.0
	cfg := &Config{Queues: []QueueSpec{{Name: "a", CapacityPercent: &cap}, {Name: "b"}}}
	assert.NoError(t, cfg.Validate())
}

func TestDefaultSlotsPerTaskRatio(t *testing.T) {
	cfg := &Config{ClusterMapMemoryMB: 1024, ClusterMaxMapMemoryMB: 3000, ClusterReduceMemoryMB: 0, ClusterMaxReduceMemoryMB: 0}
	slotsPerMap, slotsPerReduce := cfg.DefaultSlotsPerTask()
	assert.Equal(t, 3, slotsPerMap) // ceil(3000/1024) = 3
	assert.Equal(t, 1, slotsPerReduce, "missing memory settings default to 1 slot per task")
}

func TestQueueConfigsConvertsSpecs(t *testing.T) {
	cap := 50.0
	cfg := &Config{Queues: []QueueSpec{{Name: "a", CapacityPercent: &cap, SupportsPriorities: true}}}
	out := cfg.QueueConfigs()
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Name)
	assert.True(t, out[0].SupportsPriorities)
}
