package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "flowmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10000, cfg.Router.ChannelCapacity)
	assert.Zero(t, cfg.Router.DeadLetterCapacity)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "./data/events", cfg.Store.Dir)
	assert.False(t, cfg.Bridge.Enabled)
	assert.Equal(t, "gochannel", cfg.Bridge.Channel)
	assert.Equal(t, "flowmesh.events", cfg.Bridge.Topic)
	assert.Equal(t, "event.>", cfg.Bridge.Pattern)
	assert.False(t, cfg.Sweeper.Enabled)
	assert.Equal(t, "@every 30s", cfg.Sweeper.Spec)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
router:
  channel_capacity: 512
  dead_letter_capacity: 64
store:
  type: redis
  url: redis://localhost:6379/0
bridge:
  enabled: true
  channel: kafka
  topic: workflow.events
  pattern: event.workflow.>
  brokers: broker-1:9092,broker-2:9092
sweeper:
  enabled: true
  spec: "@every 10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Router.ChannelCapacity)
	assert.Equal(t, 64, cfg.Router.DeadLetterCapacity)
	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.URL)
	assert.True(t, cfg.Bridge.Enabled)
	assert.Equal(t, "kafka", cfg.Bridge.Channel)
	assert.Equal(t, "workflow.events", cfg.Bridge.Topic)
	assert.Equal(t, "event.workflow.>", cfg.Bridge.Pattern)
	assert.Equal(t, "broker-1:9092,broker-2:9092", cfg.Bridge.Brokers)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, "@every 10s", cfg.Sweeper.Spec)
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  type: file
  dir: /var/lib/flowmesh/events
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, "/var/lib/flowmesh/events", cfg.Store.Dir)
	assert.Equal(t, 10000, cfg.Router.ChannelCapacity)
	assert.Equal(t, "event.>", cfg.Bridge.Pattern)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "store: [not: a mapping")

	_, err := Load(path)
	assert.Error(t, err)
}
