package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"featureConfig": "/etc/featurex/features.json",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "/etc/featurex/features.json", viper.GetString("featureConfig"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "text", viper.GetString("logFormat"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "./features.json", viper.GetString("featureConfig"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "features", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./features", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "featurex", viper.GetString("otel.serviceName"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./features", cfg.Memory.OutputDir)
	assert.False(t, cfg.Memory.CompressOutput)
	assert.True(t, cfg.Memory.MergeDataset)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "http://localhost:8086", cfg.Influx.URL())
	assert.Equal(t, 44*time.Millisecond, cfg.Influx.StepInterval)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": true },
			"sqlite": { "path": "/tmp/f.db", "dumpInterval": "10m" }
		},
		"influx": { "protocol": "https", "host": "influx", "port": "443", "bucket": "sc2" }
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.True(t, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/f.db", sc.SQLite.Path)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "https://influx:443", sc.Influx.URL())
	assert.Equal(t, "sc2", sc.Influx.Bucket)
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"otel": {"enabled": true, "exportInterval": "5s"}}`)))

	oc := GetOTelConfig()
	assert.True(t, oc.Enabled)
	assert.Equal(t, "featurex", oc.ServiceName)
	assert.Equal(t, 5*time.Second, oc.ExportInterval)
}

func TestGetWorkerAndGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"workers": {"parallel": 4, "failFast": true},
		"graylog": {"enabled": true, "address": "gelf:12201"},
		"monitor": {"statusFile": "status.txt"}
	}`)))

	assert.Equal(t, WorkerConfig{Parallel: 4, FailFast: true}, GetWorkerConfig())
	assert.Equal(t, GraylogConfig{Enabled: true, Address: "gelf:12201"}, GetGraylogConfig())
	assert.Equal(t, MonitorConfig{Interval: 10 * time.Second, StatusFile: "status.txt"}, GetMonitorConfig())
}
