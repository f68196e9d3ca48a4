package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saplingcore/internal/ledger"
)

func tempConfig(t *testing.T) (string, *Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.SpendParamsPath = filepath.Join(dir, "params", "spend.params")
	cfg.OutputParamsPath = filepath.Join(dir, "params", "output.params")
	cfg.LedgerPath = filepath.Join(dir, "ledger.json")
	cfg.AuditLogPath = filepath.Join(dir, "audit.log")
	cfg.LogLevel = "error"
	path := filepath.Join(dir, "sapling.json")
	require.NoError(t, SaveConfig(cfg, path))
	return path, cfg
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sapling.json")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)

	t.Setenv("SAPLING_LEDGER", "other.json")
	t.Setenv("SAPLING_TIMEOUT_SECONDS", "7")
	t.Setenv("SAPLING_ENABLE_AUDIT", "true")
	env, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "other.json", env.LedgerPath)
	assert.Equal(t, 7, env.TimeoutSeconds)
	assert.True(t, env.EnableAudit)

	t.Setenv("SAPLING_TIMEOUT_SECONDS", "soon")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DefaultPath = "32'/133'"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.EnableAudit = true
	cfg.AuditLogPath = ""
	assert.Error(t, cfg.Validate())
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordProofGeneration("spend", 2*time.Second)
	mc.RecordProofGeneration("spend", 4*time.Second)
	mc.RecordProofGeneration("output", time.Second)
	mc.RecordError("demo")

	assert.Equal(t, int64(2), mc.Counter(MetricProofCount, map[string]string{"circuit": "spend"}))
	assert.Equal(t, int64(1), mc.Counter(MetricErrorCount, map[string]string{"type": "demo"}))
	assert.Equal(t,
		makeKey("m", map[string]string{"a": "1", "b": "2"}),
		makeKey("m", map[string]string{"b": "2", "a": "1"}))

	summary := mc.GetMetricsSummary()
	hist := summary["histograms"].(map[string]map[string]float64)
	spend := hist[makeKey(MetricProofGenerationTime, map[string]string{"circuit": "spend"})]
	assert.Equal(t, 2.0, spend["count"])
	assert.Equal(t, 3.0, spend["avg"])
	assert.Equal(t, 4.0, spend["max"])

	for i := 0; i < maxSamples+10; i++ {
		mc.RecordHistogram("x", float64(i), nil)
	}
	hist = mc.GetMetricsSummary()["histograms"].(map[string]map[string]float64)
	assert.Equal(t, float64(maxSamples), hist["x"]["count"])
	assert.Equal(t, 10.0, hist["x"]["min"])
}

func checkNamed(t *testing.T, r *HealthReport, name string) CheckResult {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "missing check", "%s", name)
	return CheckResult{}
}

func TestHealthChecker(t *testing.T) {
	_, cfg := tempConfig(t)
	hc := NewHealthChecker(cfg, version)

	report := hc.Check()
	assert.Equal(t, version, report.Version)
	require.Len(t, report.Checks, 4)
	assert.Equal(t, "parameters_loaded", report.Checks[0].Name)
	assert.Equal(t, Degraded, checkNamed(t, report, "parameter_files").Status)
	assert.Equal(t, Degraded, checkNamed(t, report, "ledger").Status)
	circuits := checkNamed(t, report, "circuits")
	assert.Equal(t, Healthy, circuits.Status)
	assert.Contains(t, circuits.Detail, "constraints")
	assert.Equal(t, Degraded, report.OverallStatus, "missing files only degrade")

	require.NoError(t, ledger.New().SaveToFile(cfg.LedgerPath))
	report = hc.Check()
	assert.Equal(t, Healthy, checkNamed(t, report, "ledger").Status)
	assert.Contains(t, checkNamed(t, report, "ledger").Detail, "0 commitments")

	require.NoError(t, os.WriteFile(cfg.LedgerPath, []byte("{"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.SpendParamsPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.SpendParamsPath, []byte{1, 2, 3}, 0o644))
	require.NoError(t, os.WriteFile(cfg.OutputParamsPath, []byte{1, 2, 3}, 0o644))
	report = hc.Check()
	assert.Equal(t, Unhealthy, checkNamed(t, report, "ledger").Status)
	files := checkNamed(t, report, "parameter_files")
	assert.Equal(t, Unhealthy, files.Status)
	assert.Contains(t, files.Detail, cfg.SpendParamsPath)
	assert.Equal(t, Unhealthy, report.OverallStatus)
}

func TestKeygenAndAddress(t *testing.T) {
	path, _ := tempConfig(t)
	var out bytes.Buffer
	seed := strings.Repeat("ab", 32)
	require.NoError(t, run([]string{"-config", path, "keygen", "-seed-hex", seed}, &out))

	fields := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		k, v, ok := strings.Cut(line, ":")
		require.True(t, ok, line)
		fields[k] = strings.TrimSpace(v)
	}
	assert.True(t, strings.HasPrefix(fields["address"], "zs1"), fields["address"])
	assert.Equal(t, "m/32'/133'/0'", fields["path"])

	var hardened bytes.Buffer
	require.NoError(t, run([]string{"-config", path, "keygen", "-seed-hex", seed, "-path", "m/32h/133H/0'"}, &hardened))
	assert.Equal(t, out.String(), hardened.String(), "h and H spell hardened steps")

	out.Reset()
	require.NoError(t, run([]string{"-config", path, "address", "-xfvk", fields["xfvk"], "-index", fields["index"]}, &out))
	assert.Contains(t, out.String(), fields["address"])

	assert.Error(t, run([]string{"-config", path, "keygen", "-seed-hex", "zz"}, &out))
	assert.Error(t, run([]string{"-config", path, "nope"}, &out))
	assert.Error(t, run([]string{"-config", path}, &out))
}

func TestStatusWithoutParameters(t *testing.T) {
	path, _ := tempConfig(t)
	var out bytes.Buffer
	require.NoError(t, run([]string{"-config", path, "status"}, &out))
	assert.Contains(t, out.String(), `"overall_status"`)
	assert.Contains(t, out.String(), `"metrics"`)
}

func TestDemo(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	path, cfg := tempConfig(t)
	var out bytes.Buffer
	require.NoError(t, run([]string{"-config", path, "demo"}, &out))
	assert.Contains(t, out.String(), "demo complete: 3 commitments")
	assert.FileExists(t, cfg.LedgerPath)
	assert.FileExists(t, cfg.SpendParamsPath)

	out.Reset()
	require.NoError(t, run([]string{"-config", path, "status"}, &out))
	assert.Contains(t, out.String(), `"overall_status": "healthy"`)
}
