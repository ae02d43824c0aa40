package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/fulmen/internal/models"
)

func TestDefaultManifestCoversAllKinds(t *testing.T) {
	m := DefaultManifest()

	for _, kind := range []models.JobKind{models.JobKindForecast, models.JobKindProfile, models.JobKindPypsa} {
		cmd, ok := m.Workers[string(kind)]
		require.True(t, ok, "kind %s missing", kind)
		assert.Equal(t, "python3", cmd.Command)
		assert.Contains(t, cmd.Args, configPlaceholder)
	}
}

func TestLoadManifestEmptyPathReturnsDefaults(t *testing.T) {
	m, err := LoadManifest("")
	require.NoError(t, err)
	assert.Equal(t, DefaultManifest(), m)
}

func TestLoadManifestMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	content := `
workers:
  forecast:
    command: /opt/venv/bin/python
    timeout: 20m
  pypsa:
    args: ["solvers/run.py", "--config", "{{config}}"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	forecast := m.Workers["forecast"]
	assert.Equal(t, "/opt/venv/bin/python", forecast.Command)
	assert.Equal(t, []string{"workers/forecast_worker.py", configPlaceholder}, forecast.Args,
		"args not named in the override keep their defaults")
	assert.Equal(t, "20m", forecast.Timeout)

	pypsa := m.Workers["pypsa"]
	assert.Equal(t, "python3", pypsa.Command)
	assert.Equal(t, []string{"solvers/run.py", "--config", configPlaceholder}, pypsa.Args)

	assert.Equal(t, DefaultManifest().Workers["profile"], m.Workers["profile"])
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest("/nonexistent/workers.yaml")
	assert.Error(t, err)
}

func TestLoadManifestMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [not a map"), 0o644))

	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestResolveSubstitutesConfig(t *testing.T) {
	m := DefaultManifest()

	config := map[string]interface{}{"scenario_name": "base", "target_year": 2030}
	argv, err := m.Resolve(models.JobKindForecast, config)
	require.NoError(t, err)
	require.Len(t, argv, 3)
	assert.Equal(t, "python3", argv[0])
	assert.Equal(t, "workers/forecast_worker.py", argv[1])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(argv[2]), &decoded))
	assert.Equal(t, "base", decoded["scenario_name"])
}

func TestResolveAppendsConfigWithoutPlaceholder(t *testing.T) {
	m := &Manifest{Workers: map[string]Command{
		"forecast": {Command: "worker", Args: []string{"--fast"}},
	}}

	argv, err := m.Resolve(models.JobKindForecast, map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, []string{"worker", "--fast", `{"k":"v"}`}, argv)
}

func TestResolveUnknownKind(t *testing.T) {
	m := &Manifest{Workers: map[string]Command{}}
	_, err := m.Resolve(models.JobKindForecast, nil)
	assert.Error(t, err)
}

func TestTimeoutFor(t *testing.T) {
	m := &Manifest{Workers: map[string]Command{
		"forecast": {Command: "x", Timeout: "45m"},
		"profile":  {Command: "x", Timeout: "bogus"},
	}}

	assert.Equal(t, 45*time.Minute, m.TimeoutFor(models.JobKindForecast))
	assert.Equal(t, time.Duration(0), m.TimeoutFor(models.JobKindProfile))
	assert.Equal(t, time.Duration(0), m.TimeoutFor(models.JobKindPypsa))
}
