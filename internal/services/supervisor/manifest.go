package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/fulmen/internal/models"
)

// configPlaceholder marks where the serialized job config is substituted
// into a worker's argument list.
const configPlaceholder = "{{config}}"

// Command describes how to invoke the compute worker for one job kind
type Command struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Timeout string   `yaml:"timeout"` // optional per-kind deadline override
}

// Manifest maps job kinds to worker commands. Built-in defaults cover the
// bundled Python workers; a workers.yaml file can override any entry.
type Manifest struct {
	Workers map[string]Command `yaml:"workers"`
}

// DefaultManifest returns the built-in kind-to-command mapping
func DefaultManifest() *Manifest {
	return &Manifest{
		Workers: map[string]Command{
			string(models.JobKindForecast): {
				Command: "python3",
				Args:    []string{"workers/forecast_worker.py", configPlaceholder},
			},
			string(models.JobKindProfile): {
				Command: "python3",
				Args:    []string{"workers/profile_worker.py", configPlaceholder},
			},
			string(models.JobKindPypsa): {
				Command: "python3",
				Args:    []string{"workers/pypsa_worker.py", configPlaceholder},
			},
		},
	}
}

// LoadManifest reads a workers.yaml file and merges it over the built-in
// defaults. An empty path returns the defaults unchanged.
func LoadManifest(path string) (*Manifest, error) {
	manifest := DefaultManifest()
	if path == "" {
		return manifest, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading worker manifest %s: %w", path, err)
	}

	var overrides Manifest
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing worker manifest %s: %w", path, err)
	}

	for kind, cmd := range overrides.Workers {
		merged := manifest.Workers[kind]
		if cmd.Command != "" {
			merged.Command = cmd.Command
		}
		if cmd.Args != nil {
			merged.Args = cmd.Args
		}
		if cmd.Timeout != "" {
			merged.Timeout = cmd.Timeout
		}
		manifest.Workers[kind] = merged
	}
	return manifest, nil
}

// Resolve builds the full argv for a job: the kind's command plus its
// args with the config placeholder replaced by the serialized config.
// Args without the placeholder get the config appended so workers always
// receive it.
func (m *Manifest) Resolve(kind models.JobKind, config map[string]interface{}) ([]string, error) {
	cmd, ok := m.Workers[string(kind)]
	if !ok || cmd.Command == "" {
		return nil, fmt.Errorf("no worker command configured for kind %q", kind)
	}

	encoded, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encoding worker config: %w", err)
	}
	configArg := string(encoded)

	argv := make([]string, 0, len(cmd.Args)+1)
	argv = append(argv, cmd.Command)

	substituted := false
	for _, arg := range cmd.Args {
		if strings.Contains(arg, configPlaceholder) {
			arg = strings.ReplaceAll(arg, configPlaceholder, configArg)
			substituted = true
		}
		argv = append(argv, arg)
	}
	if !substituted {
		argv = append(argv, configArg)
	}
	return argv, nil
}

// TimeoutFor returns the manifest's deadline override for a kind, or zero
// when none is set or it fails to parse.
func (m *Manifest) TimeoutFor(kind models.JobKind) time.Duration {
	cmd, ok := m.Workers[string(kind)]
	if !ok || cmd.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(cmd.Timeout)
	if err != nil {
		return 0
	}
	return d
}
