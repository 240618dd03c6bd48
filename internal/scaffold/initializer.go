package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/warren/internal/config"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	// ConfigFile is the configuration file written by Initialize
	ConfigFile = "warren.yml"

	// WorkerDir holds the example worker image written for the docker executor
	WorkerDir = "workers/example-worker"

	// WorkerImage is the tag the generated configuration expects for the example worker
	WorkerImage = "warren-example-worker:latest"
)

const configHeader = `# warren.yml - agent roster, coordination rules and engine settings.
#
# Agents score free-form requests with their vocabulary (phrase -> 0-100);
# the best score wins. Rules pin a primary agent, supporters and required
# capabilities per task type. Delete the agents section to fall back to the
# built-in roster.

`

// Options controls Initialize.
type Options struct {
	Dir      string // target directory, "" = current directory
	Force    bool   // overwrite existing files
	Executor string // executor kind written to the configuration
}

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes warren.yml (and the example worker for the docker
// executor) into opts.Dir and returns the paths it created, relative to Dir.
func Initialize(opts Options) ([]string, error) {
	if opts.Executor == "" {
		opts.Executor = config.ExecutorSimulated
	}

	if !opts.Force {
		if err := CheckExisting(opts.Dir); err != nil {
			return nil, err
		}
	}

	files, err := projectFiles(opts.Executor)
	if err != nil {
		return nil, err
	}

	created := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(opts.Dir, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(path, f.Content, f.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		created = append(created, f.Path)
	}

	// The written file must load exactly as the orchestrator will load it
	if _, err := config.Load(filepath.Join(opts.Dir, ConfigFile)); err != nil {
		return nil, fmt.Errorf("generated %s is invalid: %w", ConfigFile, err)
	}

	return created, nil
}

// RenderConfig returns the starter configuration for an executor kind: the
// built-in roster and rules with every default spelled out.
func RenderConfig(executorKind string) ([]byte, error) {
	cfg := config.DefaultConfig()
	cfg.Executor = &config.ExecutorConfig{Kind: executorKind}
	if executorKind == config.ExecutorDocker {
		cfg.Executor.Image = WorkerImage
	}

	// Applies the executor defaults and rejects unknown kinds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal configuration: %w", err)
	}

	return append([]byte(configHeader), body...), nil
}

func projectFiles(executorKind string) ([]FileInfo, error) {
	content, err := RenderConfig(executorKind)
	if err != nil {
		return nil, err
	}
	files := []FileInfo{{Path: ConfigFile, Content: content, Permissions: 0644}}

	if executorKind != config.ExecutorDocker {
		return files, nil
	}

	dockerfile, err := templatesFS.ReadFile("templates/Dockerfile.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read Dockerfile template: %w", err)
	}
	runSh, err := templatesFS.ReadFile("templates/run.sh.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read run.sh template: %w", err)
	}

	return append(files,
		FileInfo{Path: filepath.Join(WorkerDir, "Dockerfile"), Content: dockerfile, Permissions: 0644},
		FileInfo{Path: filepath.Join(WorkerDir, "run.sh"), Content: runSh, Permissions: 0755},
	), nil
}
