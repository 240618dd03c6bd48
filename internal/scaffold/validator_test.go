package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExisting(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(dir string)
		wantErr string
	}{
		{
			name:  "clean directory",
			setup: func(string) {},
		},
		{
			name: "config present",
			setup: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), nil, 0644)
			},
			wantErr: "found warren.yml",
		},
		{
			name: "config and worker present",
			setup: func(dir string) {
				os.WriteFile(filepath.Join(dir, ConfigFile), nil, 0644)
				os.MkdirAll(filepath.Join(dir, WorkerDir), 0755)
			},
			wantErr: "found warren.yml, workers/example-worker/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(dir)

			err := CheckExisting(dir)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
