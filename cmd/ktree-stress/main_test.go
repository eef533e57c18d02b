package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		want    string
		wantErr bool
	}{
		{name: "text", format: "text", level: "info", want: "msg=hello"},
		{name: "json", format: "json", level: "INFO", want: `"msg":"hello"`},
		{name: "zap", format: "zap", level: "info", want: `"msg":"hello"`},
		{name: "logrus", format: "logrus", level: "info", want: `"msg":"hello"`},
		{name: "filtered", format: "text", level: "error"},
		{name: "bad_format", format: "xml", level: "info", wantErr: true},
		{name: "bad_level", format: "zap", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log, sync, err := configLogger(tt.format, tt.level, &buf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			log.Info("hello", "k", 1)
			sync()

			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestRunMixedWritesMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ktree.prom")

	err := run([]string{"ktree-stress",
		"--log-level", "error",
		"--metrics-file", path,
		"mixed", "--workers", "4", "--keys", "512", "--ops", "2000", "--branching", "3",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "ktree_operations_total"))
}

func TestRunDisjoint(t *testing.T) {
	err := run([]string{"ktree-stress", "--log-level", "error",
		"disjoint", "--workers", "4", "--keys", "4000", "--branching", "5"})
	assert.NoError(t, err)
}

func TestRunRejectsBadBranching(t *testing.T) {
	err := run([]string{"ktree-stress", "--log-level", "error", "mixed", "--branching", "1"})
	assert.Error(t, err)
}
