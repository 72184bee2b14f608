package extract

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "embed.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestNewCommandEmbedderUnavailable(t *testing.T) {
	_, err := NewCommandEmbedder("", false)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	_, err = NewCommandEmbedder("   ", false)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	_, err = NewCommandEmbedder("/nonexistent/embedder --model x", false)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestCommandEmbedderEmbed(t *testing.T) {
	script := writeScript(t, `echo "[0.5, 1.5, $#]"`)

	e, err := NewCommandEmbedder(script+" --model resnet", false)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "/media/cat.jpg")
	require.NoError(t, err)
	// Two configured arguments plus the image path.
	assert.Equal(t, []float64{0.5, 1.5, 3}, vec)
}

func TestCommandEmbedderForceCPU(t *testing.T) {
	script := writeScript(t, `echo "[${FORCE_CPU:-0}]"`)

	e, err := NewCommandEmbedder(script, true)
	require.NoError(t, err)
	vec, err := e.Embed(context.Background(), "x.jpg")
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, vec)
}

func TestCommandEmbedderBadOutput(t *testing.T) {
	tests := map[string]string{
		"not json":     `echo "hello"`,
		"empty vector": `echo "[]"`,
		"failure":      `echo boom >&2; exit 3`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := NewCommandEmbedder(writeScript(t, body), false)
			require.NoError(t, err)
			_, err = e.Embed(context.Background(), "x.jpg")
			assert.Error(t, err)
		})
	}
}
