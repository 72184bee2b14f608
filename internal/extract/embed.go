package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Embedder produces a deep feature vector for an image file.
type Embedder interface {
	Embed(ctx context.Context, path string) ([]float64, error)
}

// CommandEmbedder runs an external embedding model. The command receives the
// image path as its last argument and must print a JSON array of numbers on
// stdout.
type CommandEmbedder struct {
	name     string
	args     []string
	forceCPU bool
}

// NewCommandEmbedder parses a command line such as
// "python3 /opt/models/embed.py --model resnet50". It fails with
// ErrCapabilityUnavailable when the command line is empty or the program
// cannot be found.
func NewCommandEmbedder(cmdline string, forceCPU bool) (*CommandEmbedder, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no deep model command configured: %w", ErrCapabilityUnavailable)
	}

	name, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("deep model command %q: %v: %w", fields[0], err, ErrCapabilityUnavailable)
	}

	return &CommandEmbedder{name: name, args: fields[1:], forceCPU: forceCPU}, nil
}

// Embed implements Embedder.
func (c *CommandEmbedder) Embed(ctx context.Context, path string) ([]float64, error) {
	args := append(append([]string(nil), c.args...), path)
	cmd := exec.CommandContext(ctx, c.name, args...)

	cmd.Env = os.Environ()
	if c.forceCPU {
		cmd.Env = append(cmd.Env, "FORCE_CPU=1", "CUDA_VISIBLE_DEVICES=")
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("embedding command failed: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	var vec []float64
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &vec); err != nil {
		return nil, fmt.Errorf("embedding command output is not a JSON number array: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("embedding command returned an empty vector")
	}
	return vec, nil
}
