// Package fingerprint adapts external fingerprint generators. The algorithm
// itself is opaque: PCM in, fingerprint blob (possibly empty) out.
package fingerprint

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
)

// waitDelay bounds how long Create waits for output pipes after the program
// is killed by context cancellation.
const waitDelay = time.Second

// Generator turns a PCM buffer (8kHz mono s16le) into a fingerprint.
// An empty result means there is nothing to upload for this buffer.
type Generator interface {
	Create(ctx context.Context, pcm []byte, partial bool) ([]byte, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(pcm []byte, partial bool) ([]byte, error)

func (f GeneratorFunc) Create(_ context.Context, pcm []byte, partial bool) ([]byte, error) {
	return f(pcm, partial)
}

// CommandGenerator runs an external program per fingerprint. PCM is written
// to its stdin and the fingerprint is read from its stdout. The program sees
// the audio format and the partial flag in its environment.
type CommandGenerator struct {
	path string
	args []string
}

// NewCommandGenerator creates a generator invoking path with args.
func NewCommandGenerator(path string, args ...string) *CommandGenerator {
	return &CommandGenerator{path: path, args: args}
}

// Create runs the program once. A non-zero exit is an error; empty stdout is
// an empty fingerprint.
func (g *CommandGenerator) Create(ctx context.Context, pcm []byte, partial bool) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.path, g.args...)
	cmd.Env = append(os.Environ(),
		"FPSTREAMER_SAMPLE_RATE="+strconv.Itoa(audio.SampleRate),
		"FPSTREAMER_CHANNELS="+strconv.Itoa(audio.Channels),
		"FPSTREAMER_PARTIAL="+boolEnv(partial),
	)
	cmd.Stdin = bytes.NewReader(pcm)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("fingerprint command: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("fingerprint command: %w", err)
	}
	return stdout.Bytes(), nil
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
