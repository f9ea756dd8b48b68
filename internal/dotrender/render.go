// Package dotrender shells out to the Graphviz dot binary to turn a
// rendered .dot document into an image file.
package dotrender

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrRendererFailure wraps a non-zero dot exit or any non-empty stderr,
// independent of exit status, with the captured stderr text.
var ErrRendererFailure = errors.New("dotrender: renderer exited with an error")

// Renderer invokes an external Graphviz dot binary.
type Renderer struct {
	// BinaryPath is the path to the dot executable (config.RendererPath).
	BinaryPath string
	// OutputDir is where intermediate .dot and output image files land.
	OutputDir string
}

// New returns a Renderer using binaryPath and writing under outputDir.
func New(binaryPath, outputDir string) *Renderer {
	return &Renderer{BinaryPath: binaryPath, OutputDir: outputDir}
}

// Render writes doc to a randomly-named .dot file under r.OutputDir, then
// invokes dot to produce an image in the given format ("png", "svg", ...).
// It returns the path to the generated image.
func (r *Renderer) Render(ctx context.Context, doc string, format string) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", fmt.Errorf("dotrender: %w", err)
	}

	dotPath := filepath.Join(r.OutputDir, "cfg-"+suffix+".dot")
	if err := os.WriteFile(dotPath, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("dotrender: write %s: %w", dotPath, err)
	}

	outPath := filepath.Join(r.OutputDir, "cfg-"+suffix+"."+format)
	if err := r.invoke(ctx, dotPath, outPath, format); err != nil {
		return "", err
	}
	return outPath, nil
}

func (r *Renderer) invoke(ctx context.Context, dotPath, outPath, format string) error {
	cmd := exec.CommandContext(ctx, r.BinaryPath, "-T"+format, dotPath, "-o", outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v: %s", ErrRendererFailure, err, stderr.String())
	}
	if stderr.Len() > 0 {
		return fmt.Errorf("%w: %s", ErrRendererFailure, stderr.String())
	}
	return nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
