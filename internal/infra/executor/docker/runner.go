package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Separator splits an audio file into stems by running spleeter in docker.
type Separator struct {
	Binary string
	Image  string
	Stems  string
	// TempDir kosong berarti pakai os.TempDir()
	TempDir string

	commandRunner CommandRunner
}

var _ items.Transformer = (*Separator)(nil)

func NewSeparator(binary, image, stems string) *Separator {
	return &Separator{Binary: binary, Image: image, Stems: stems}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Separator) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Transform writes raw into a scratch dir, runs the separator and reads back
// every expected stem. A missing stem is items.ErrArtifactMissing.
func (s *Separator) Transform(ctx context.Context, it *items.Item, raw []byte) ([]items.Artifact, error) {
	stems, err := expectedStems(s.Stems)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp(s.TempDir, "separate-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	name := filepath.Base(it.DisplayName)
	inputDir := filepath.Join(workDir, "input")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(inputDir, name), raw, 0o644); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	args := []string{
		"run", "--rm",
		"-v", fmt.Sprintf("%s:/io", workDir),
		s.Image,
		"separate",
		"-p", s.Stems,
		"-o", "/io/output",
		"/io/input/" + name,
	}
	// jalankan docker command
	if out, err := s.run(ctx, s.Binary, args...); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("separator exited with %d: %s", ee.ExitCode(), strings.TrimSpace(string(out)))
		}
		return nil, fmt.Errorf("run error: %v, output=%s", err, string(out))
	}

	// spleeter menulis ke output/<nama tanpa ekstensi>/<stem>.wav
	outDir := filepath.Join(workDir, "output", strings.TrimSuffix(name, filepath.Ext(name)))
	artifacts := make([]items.Artifact, 0, len(stems))
	for _, stem := range stems {
		file := stem + ".wav"
		data, err := os.ReadFile(filepath.Join(outDir, file))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", items.ErrArtifactMissing, file)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		artifacts = append(artifacts, items.Artifact{Name: file, Data: data})
	}
	return artifacts, nil
}

func (s *Separator) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func expectedStems(model string) ([]string, error) {
	switch model {
	case "spleeter:2stems":
		return []string{"vocals", "accompaniment"}, nil
	case "spleeter:4stems":
		return []string{"vocals", "drums", "bass", "other"}, nil
	case "spleeter:5stems":
		return []string{"vocals", "drums", "bass", "piano", "other"}, nil
	default:
		return nil, fmt.Errorf("unsupported stems model: %s", model)
	}
}
