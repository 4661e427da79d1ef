package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/phrazzld/asrq/internal/platform/logger"
)

// FilePlaceholder in CommandConfig.Args is replaced by the audio path.
// When no argument contains it, the path is appended as the last argument.
const FilePlaceholder = "{file}"

// maxStderrInError bounds how much of the command's stderr ends up in a
// job's failure message.
const maxStderrInError = 512

// CommandConfig configures CommandRecognizer.
type CommandConfig struct {
	// Command is the executable name or path.
	Command string
	// Args are passed before (or around, via FilePlaceholder) the audio path.
	Args []string
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
	// ModelDir, when set, must exist and be non-empty for Ready to succeed.
	ModelDir string
}

// CommandRunner executes name with args and returns its stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// CommandRecognizer runs an external speech-to-text CLI and reads the
// transcript from its standard output.
type CommandRecognizer struct {
	cfg    CommandConfig
	runner CommandRunner
	logger *slog.Logger
}

// NewCommandRecognizer creates a CommandRecognizer.
func NewCommandRecognizer(cfg CommandConfig, logger *slog.Logger) (*CommandRecognizer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("recognition command cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandRecognizer{
		cfg:    cfg,
		runner: execRunner,
		logger: logger.With(slog.String("component", "command_recognizer")),
	}, nil
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *CommandRecognizer) WithCommandRunner(runner CommandRunner) {
	r.runner = runner
}

// Recognize implements Recognizer.
func (r *CommandRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	args := r.buildArgs(path)
	start := time.Now()
	stdout, stderr, err := r.runner(ctx, r.cfg.Command, args...)
	log.Debug("recognition command finished",
		slog.String("command", r.cfg.Command),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("success", err == nil))

	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.cfg.Timeout, err)
		}
		if tail := stderrTail(stderr); tail != "" {
			err = fmt.Errorf("%w: %s", err, tail)
		}
		return "", NewRecognitionError("command", path, err)
	}

	text, err := NormalizeTranscript(string(stdout))
	if err != nil {
		return "", NewRecognitionError("command", path, err)
	}
	return text, nil
}

// Ready implements ReadinessChecker. The command must resolve on PATH and,
// when ModelDir is configured, the directory must hold at least one entry.
func (r *CommandRecognizer) Ready(context.Context) error {
	if _, err := exec.LookPath(r.cfg.Command); err != nil {
		return fmt.Errorf("%w: command %q: %v", ErrNotReady, r.cfg.Command, err)
	}
	if r.cfg.ModelDir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.cfg.ModelDir)
	if err != nil {
		return fmt.Errorf("%w: model directory %q: %v", ErrNotReady, r.cfg.ModelDir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: model directory %q is empty", ErrNotReady, r.cfg.ModelDir)
	}
	return nil
}

func (r *CommandRecognizer) buildArgs(path string) []string {
	args := make([]string, 0, len(r.cfg.Args)+1)
	substituted := false
	for _, arg := range r.cfg.Args {
		if strings.Contains(arg, FilePlaceholder) {
			arg = strings.ReplaceAll(arg, FilePlaceholder, path)
			substituted = true
		}
		args = append(args, arg)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func stderrTail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > maxStderrInError {
		s = "..." + s[len(s)-maxStderrInError:]
	}
	return s
}
