package isolation

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/expectkit/internal/observability"
)

// Environment variables that carry a unit's identity into the child.
const (
	EnvUnit    = "EXPECTKIT_ISOLATION_UNIT"
	EnvSession = "EXPECTKIT_ISOLATION_SESSION"
	EnvOutcome = "EXPECTKIT_ISOLATION_OUTCOME"
)

const (
	DefaultTimeout = 2 * time.Minute
	outcomeFile    = "outcome.json"
)

var (
	// Allows mocking the child command in tests.
	execCommandContext = exec.CommandContext

	// waitDelay bounds how long output is drained once the child exits or is
	// killed, in case a grandchild still holds its stdout or stderr.
	waitDelay = 5 * time.Second
)

// Outcome is what the child reports back about the unit it ran.
type Outcome struct {
	Session  string   `json:"session"`
	Unit     string   `json:"unit"`
	Passed   bool     `json:"passed"`
	Skipped  bool     `json:"skipped,omitempty"`
	Failures []string `json:"failures,omitempty"`
	Logs     []string `json:"logs,omitempty"`
	Panic    string   `json:"panic,omitempty"`
	Stack    string   `json:"stack,omitempty"`
}

// Session is a single, finished child run. Sessions are never reused.
type Session struct {
	ID       string
	Test     string
	Unit     string
	Stdout   string
	Stderr   []string
	ExitCode int
	Duration time.Duration
	Outcome  *Outcome
}

// Err classifies the session. It is nil only when the outcome exists, passed or
// was skipped without failures, and the child exited cleanly.
func (s *Session) Err() error {
	switch {
	case s.Outcome == nil:
		return &ChildError{Kind: ErrNoOutcome, Session: s}
	case !s.Outcome.Passed:
		return &ChildError{Kind: ErrUnitFailed, Session: s}
	case s.ExitCode != 0:
		return &ChildError{Kind: ErrExitStatus, Session: s}
	}
	return nil
}

// Bridge spawns isolation children.
type Bridge struct {
	mu         sync.RWMutex
	executable string
	timeout    time.Duration
	logger     *zap.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithTimeout bounds how long a child may run. Non-positive values keep the default.
func WithTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithExecutable overrides the binary the child runs.
func WithExecutable(path string) BridgeOption {
	return func(b *Bridge) { b.executable = path }
}

// WithLogger sets the logger used by the bridge.
func WithLogger(logger *zap.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger.Named("isolation")
		}
	}
}

// NewBridge creates a bridge that re-executes the running test binary.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		executable: os.Args[0],
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Configure applies opts to an existing bridge.
func (b *Bridge) Configure(opts ...BridgeOption) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, opt := range opts {
		opt(b)
	}
}

// Timeout returns the current child timeout.
func (b *Bridge) Timeout() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timeout
}

func (b *Bridge) log() *zap.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.logger != nil {
		return b.logger
	}
	return observability.GetLogger().Named("isolation")
}

// Run executes the unit identified by test and unit in a fresh child and blocks
// until it finishes or ctx expires. The returned error covers spawning and
// waiting; the unit's own verdict is available through Session.Err.
func (b *Bridge) Run(ctx context.Context, test, unit string) (*Session, error) {
	b.mu.RLock()
	exe, timeout := b.executable, b.timeout
	b.mu.RUnlock()
	logger := b.log()

	dir, err := os.MkdirTemp("", "expectkit-isolation-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome directory: %w", err)
	}
	defer os.RemoveAll(dir)

	sess := &Session{ID: uuid.NewString(), Test: test, Unit: unit}
	outcomePath := filepath.Join(dir, outcomeFile)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := execCommandContext(ctx, exe, "-test.run="+RunPattern(test), "-test.count=1")
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env,
		EnvUnit+"="+unit,
		EnvSession+"="+sess.ID,
		EnvOutcome+"="+outcomePath,
	)
	cmd.WaitDelay = waitDelay

	// Writers rather than *Pipe so Wait owns the copying and WaitDelay can cut it off.
	var out bytes.Buffer
	cmd.Stdout = &out
	pr, pw := io.Pipe()
	cmd.Stderr = pw

	logger.Debug("Spawning isolation child",
		zap.String("session", sess.ID),
		zap.String("unit", unit),
		zap.String("executable", exe))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, fmt.Errorf("failed to start isolation child: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := scanner.Text()
			sess.Stderr = append(sess.Stderr, line)
			logger.Debug("child stderr", zap.String("session", sess.ID), zap.String("line", line))
		}
		err := scanner.Err()
		// keep the writer unblocked if scanning stopped early
		_, _ = io.Copy(io.Discard, pr)
		return err
	})
	waitErr := cmd.Wait()
	_ = pw.Close()
	pumpErr := g.Wait()

	sess.Duration = time.Since(start)
	sess.Stdout = out.String()
	if cmd.ProcessState != nil {
		sess.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() != nil {
		return sess, &ChildError{Kind: ErrTimeout, Session: sess}
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		logger.Warn("Child output was still open after exit", zap.String("session", sess.ID))
	default:
		return sess, fmt.Errorf("failed waiting for isolation child: %w", waitErr)
	}
	if pumpErr != nil {
		logger.Warn("Failed to drain child output", zap.String("session", sess.ID), zap.Error(pumpErr))
	}

	outcome, err := readOutcome(outcomePath)
	if err != nil {
		return sess, err
	}
	if outcome != nil && outcome.Session != sess.ID {
		return sess, fmt.Errorf("outcome belongs to session %q, expected %q", outcome.Session, sess.ID)
	}
	sess.Outcome = outcome

	logger.Debug("Isolation child finished",
		zap.String("session", sess.ID),
		zap.Int("exit_code", sess.ExitCode),
		zap.Duration("duration", sess.Duration))
	return sess, nil
}

// readOutcome returns nil without error when the child never wrote the file.
func readOutcome(path string) (*Outcome, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read outcome: %w", err)
	}
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to decode outcome: %w", err)
	}
	return &o, nil
}

func writeOutcome(path string, o Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}
	return nil
}

// RunPattern builds a -test.run expression that matches exactly the named test,
// one anchored element per subtest level.
func RunPattern(test string) string {
	parts := strings.Split(test, "/")
	for i, p := range parts {
		parts[i] = "^" + regexp.QuoteMeta(p) + "$"
	}
	return strings.Join(parts, "/")
}
