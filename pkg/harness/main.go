package harness

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/expectkit/internal/config"
	"github.com/xkilldash9x/expectkit/internal/observability"
	"github.com/xkilldash9x/expectkit/pkg/coverage"
	"github.com/xkilldash9x/expectkit/pkg/isolation"
)

const shuffleFlag = "test.shuffle"

// Goroutines that outlive a test run by design.
var defaultLeakIgnores = []goleak.Option{
	goleak.IgnoreAnyFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
}

type mainOptions struct {
	configPath   string
	collaborator coverage.Collaborator
	minimum      *int
	leakIgnores  []goleak.Option
}

// MainOption configures Main.
type MainOption func(*mainOptions)

// WithConfigFile reads harness configuration from path instead of expectkit.yaml.
func WithConfigFile(path string) MainOption {
	return func(o *mainOptions) { o.configPath = path }
}

// WithCoverageCollaborator replaces the runtime coverage check.
func WithCoverageCollaborator(c coverage.Collaborator) MainOption {
	return func(o *mainOptions) { o.collaborator = c }
}

// WithMinimumCoverage overrides harness.minimum_coverage.
func WithMinimumCoverage(pct int) MainOption {
	return func(o *mainOptions) { o.minimum = &pct }
}

// IgnoreLeaks adds goleak options to the teardown leak check.
func IgnoreLeaks(opts ...goleak.Option) MainOption {
	return func(o *mainOptions) { o.leakIgnores = append(o.leakIgnores, opts...) }
}

// Main loads configuration, initializes logging, declares the coverage gate and
// runs m. Tests run shuffled unless harness.order is "defined" or -test.shuffle
// was given. After a passing run it checks for leaked goroutines and coverage.
// The returned code is meant for os.Exit.
//
// Isolation children only run m.
func Main(m *testing.M, opts ...MainOption) int {
	o := mainOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expectkit: %v\n", err)
		return 1
	}
	if o.minimum != nil {
		cfg.Harness.MinimumCoverage = *o.minimum
	}

	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()
	logger := observability.GetLogger().Named("harness")

	setActive(cfg.Harness)
	isolation.Default().Configure(
		isolation.WithTimeout(cfg.Harness.SubprocessTimeout),
		isolation.WithLogger(observability.GetLogger()),
	)

	if isolation.IsChild() {
		return m.Run()
	}

	if o.collaborator == nil {
		o.collaborator = coverage.NewRuntimeCollaborator()
	}
	gate, err := coverage.Setup(o.collaborator, coverage.WithMinimum(cfg.Harness.MinimumCoverage))
	if err != nil {
		logger.Error("Failed to declare coverage gate", zap.Error(err))
		return 1
	}

	if !flag.Parsed() {
		flag.Parse()
	}
	if cfg.Harness.Order == config.OrderRandom {
		if err := enableShuffle(flag.CommandLine, cfg.Harness.Seed); err != nil {
			logger.Warn("Could not enable shuffled test order", zap.Error(err))
		}
	}

	code := m.Run()
	if code != 0 {
		return code
	}

	var find func() error
	if cfg.Harness.LeakCheck {
		ignores := append(append([]goleak.Option(nil), defaultLeakIgnores...), o.leakIgnores...)
		find = func() error { return goleak.Find(ignores...) }
	}
	if err := teardown(gate, find); err != nil {
		logger.Error("Suite teardown failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "expectkit: %v\n", err)
		return 1
	}
	return 0
}

// enableShuffle turns on -test.shuffle unless the flag was set explicitly. A
// zero seed lets the testing package pick one and print it.
func enableShuffle(fs *flag.FlagSet, seed int64) error {
	if fs.Lookup(shuffleFlag) == nil {
		return fmt.Errorf("flag -%s is not registered", shuffleFlag)
	}
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == shuffleFlag {
			explicit = true
		}
	})
	if explicit {
		return nil
	}
	value := "on"
	if seed != 0 {
		value = strconv.FormatInt(seed, 10)
	}
	return fs.Set(shuffleFlag, value)
}

// teardown runs the leak check, when enabled, and then the coverage check.
func teardown(gate *coverage.Gate, findLeaks func() error) error {
	if findLeaks != nil {
		if err := findLeaks(); err != nil {
			return fmt.Errorf("goroutine leak after test run: %w", err)
		}
	}
	if err := gate.Check(); err != nil {
		return fmt.Errorf("coverage gate: %w", err)
	}
	return nil
}
