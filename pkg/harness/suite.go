package harness

import (
	"math/rand"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/expectkit/internal/config"
	"github.com/xkilldash9x/expectkit/internal/observability"
	"github.com/xkilldash9x/expectkit/pkg/settings"
)

// Body is the code of a single case.
type Body func(t *testing.T)

// Middleware wraps a Body, typically with a before and after hook.
type Middleware func(next Body) Body

// Case is one unit of the suite. Configuration and Tags are metadata that
// switch middleware on for this case only.
type Case struct {
	Name          string
	Configuration map[string]any
	Tags          []string
	Run           Body
}

// HasTag reports whether the case carries tag.
func (c Case) HasTag(tag string) bool { return slices.Contains(c.Tags, tag) }

type tagged struct {
	tag string
	mw  Middleware
}

// Suite is an ordered collection of cases sharing a middleware pipeline.
type Suite struct {
	registry   *settings.Registry
	middleware []Middleware
	tagged     []tagged
	cases      []Case
	order      string
	seed       int64
	logger     *zap.Logger
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithRegistry sets the registry case Configuration applies to. Defaults to settings.Default().
func WithRegistry(reg *settings.Registry) SuiteOption {
	return func(s *Suite) { s.registry = reg }
}

// WithOrder sets config.OrderRandom or config.OrderDefined.
func WithOrder(order string) SuiteOption {
	return func(s *Suite) { s.order = order }
}

// WithSeed fixes the random order. Zero picks a time based seed.
func WithSeed(seed int64) SuiteOption {
	return func(s *Suite) { s.seed = seed }
}

// WithLogger sets the suite logger.
func WithLogger(logger *zap.Logger) SuiteOption {
	return func(s *Suite) { s.logger = logger }
}

// NewSuite creates a suite using the active harness settings.
func NewSuite(opts ...SuiteOption) *Suite {
	cfg := Active()
	s := &Suite{order: cfg.Order, seed: cfg.Seed}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = settings.Default()
	}
	if s.logger == nil {
		s.logger = observability.GetLogger()
	}
	s.logger = s.logger.Named("harness")
	return s
}

// Use appends middleware applied to every case. The first one registered is outermost.
func (s *Suite) Use(mw ...Middleware) *Suite {
	s.middleware = append(s.middleware, mw...)
	return s
}

// UseFor appends middleware applied only to cases tagged with tag.
func (s *Suite) UseFor(tag string, mw ...Middleware) *Suite {
	for _, m := range mw {
		s.tagged = append(s.tagged, tagged{tag: tag, mw: m})
	}
	return s
}

// Add appends cases.
func (s *Suite) Add(cases ...Case) *Suite {
	s.cases = append(s.cases, cases...)
	return s
}

// Order returns the cases in execution order and the seed used to shuffle them,
// zero for the defined order.
func (s *Suite) Order() ([]Case, int64) {
	cases := slices.Clone(s.cases)
	if s.order != config.OrderRandom {
		return cases, 0
	}
	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(cases), func(i, j int) { cases[i], cases[j] = cases[j], cases[i] })
	return cases, seed
}

// Run executes every case as a subtest of t.
func (s *Suite) Run(t *testing.T) {
	t.Helper()
	cases, seed := s.Order()
	if s.order == config.OrderRandom {
		// logged on t as well so a failing order can be replayed with harness.seed
		t.Logf("running %d cases in random order, seed %d", len(cases), seed)
		s.logger.Info("Running suite", zap.String("test", t.Name()), zap.Int("cases", len(cases)), zap.Int64("seed", seed))
	}
	for _, c := range cases {
		t.Run(c.Name, s.pipeline(c))
	}
}

// pipeline builds the body for c. Suite middleware is outermost, then tagged
// middleware, then the case's own configuration scope.
func (s *Suite) pipeline(c Case) Body {
	body := c.Run
	if body == nil {
		body = func(t *testing.T) { t.Skip("case has no body") }
	}
	if len(c.Configuration) > 0 {
		body = WithConfiguration(s.registry, c.Configuration)(body)
	}
	for i := len(s.tagged) - 1; i >= 0; i-- {
		if c.HasTag(s.tagged[i].tag) {
			body = s.tagged[i].mw(body)
		}
	}
	for i := len(s.middleware) - 1; i >= 0; i-- {
		body = s.middleware[i](body)
	}
	return body
}
