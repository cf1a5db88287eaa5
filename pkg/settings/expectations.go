package settings

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xkilldash9x/expectkit/pkg/warnings"
)

// Keys of the expectations configuration.
const (
	OnPotentialFalsePositives = "on_potential_false_positives"
	StrictPredicateMatchers   = "strict_predicate_matchers"
	MaxFormattedOutputLength  = "max_formatted_output_length"
	IncludeChainClauses       = "include_chain_clauses_in_custom_matcher_descriptions"
	Color                     = "color"
	OutputStream              = "output_stream"
)

// Values of OnPotentialFalsePositives.
const (
	PolicyWarn    = "warn"
	PolicyRaise   = "raise"
	PolicyNothing = "nothing"
)

// ErrPotentialFalsePositive is returned by ReportPotentialFalsePositive under the raise policy.
var ErrPotentialFalsePositive = errors.New("potential false positive")

// ExpectationKeys are the options understood by the expectations library.
func ExpectationKeys() []Key {
	return []Key{
		{
			Name:        OnPotentialFalsePositives,
			Default:     PolicyWarn,
			Rule:        "oneof=warn raise nothing",
			Description: "What to do when an expectation could pass for the wrong reason.",
		},
		{
			Name:        StrictPredicateMatchers,
			Default:     false,
			Description: "Require predicate matchers to return exactly true or false.",
		},
		{
			Name:        MaxFormattedOutputLength,
			Default:     200,
			Rule:        "min=1",
			Description: "Truncate formatted objects in failure messages beyond this length.",
		},
		{
			Name:        IncludeChainClauses,
			Default:     true,
			Description: "Include chained clauses in custom matcher descriptions.",
		},
		{
			Name:        Color,
			Default:     false,
			Description: "Colorize diffs in failure messages.",
		},
		{
			Name:        OutputStream,
			Default:     "stderr",
			Rule:        "oneof=stdout stderr",
			Description: "Stream that deprecation and warning output is written to.",
		},
	}
}

// Expectations returns a new registry with every expectation key declared.
func Expectations(opts ...Option) *Registry {
	return NewRegistry(opts...).MustDeclare(ExpectationKeys()...)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide expectations registry.
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = Expectations() })
	return defaultReg
}

// ReportPotentialFalsePositive applies the registry's OnPotentialFalsePositives policy
// to message: warn sends it to the warning notifier, raise returns it as an error,
// nothing drops it.
func ReportPotentialFalsePositive(reg *Registry, message string) error {
	policy, err := reg.GetString(OnPotentialFalsePositives)
	if err != nil {
		return err
	}
	switch policy {
	case PolicyWarn:
		warnings.Warn(message)
		return nil
	case PolicyRaise:
		return fmt.Errorf("%w: %s", ErrPotentialFalsePositive, message)
	case PolicyNothing:
		return nil
	default:
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, OnPotentialFalsePositives, policy)
	}
}
