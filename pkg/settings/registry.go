// Package settings is the named configuration registry of the expectations library:
// declared keys with defaults and validation rules, read and written by name.
package settings

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/expectkit/internal/observability"
	"github.com/xkilldash9x/expectkit/pkg/scope"
)

var (
	// ErrUnknownKey is returned for a key that was never declared.
	ErrUnknownKey = errors.New("unknown configuration key")
	// ErrDuplicateKey is returned when a key is declared twice.
	ErrDuplicateKey = errors.New("configuration key already declared")
	// ErrInvalidValue is returned when a value fails its key's type or rule.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Key declares one configuration option.
type Key struct {
	Name        string
	Default     any
	Rule        string // validator tag applied to every value, e.g. "oneof=warn raise nothing"
	Description string
}

// Registry stores configuration values by declared key name. Names are case-insensitive.
type Registry struct {
	mu       sync.RWMutex
	v        *viper.Viper
	keys     map[string]Key
	validate *validator.Validate
	log      *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for change events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.log = logger
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		v:        viper.New(),
		keys:     make(map[string]Key),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = observability.GetLogger()
	}
	r.log = r.log.Named("settings")
	return r
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Declare adds keys to the registry. Each default must satisfy its own rule.
func (r *Registry) Declare(keys ...Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		name := normalize(k.Name)
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidValue)
		}
		if _, exists := r.keys[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, name)
		}
		k.Name = name
		if err := r.check(k, k.Default); err != nil {
			return fmt.Errorf("default for %s: %w", name, err)
		}
		r.keys[name] = k
		r.v.SetDefault(name, k.Default)
	}
	return nil
}

// MustDeclare is Declare that panics on error, for package-level registries.
func (r *Registry) MustDeclare(keys ...Key) *Registry {
	if err := r.Declare(keys...); err != nil {
		panic(err)
	}
	return r
}

// check verifies value against k's default type and rule. Callers hold r.mu.
func (r *Registry) check(k Key, value any) error {
	if k.Default != nil {
		want := reflect.TypeOf(k.Default)
		if value == nil || reflect.TypeOf(value) != want {
			return fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidValue, k.Name, want, value)
		}
	}
	if k.Rule != "" {
		if err := r.validate.Var(value, k.Rule); err != nil {
			return fmt.Errorf("%w: %s=%v violates %q: %v", ErrInvalidValue, k.Name, value, k.Rule, err)
		}
	}
	return nil
}

// Has reports whether name is declared.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.keys[normalize(name)]
	return ok
}

// Keys returns the declared key names, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.keys))
	for name := range r.keys {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe returns the declaration for name.
func (r *Registry) Describe(name string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[normalize(name)]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	return k, nil
}

// Get returns the current value of name.
func (r *Registry) Get(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := normalize(name)
	if _, ok := r.keys[n]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	return r.v.Get(n), nil
}

// Set replaces the value of name.
func (r *Registry) Set(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := normalize(name)
	k, ok := r.keys[n]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	if err := r.check(k, value); err != nil {
		return err
	}
	r.v.Set(n, value)
	r.log.Debug("Configuration changed", zap.String("key", n), zap.Any("value", value))
	return nil
}

// Reset puts name back to its declared default.
func (r *Registry) Reset(name string) error {
	k, err := r.Describe(name)
	if err != nil {
		return err
	}
	return r.Set(k.Name, k.Default)
}

// Snapshot returns the current values of exactly the named keys.
func (r *Registry) Snapshot(names ...string) (map[string]any, error) {
	out := make(map[string]any, len(names))
	for _, name := range names {
		v, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out[normalize(name)] = v
	}
	return out, nil
}

// Apply writes every value. All keys and values are checked before anything is written.
func (r *Registry) Apply(values map[string]any) error {
	r.mu.RLock()
	for name, value := range values {
		k, ok := r.keys[normalize(name)]
		if !ok {
			r.mu.RUnlock()
			return fmt.Errorf("%w: %s", ErrUnknownKey, name)
		}
		if err := r.check(k, value); err != nil {
			r.mu.RUnlock()
			return err
		}
	}
	r.mu.RUnlock()

	for name, value := range values {
		if err := r.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// GetString returns the value of name as a string.
func (r *Registry) GetString(name string) (string, error) {
	v, err := r.Get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, not string", ErrInvalidValue, name, v)
	}
	return s, nil
}

// GetBool returns the value of name as a bool.
func (r *Registry) GetBool(name string) (bool, error) {
	v, err := r.Get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T, not bool", ErrInvalidValue, name, v)
	}
	return b, nil
}

// GetInt returns the value of name as an int.
func (r *Registry) GetInt(name string) (int, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, not int", ErrInvalidValue, name, v)
	}
	return i, nil
}

// Store exposes the registry to the scope primitive. Deleting a key resets it to
// its default.
func (r *Registry) Store() scope.Store[string, any] { return registryStore{r: r} }

type registryStore struct{ r *Registry }

func (s registryStore) Lookup(name string) (any, bool, error) {
	v, err := s.r.Get(name)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s registryStore) Store(name string, value any) error { return s.r.Set(name, value) }

func (s registryStore) Delete(name string) error { return s.r.Reset(name) }
