// Package secret resolves credentials at call time from the environment or a
// secret directory. Secret values never appear in logs, JSON or fmt output.
package secret

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no provider holds the requested secret.
var ErrNotFound = errors.New("secret not found")

const redacted = "[redacted]"

// Value is a resolved secret. Use Reveal to read it.
type Value struct {
	v string
}

// NewValue wraps s. Providers call this; callers should not need to.
func NewValue(s string) Value { return Value{v: s} }

func (v Value) Reveal() string { return v.v }

func (v Value) IsZero() bool { return v.v == "" }

func (v Value) String() string   { return redacted }
func (v Value) GoString() string { return redacted }

func (v Value) LogValue() slog.Value { return slog.StringValue(redacted) }

func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Provider looks secrets up by name.
type Provider interface {
	GetSecret(ctx context.Context, name string) (Value, error)
}

// Source yields a single secret when asked.
type Source interface {
	Resolve(ctx context.Context) (Value, error)
	Name() string
}

type ref struct {
	provider Provider
	name     string
}

// Named binds a secret name to a provider. Nothing is looked up until
// Resolve is called.
func Named(p Provider, name string) Source {
	return &ref{provider: p, name: name}
}

func (r *ref) Name() string { return r.name }

func (r *ref) Resolve(ctx context.Context) (Value, error) {
	if r.provider == nil {
		return Value{}, fmt.Errorf("%w: %s (no provider)", ErrNotFound, r.name)
	}
	return r.provider.GetSecret(ctx, r.name)
}

// Env reads secrets from the process environment.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) GetSecret(_ context.Context, name string) (Value, error) {
	v, ok := e.lookup(name)
	if !ok || v == "" {
		return Value{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return NewValue(v), nil
}

// Dir reads each secret from a file named after it, the layout used by
// docker and kubernetes secret mounts.
type Dir struct {
	path string
}

func NewDir(path string) *Dir {
	return &Dir{path: path}
}

func (d *Dir) GetSecret(_ context.Context, name string) (Value, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return Value{}, fmt.Errorf("invalid secret name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if errors.Is(err, os.ErrNotExist) {
		return Value{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Value{}, fmt.Errorf("reading secret %s: %w", name, err)
	}
	v := strings.TrimRight(string(data), "\r\n")
	if v == "" {
		return Value{}, fmt.Errorf("%w: %s (empty file)", ErrNotFound, name)
	}
	return NewValue(v), nil
}

// Chain asks each provider in order and returns the first hit.
type Chain []Provider

func (c Chain) GetSecret(ctx context.Context, name string) (Value, error) {
	for _, p := range c {
		v, err := p.GetSecret(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Value{}, err
		}
	}
	return Value{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}
