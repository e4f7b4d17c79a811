package viewmodel

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a holder the factory can build.
type Kind string

const (
	KindDashboard Kind = "dashboard"
	KindHistory   Kind = "history"
)

// ErrUnknownHolder is returned for a Kind the factory does not know.
var ErrUnknownHolder = errors.New("unknown holder kind")

// Holder is any screen state holder.
type Holder interface {
	Close()
}

// Factory builds holders over one shared set of dependencies.
type Factory struct {
	deps Dependencies
}

func NewFactory(deps Dependencies) *Factory {
	return &Factory{deps: deps.withDefaults()}
}

// Create builds the holder for kind.
func (f *Factory) Create(ctx context.Context, kind Kind) (Holder, error) {
	switch kind {
	case KindDashboard:
		d, err := NewDashboard(ctx, f.deps)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindHistory:
		h, err := NewHistory(ctx, f.deps)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownHolder, kind)
}

// MustCreate is Create for callers that treat an unknown kind as a bug.
func (f *Factory) MustCreate(ctx context.Context, kind Kind) Holder {
	h, err := f.Create(ctx, kind)
	if err != nil {
		panic(err)
	}
	return h
}

// Dashboard builds a dashboard holder.
func (f *Factory) Dashboard(ctx context.Context) (*Dashboard, error) {
	return NewDashboard(ctx, f.deps)
}

// History builds a history holder.
func (f *Factory) History(ctx context.Context) (*History, error) {
	return NewHistory(ctx, f.deps)
}
