// Package collect provides the engine-facing signal providers. Raw signal
// acquisition is platform territory; providers here wrap pluggable source
// functions, enforce the fault boundary, and translate into typed
// sub-contexts.
package collect

import (
	"context"

	"github.com/ctxguard-project/ctxguard/internal/core"
	"github.com/ctxguard-project/ctxguard/internal/keystroke"
)

// Network wraps a raw network source. A nil source or a source fault means
// the signal is unavailable that tick.
func Network(source func(ctx context.Context) (*core.NetworkContext, error)) core.NetworkFunc {
	return func(ctx context.Context) (*core.NetworkContext, bool) {
		if source == nil {
			return nil, false
		}
		net, err := source(ctx)
		if err != nil || net == nil {
			return nil, false
		}
		return net, true
	}
}

// Device wraps a raw device-state source.
func Device(source func(ctx context.Context) (*core.DeviceContext, error)) core.DeviceFunc {
	return func(ctx context.Context) (*core.DeviceContext, bool) {
		if source == nil {
			return nil, false
		}
		dev, err := source(ctx)
		if err != nil || dev == nil {
			return nil, false
		}
		return dev, true
	}
}

// AppUsage wraps a foreground-app source.
func AppUsage(source func(ctx context.Context) (*core.AppContext, error)) core.AppFunc {
	return func(ctx context.Context) (*core.AppContext, bool) {
		if source == nil {
			return nil, false
		}
		app, err := source(ctx)
		if err != nil || app == nil {
			return nil, false
		}
		return app, true
	}
}

// Keyboard adapts the keystroke detector into the engine's collector
// contract. The sub-context is absent until at least one key has been
// recorded; after that every tick gets an assessment (which also advances
// the detector's baseline).
func Keyboard(det *keystroke.Detector) core.KeyboardFunc {
	return func(ctx context.Context) (*core.KeyboardContext, bool) {
		if det == nil || det.TotalRecorded() == 0 {
			return nil, false
		}
		a := det.Assess()
		return &core.KeyboardContext{
			AnomalyScore: a.Score,
			Anomalous:    a.Anomalous,
			AvgDwellMs:   a.AvgDwellMs,
			AvgFlightMs:  a.AvgFlightMs,
			WPM:          a.WPM,
			Accuracy:     a.Accuracy,
		}, true
	}
}

// Static* helpers pin a provider to a fixed snapshot — used by tests and the
// status command.

func StaticNetwork(net core.NetworkContext) core.NetworkFunc {
	return func(ctx context.Context) (*core.NetworkContext, bool) {
		n := net
		return &n, true
	}
}

func StaticDevice(dev core.DeviceContext) core.DeviceFunc {
	return func(ctx context.Context) (*core.DeviceContext, bool) {
		d := dev
		return &d, true
	}
}

func StaticApp(app core.AppContext) core.AppFunc {
	return func(ctx context.Context) (*core.AppContext, bool) {
		a := app
		return &a, true
	}
}

func StaticLocation(loc core.LocationContext) core.LocationFunc {
	return func(ctx context.Context) (*core.LocationContext, bool) {
		l := loc
		return &l, true
	}
}

// Unavailable is a provider that never produces a value.
func Unavailable[T any]() func(ctx context.Context) (*T, bool) {
	return func(ctx context.Context) (*T, bool) {
		return nil, false
	}
}
