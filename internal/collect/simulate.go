package collect

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ctxguard-project/ctxguard/internal/core"
)

// Simulator produces plausible drifting signals so the daemon can run on a
// development machine where no real platform sources exist. It is wired by
// the run command, never by the engine itself.
type Simulator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	cfg  core.LocationConfig
	tick int
}

// NewSimulator seeds a simulator; seed 0 derives one from the clock.
func NewSimulator(cfg core.LocationConfig, seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		rng: rand.New(rand.NewSource(seed)),
		cfg: cfg,
	}
}

// FixSource wanders around the first enrolled place, occasionally jumping
// far enough away to read as an unknown location.
func (s *Simulator) FixSource() FixSource {
	return func(ctx context.Context) (Fix, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tick++

		base := Fix{Latitude: 40.4168, Longitude: -3.7038}
		if len(s.cfg.Places) > 0 {
			base = Fix{Latitude: s.cfg.Places[0].Latitude, Longitude: s.cfg.Places[0].Longitude}
		}

		// Roughly every tenth fix drifts a few kilometers away.
		spread := 0.0004 // ~40m
		if s.rng.Intn(10) == 0 {
			spread = 0.03
		}
		return Fix{
			Latitude:  base.Latitude + (s.rng.Float64()-0.5)*spread,
			Longitude: base.Longitude + (s.rng.Float64()-0.5)*spread,
		}, nil
	}
}

// NetworkSource alternates between a secure home network and an open
// public one.
func (s *Simulator) NetworkSource() func(ctx context.Context) (*core.NetworkContext, error) {
	return func(ctx context.Context) (*core.NetworkContext, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.rng.Intn(5) == 0 {
			return &core.NetworkContext{Type: core.NetworkWifi, Secure: false, SSID: "cafe-guest"}, nil
		}
		return &core.NetworkContext{Type: core.NetworkWifi, Secure: true, SSID: "home"}, nil
	}
}

// DeviceSource drains the battery slowly and refreshes the unlock time now
// and then.
func (s *Simulator) DeviceSource() func(ctx context.Context) (*core.DeviceContext, error) {
	lastUnlock := time.Now()
	battery := 90
	return func(ctx context.Context) (*core.DeviceContext, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if battery > 5 && s.rng.Intn(3) == 0 {
			battery--
		}
		if s.rng.Intn(8) == 0 {
			lastUnlock = time.Now()
		}
		return &core.DeviceContext{
			BatteryLevel: battery,
			Unlocked:     true,
			LastUnlock:   lastUnlock,
		}, nil
	}
}

// AppSource rotates through a small set of foreground apps.
func (s *Simulator) AppSource() func(ctx context.Context) (*core.AppContext, error) {
	apps := []core.AppContext{
		{Category: core.AppBanking, Package: "com.example.bank"},
		{Category: core.AppSocial, Package: "com.example.social"},
		{Category: core.AppNeutral, Package: "com.example.notes"},
		{Category: core.AppOther, Package: "com.example.game"},
	}
	return func(ctx context.Context) (*core.AppContext, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		app := apps[s.rng.Intn(len(apps))]
		return &app, nil
	}
}
