package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ctxguard-project/ctxguard/internal/core"
	"github.com/ctxguard-project/ctxguard/internal/keystroke"
)

func TestNetwork_WrapsSource(t *testing.T) {
	provider := Network(func(ctx context.Context) (*core.NetworkContext, error) {
		return &core.NetworkContext{Type: core.NetworkWifi, Secure: true, SSID: "home-net"}, nil
	})
	net, ok := provider(context.Background())
	if !ok || net.SSID != "home-net" {
		t.Errorf("got %+v ok=%v, want home-net", net, ok)
	}
}

func TestNetwork_ErrorAndNil(t *testing.T) {
	errProvider := Network(func(ctx context.Context) (*core.NetworkContext, error) {
		return nil, errors.New("airplane mode")
	})
	if _, ok := errProvider(context.Background()); ok {
		t.Error("source error must read as unavailable")
	}
	if _, ok := Network(nil)(context.Background()); ok {
		t.Error("nil source must read as unavailable")
	}
}

func TestDevice_WrapsSource(t *testing.T) {
	provider := Device(func(ctx context.Context) (*core.DeviceContext, error) {
		return &core.DeviceContext{BatteryLevel: 80, Unlocked: true}, nil
	})
	dev, ok := provider(context.Background())
	if !ok || dev.BatteryLevel != 80 {
		t.Errorf("got %+v ok=%v", dev, ok)
	}
}

func TestAppUsage_NilResultIsUnavailable(t *testing.T) {
	provider := AppUsage(func(ctx context.Context) (*core.AppContext, error) {
		return nil, nil // no foreground app
	})
	if _, ok := provider(context.Background()); ok {
		t.Error("nil app with nil error must still read as unavailable")
	}
}

func TestKeyboard_AbsentUntilFirstKey(t *testing.T) {
	det := keystroke.NewDetector(keystroke.Config{}, nil, zerolog.Nop())
	provider := Keyboard(det)

	if _, ok := provider(context.Background()); ok {
		t.Error("keyboard context must be absent before any key was recorded")
	}

	now := time.Now()
	det.RecordKeyEvent(keystroke.KeyEvent{KeyCode: 30, Action: keystroke.KeyDown, Timestamp: now})
	det.RecordKeyEvent(keystroke.KeyEvent{KeyCode: 30, Action: keystroke.KeyUp, Timestamp: now.Add(90 * time.Millisecond)})

	kb, ok := provider(context.Background())
	if !ok {
		t.Fatal("keyboard context should be present after recording")
	}
	if kb.Anomalous {
		t.Error("one keystroke must not be anomalous")
	}
	if kb.Accuracy != 1.0 {
		t.Errorf("accuracy = %v, want 1.0", kb.Accuracy)
	}
}

func TestKeyboard_NilDetector(t *testing.T) {
	if _, ok := Keyboard(nil)(context.Background()); ok {
		t.Error("nil detector must read as unavailable")
	}
}

func TestStaticProvidersCopy(t *testing.T) {
	provider := StaticNetwork(core.NetworkContext{Type: core.NetworkCellular})

	a, _ := provider(context.Background())
	b, _ := provider(context.Background())
	if a == b {
		t.Error("static provider must hand out fresh copies")
	}
	a.Secure = true
	if b.Secure {
		t.Error("mutating one snapshot must not leak into the next")
	}
}

func TestUnavailable(t *testing.T) {
	if _, ok := Unavailable[core.DeviceContext]()(context.Background()); ok {
		t.Error("Unavailable must never produce a value")
	}
}
