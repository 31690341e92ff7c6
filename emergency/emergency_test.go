package emergency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/core/eventbus"
	"github.com/fluxgraph/core/state"
)

func newTestBus(t *testing.T) eventbus.Bus {
	t.Helper()
	bus := eventbus.NewInProcessBus(eventbus.InProcessBusConfig{})
	require.NoError(t, bus.StartListening(context.Background()))
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestController_StartsAtNormal(t *testing.T) {
	ctrl := NewController(nil)
	assert.Equal(t, NORMAL, ctrl.State())
	assert.True(t, ctrl.CanOperate())
	assert.True(t, ctrl.CanTrade())
}

func TestController_HaltBlocksTradeNotOperate(t *testing.T) {
	ctrl := NewController(nil)
	ctrl.SetState(context.Background(), HALT, "manual halt")

	assert.True(t, ctrl.CanOperate())
	assert.False(t, ctrl.CanTrade())
	assert.ErrorIs(t, ctrl.AssertCanTrade(), ErrHalted)
	assert.NoError(t, ctrl.AssertCanOperate())
}

func TestController_ShutdownBlocksEverything(t *testing.T) {
	ctrl := NewController(nil)
	ctrl.SetState(context.Background(), SHUTDOWN, "operator kill switch")

	assert.False(t, ctrl.CanOperate())
	assert.False(t, ctrl.CanTrade())
	assert.ErrorIs(t, ctrl.AssertCanOperate(), ErrShutdown)
}

func TestController_AlertIsAdvisoryOnly(t *testing.T) {
	ctrl := NewController(nil)
	ctrl.SetState(context.Background(), ALERT, "elevated volatility")

	assert.True(t, ctrl.CanOperate())
	assert.True(t, ctrl.CanTrade())
}

func TestController_SetStatePublishesEvent(t *testing.T) {
	bus := newTestBus(t)
	ctrl := NewController(bus)

	received := make(chan eventbus.Event, 1)
	_, err := bus.Subscribe(EventChannel, func(_ context.Context, e eventbus.Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	ctrl.SetState(context.Background(), HALT, "test")

	select {
	case e := <-received:
		payload := e.Payload.(map[string]any)
		assert.Equal(t, "emergency_state_changed", payload["kind"])
		assert.Equal(t, "HALT", payload["to"])
	case <-time.After(time.Second):
		t.Fatal("expected emergency_state_changed event")
	}
}

func TestController_SubscribeNotifiesSynchronously(t *testing.T) {
	ctrl := NewController(nil)

	var mu sync.Mutex
	var gotFrom, gotTo Level
	ctrl.Subscribe(func(_ context.Context, from, to Level, _ string) {
		mu.Lock()
		gotFrom, gotTo = from, to
		mu.Unlock()
	})

	ctrl.SetState(context.Background(), ALERT, "watch")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, NORMAL, gotFrom)
	assert.Equal(t, ALERT, gotTo)
}

func TestRiskLimitExceeded_SignAware(t *testing.T) {
	assert.True(t, riskLimitExceeded(-520, -500))
	assert.True(t, riskLimitExceeded(520, 500))
	assert.False(t, riskLimitExceeded(-480, -500))
	assert.False(t, riskLimitExceeded(480, 500))
	assert.True(t, riskLimitExceeded(-500, 500))
}

func TestController_CheckRiskLimitAutoHalts(t *testing.T) {
	ctrl := NewController(nil)

	exceeded := ctrl.CheckRiskLimit(context.Background(), "daily_drawdown", -520, -500, true)
	assert.True(t, exceeded)
	assert.Equal(t, HALT, ctrl.State())
}

func TestController_CheckRiskLimitWithoutAutoHaltDoesNotTransition(t *testing.T) {
	ctrl := NewController(nil)

	exceeded := ctrl.CheckRiskLimit(context.Background(), "daily_drawdown", -520, -500, false)
	assert.True(t, exceeded)
	assert.Equal(t, NORMAL, ctrl.State())
}

func TestController_CheckRiskLimitWithinBoundsDoesNothing(t *testing.T) {
	ctrl := NewController(nil)

	exceeded := ctrl.CheckRiskLimit(context.Background(), "daily_drawdown", -100, -500, true)
	assert.False(t, exceeded)
	assert.Equal(t, NORMAL, ctrl.State())
}

func TestController_PersistAndRestoreStateRoundTrips(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close(context.Background())

	ctrl := NewController(nil)
	ctrl.SetState(context.Background(), HALT, "persisted halt")
	require.NoError(t, ctrl.PersistState(context.Background(), store))

	restored := NewController(nil)
	require.NoError(t, restored.RestoreState(context.Background(), store))
	assert.Equal(t, HALT, restored.State())
}

func TestController_RestoreStateWithNoPriorStateStaysNormal(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close(context.Background())

	ctrl := NewController(nil)
	require.NoError(t, ctrl.RestoreState(context.Background(), store))
	assert.Equal(t, NORMAL, ctrl.State())
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "NORMAL", NORMAL.String())
	assert.Equal(t, "ALERT", ALERT.String())
	assert.Equal(t, "HALT", HALT.String())
	assert.Equal(t, "SHUTDOWN", SHUTDOWN.String())
}
