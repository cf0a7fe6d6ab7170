package board

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"soundgrid/clip"
	"soundgrid/config"
	"soundgrid/device"
	"soundgrid/engine"
	"soundgrid/output"
	"soundgrid/slot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Output.Backend = "headless"
	cfg.Store.Path = filepath.Join(t.TempDir(), "slots.db")
	cfg.API.Listen = "127.0.0.1:0"
	return &cfg
}

func TestEngineConfig(t *testing.T) {
	cfg := testConfig(t)
	got := EngineConfig(cfg.Engine)
	assert.Equal(t, 8, got.InstanceCap)
	assert.Equal(t, 50, got.ResourceLimit)
	assert.Equal(t, 5*time.Minute, got.SweepInterval)
	assert.Equal(t, 30*time.Second, got.InitialSweep)
	assert.Equal(t, 100*time.Millisecond, got.MinEchoDelay)
}

func TestBoard_Lifecycle(t *testing.T) {
	cfg := testConfig(t)

	b := New(cfg)
	require.NoError(t, b.Initialize())
	require.NoError(t, b.Start())

	assert.Equal(t, 36, b.Store().Count())
	assert.True(t, b.Router().SupportsSelection())

	name := "Applause"
	_, err := b.Store().Set(5, slot.Patch{
		Name: &name,
		Clip: clip.New(48000, 2, 48000),
	})
	require.NoError(t, err)

	require.NoError(t, b.Engine().Trigger(context.Background(), 5))
	assert.True(t, b.Engine().IsPlaying(5))

	require.NoError(t, b.Stop())

	// The saved pad comes back on the next run.
	b = New(cfg)
	require.NoError(t, b.Initialize())
	p, err := b.Store().Get(5)
	require.NoError(t, err)
	assert.Equal(t, "Applause", p.Name)
	assert.True(t, p.HasClip())
	require.NoError(t, b.Stop())
}

func TestBoard_ConfiguredDevice(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Enabled = false
	cfg.API.Metrics = false
	cfg.Output.Device = "missing"

	b := New(cfg)
	require.NoError(t, b.Initialize())
	assert.Empty(t, b.Router().Selected())
	assert.Equal(t, []output.Device{output.DefaultDevice}, b.Router().Devices())
	require.NoError(t, b.Stop())
}

func TestBoard_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Backend = "alsa"

	b := New(cfg)
	assert.ErrorIs(t, b.Initialize(), output.ErrUnknownBackend)
	require.NoError(t, b.Stop())
}

func TestEnumerateOutputs_NoContextIsNotReady(t *testing.T) {
	factory := func() (output.Context, error) { return nil, errors.New("no sound card") }
	eng := engine.New(engine.DefaultConfig(), slot.NewStore(1), device.NewRouter(false), factory)
	t.Cleanup(func() { _ = eng.Stop() })

	_, err := enumerateOutputs(context.Background(), eng)()
	assert.ErrorIs(t, err, device.ErrNotReady)
	assert.ErrorIs(t, err, engine.ErrNoContext)
}

func TestEnumerateOutputs_ListsContextDevices(t *testing.T) {
	audio := output.NewHeadless(48000)
	factory := func() (output.Context, error) { return audio, nil }
	eng := engine.New(engine.DefaultConfig(), slot.NewStore(1), device.NewRouter(true), factory, engine.WithContext(audio))
	t.Cleanup(func() { _ = eng.Stop() })

	devices, err := enumerateOutputs(context.Background(), eng)()
	require.NoError(t, err)
	assert.Equal(t, []output.Device{output.DefaultDevice}, devices)
}
