package environment

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/emulator"
	"github.com/wippyai/sz-runtime/errors"
	"github.com/wippyai/sz-runtime/settings"
)

func testSettings(t *testing.T) string {
	t.Helper()
	return settings.New(settings.SQLiteConnection(filepath.Join(t.TempDir(), "repo.db"))).String()
}

// newTestEnv initializes an Environment over a fresh emulator and an empty
// repository, and tears it down with the test.
func newTestEnv(t *testing.T) (*Environment, *emulator.Emulator) {
	t.Helper()
	em := emulator.New()
	env, err := Initialize("test", testSettings(t), false, WithAPI(em))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Destroy() })
	return env, em
}

// bootstrapDefault registers a configuration carrying the given data sources
// and makes it the repository default, returning its id.
func bootstrapDefault(t *testing.T, env *Environment, codes ...string) szruntime.ConfigID {
	t.Helper()
	ctx := context.Background()

	mgr, err := env.ConfigManager(ctx)
	require.NoError(t, err)
	cfg, err := mgr.CreateConfig(ctx)
	require.NoError(t, err)
	for _, code := range codes {
		added, err := cfg.RegisterDataSource(ctx, code)
		require.NoError(t, err)
		require.True(t, added)
	}
	definition, err := cfg.Export(ctx)
	require.NoError(t, err)
	require.NoError(t, cfg.Close())

	id, err := mgr.SetDefaultConfig(ctx, definition, "test bootstrap")
	require.NoError(t, err)
	return id
}

func TestInitialize_ClaimsSlot(t *testing.T) {
	em := emulator.New()
	raw := testSettings(t)
	env, err := Initialize("primary", raw, true, WithAPI(em))
	require.NoError(t, err)
	defer env.Destroy()

	require.Equal(t, StateReady, env.State())
	require.False(t, env.IsDestroyed())
	require.Equal(t, "primary", env.Name())
	require.Equal(t, raw, env.Settings())
	require.True(t, env.Verbose())
	require.Positive(t, env.Generation())
}

func TestInitialize_RejectsSecondLive(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := Initialize("second", env.Settings(), false, WithAPI(emulator.New()))
	require.Error(t, err)
	require.True(t, errors.IsInitialization(err))

	require.NoError(t, env.Destroy())
	again, err := Initialize("second", env.Settings(), false, WithAPI(emulator.New()))
	require.NoError(t, err)
	defer again.Destroy()
	require.Greater(t, again.Generation(), env.Generation())
}

func TestInitialize_MalformedSettings(t *testing.T) {
	for _, raw := range []string{
		"this is not json",
		`{"PIPELINE":{"CONFIGPATH":"/a","RESOURCEPATH":"/b","SUPPORTPATH":"/c"}}`,
	} {
		_, err := Initialize("test", raw, false, WithAPI(emulator.New()))
		require.Error(t, err, "settings %q", raw)
		require.True(t, errors.IsInitialization(err))

		// a rejected initialization leaves no live environment behind
		_, err = Existing()
		require.True(t, errors.IsNotReady(err))
	}
}

func TestInitialize_NoDriver(t *testing.T) {
	_, err := Initialize("test", testSettings(t), false)
	require.Error(t, err)
	require.True(t, errors.IsInitialization(err))
}

func TestGetInstance_ReusesOnMatch(t *testing.T) {
	env, _ := newTestEnv(t)

	same, err := GetInstance("another name", env.Settings(), false)
	require.NoError(t, err)
	require.Same(t, env, same)

	_, err = GetInstance("test", `{"PIPELINE":{"CONFIGPATH":"/a","RESOURCEPATH":"/b","SUPPORTPATH":"/c"},"SQL":{"CONNECTION":"sqlite3://na:na@/other.db"}}`, false)
	require.Error(t, err)
	require.True(t, errors.IsConfig(err))

	_, err = GetInstance("test", env.Settings(), true)
	require.Error(t, err)
	require.True(t, errors.IsConfig(err))

	require.NoError(t, env.Destroy())
	fresh, err := GetInstance("test", env.Settings(), false, WithAPI(emulator.New()))
	require.NoError(t, err)
	defer fresh.Destroy()
	require.NotSame(t, env, fresh)
}

func TestExisting(t *testing.T) {
	_, err := Existing()
	require.True(t, errors.IsNotReady(err))

	env, _ := newTestEnv(t)
	got, err := Existing()
	require.NoError(t, err)
	require.Same(t, env, got)

	require.NoError(t, env.Destroy())
	_, err = Existing()
	require.True(t, errors.IsNotReady(err))
}

func TestDestroy_Idempotent(t *testing.T) {
	env, _ := newTestEnv(t)
	require.NoError(t, env.Destroy())
	require.Equal(t, StateDestroyed, env.State())
	require.True(t, env.IsDestroyed())
	require.NoError(t, env.Destroy())
}

func TestHubs_NotReadyAfterDestroy(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	bootstrapDefault(t, env, "CUSTOMERS")

	engine, err := env.Engine(ctx)
	require.NoError(t, err)
	mgr, err := env.ConfigManager(ctx)
	require.NoError(t, err)
	product, err := env.Product(ctx)
	require.NoError(t, err)
	diagnostic, err := env.Diagnostic(ctx)
	require.NoError(t, err)

	require.NoError(t, env.Destroy())

	_, err = engine.GetStats(ctx)
	require.True(t, errors.IsNotReady(err))
	_, err = mgr.GetDefaultConfigID(ctx)
	require.True(t, errors.IsNotReady(err))
	_, err = product.GetVersion(ctx)
	require.True(t, errors.IsNotReady(err))
	_, err = diagnostic.GetRepositoryInfo(ctx)
	require.True(t, errors.IsNotReady(err))

	_, err = env.Engine(ctx)
	require.True(t, errors.IsNotReady(err))
	_, err = env.ConfigManager(ctx)
	require.True(t, errors.IsNotReady(err))
	err = env.Reinitialize(ctx, 1)
	require.True(t, errors.IsNotReady(err))
	_, err = env.ActiveConfigID(ctx)
	require.True(t, errors.IsNotReady(err))
}

func TestEngineBringUp_RequiresDefaultConfig(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	// fresh repository, no registered configuration
	_, err := env.Engine(ctx)
	require.Error(t, err)
	require.EqualValues(t, 7221, errors.CodeOf(err))

	// the failed bring-up is remembered for this span, even after a
	// configuration appears
	bootstrapDefault(t, env, "CUSTOMERS")
	_, err = env.Engine(ctx)
	require.Error(t, err)
	require.EqualValues(t, 7221, errors.CodeOf(err))
}

func TestEngineBringUp_NextGenerationRecovers(t *testing.T) {
	em := emulator.New()
	raw := testSettings(t)

	env, err := Initialize("test", raw, false, WithAPI(em))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Destroy() })
	_, engineErr := env.Engine(context.Background())
	require.Error(t, engineErr)

	bootstrapDefault(t, env, "CUSTOMERS")
	require.NoError(t, env.Destroy())

	// the next span starts with clean bring-up guards and finds the default
	env2, err := Initialize("test", raw, false, WithAPI(em))
	require.NoError(t, err)
	defer env2.Destroy()
	require.Greater(t, env2.Generation(), env.Generation())

	engine, err := env2.Engine(context.Background())
	require.NoError(t, err)
	_, err = engine.GetStats(context.Background())
	require.NoError(t, err)
}

func TestReinitialize_SwitchesActiveConfig(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	first := bootstrapDefault(t, env, "CUSTOMERS")

	mgr, err := env.ConfigManager(ctx)
	require.NoError(t, err)
	cfg, err := mgr.CreateConfig(ctx)
	require.NoError(t, err)
	definition, err := cfg.Export(ctx)
	require.NoError(t, err)
	require.NoError(t, cfg.Close())
	second, err := mgr.RegisterConfig(ctx, definition, "alternate")
	require.NoError(t, err)

	active, err := env.ActiveConfigID(ctx)
	require.NoError(t, err)
	require.Equal(t, first, active)

	require.NoError(t, env.Reinitialize(ctx, second))
	active, err = env.ActiveConfigID(ctx)
	require.NoError(t, err)
	require.Equal(t, second, active)

	err = env.Reinitialize(ctx, second+1000)
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

func TestWithConfigID_PinsEngine(t *testing.T) {
	em := emulator.New()
	raw := testSettings(t)

	env, err := Initialize("test", raw, false, WithAPI(em))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Destroy() })
	defaultID := bootstrapDefault(t, env, "CUSTOMERS")

	ctx := context.Background()
	mgr, err := env.ConfigManager(ctx)
	require.NoError(t, err)
	cfg, err := mgr.CreateConfig(ctx)
	require.NoError(t, err)
	definition, err := cfg.Export(ctx)
	require.NoError(t, err)
	require.NoError(t, cfg.Close())
	pinned, err := mgr.RegisterConfig(ctx, definition, "pin target")
	require.NoError(t, err)
	require.NoError(t, env.Destroy())

	env2, err := Initialize("test", raw, false, WithAPI(em), WithConfigID(pinned))
	require.NoError(t, err)
	defer env2.Destroy()

	active, err := env2.ActiveConfigID(ctx)
	require.NoError(t, err)
	require.Equal(t, pinned, active)
	require.NotEqual(t, defaultID, active)
}

func TestConcurrentCallsRacingDestroy(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	product, err := env.Product(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	failures := make(chan error, 16)
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				if _, err := product.GetVersion(ctx); err != nil {
					failures <- err
					return
				}
			}
		}()
	}
	close(start)
	time.Sleep(time.Millisecond)
	require.NoError(t, env.Destroy())
	wg.Wait()
	close(failures)

	// every failing call reported not-ready; nothing panicked or hung
	for err := range failures {
		require.True(t, errors.IsNotReady(err), "unexpected error: %v", err)
	}
}
