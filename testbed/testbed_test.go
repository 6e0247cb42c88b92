// Package testbed runs end to end scenarios through the public API with the
// in-process emulator standing in for the native engine library.
//
// The environment is a process-wide singleton, so these tests never run in
// parallel; each one claims the slot and releases it on cleanup.
package testbed

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/emulator"
	"github.com/wippyai/sz-runtime/environment"
	"github.com/wippyai/sz-runtime/errors"
	"github.com/wippyai/sz-runtime/settings"
)

// repoSettings builds a settings document for a repository file under dir.
func repoSettings(dir string) string {
	return settings.New(settings.SQLiteConnection(filepath.Join(dir, "repo.db"))).String()
}

// bringUp claims the environment slot on a fresh emulator.
func bringUp(t *testing.T, doc string) *environment.Environment {
	t.Helper()
	env, err := environment.Initialize("testbed", doc, false,
		environment.WithAPI(emulator.New()))
	if err != nil {
		t.Fatalf("initialize environment: %v", err)
	}
	t.Cleanup(func() { env.Destroy() })
	return env
}

// seed installs a default configuration carrying the given data sources and
// returns its id.
func seed(t *testing.T, env *environment.Environment, sources ...string) szruntime.ConfigID {
	t.Helper()
	ctx := context.Background()

	mgr, err := env.ConfigManager(ctx)
	if err != nil {
		t.Fatalf("config manager: %v", err)
	}
	cfg, err := mgr.CreateConfig(ctx)
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	defer cfg.Close()
	for _, code := range sources {
		added, err := cfg.RegisterDataSource(ctx, code)
		if err != nil {
			t.Fatalf("register %s: %v", code, err)
		}
		if !added {
			t.Fatalf("register %s: reported already present in a fresh config", code)
		}
	}
	definition, err := cfg.Export(ctx)
	if err != nil {
		t.Fatalf("export config: %v", err)
	}
	id, err := mgr.SetDefaultConfig(ctx, definition, "testbed seed")
	if err != nil {
		t.Fatalf("install default config: %v", err)
	}
	return id
}

// addRecord loads one record and returns the entity it resolved into.
func addRecord(t *testing.T, engine *environment.Engine, ds, id, definition string) szruntime.EntityID {
	t.Helper()
	res, err := engine.AddRecord(context.Background(),
		szruntime.RecordKey{DataSource: ds, RecordID: id}, definition, szruntime.WithInfo)
	if err != nil {
		t.Fatalf("add record %s:%s: %v", ds, id, err)
	}
	var info struct {
		Affected []struct {
			EntityID int64 `json:"ENTITY_ID"`
		} `json:"AFFECTED_ENTITIES"`
	}
	if err := json.Unmarshal([]byte(res), &info); err != nil {
		t.Fatalf("parse add response %q: %v", res, err)
	}
	if len(info.Affected) != 1 {
		t.Fatalf("add record %s:%s affected %d entities, want 1", ds, id, len(info.Affected))
	}
	return szruntime.EntityID(info.Affected[0].EntityID)
}

func TestLifecycle_FullFlow(t *testing.T) {
	ctx := context.Background()
	env := bringUp(t, repoSettings(t.TempDir()))

	if got := env.State(); got != environment.StateReady {
		t.Fatalf("state = %v, want %v", got, environment.StateReady)
	}

	configID := seed(t, env, "CUSTOMERS")

	engine, err := env.Engine(ctx)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	active, err := env.ActiveConfigID(ctx)
	if err != nil {
		t.Fatalf("active config id: %v", err)
	}
	if active != configID {
		t.Errorf("active config = %d, want %d", active, configID)
	}

	addRecord(t, engine, "CUSTOMERS", "1001", `{"NAME_FULL":"Ann Example"}`)
	record, err := engine.GetRecord(ctx,
		szruntime.RecordKey{DataSource: "CUSTOMERS", RecordID: "1001"},
		szruntime.RecordDefaultFlags)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !strings.Contains(record, "Ann Example") {
		t.Errorf("record %q does not carry the loaded name", record)
	}

	product, err := env.Product(ctx)
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	version, err := product.GetVersion(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(version, "PRODUCT_NAME") {
		t.Errorf("version %q does not name the product", version)
	}

	if err := env.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := env.Destroy(); err != nil {
		t.Errorf("second destroy: %v, want nil", err)
	}

	// Hubs obtained before destruction stay safe to call
	if _, err := engine.GetStats(ctx); !errors.IsNotReady(err) {
		t.Errorf("stats after destroy: %v, want a not-ready error", err)
	}
	if _, err := environment.Existing(); !errors.IsNotReady(err) {
		t.Errorf("existing after destroy: %v, want a not-ready error", err)
	}
}

func TestLifecycle_SlotExclusive(t *testing.T) {
	doc := settings.Ephemeral(t.TempDir()).String()
	env := bringUp(t, doc)

	if _, err := environment.Initialize("other", doc, false,
		environment.WithAPI(emulator.New())); !errors.IsInitialization(err) {
		t.Fatalf("second initialize: %v, want an initialization error", err)
	}

	// Matching parameters attach to the live environment instead
	again, err := environment.GetInstance("testbed", doc, false)
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if again != env {
		t.Errorf("get instance returned a different environment")
	}

	if _, err := environment.GetInstance("testbed", repoSettings(t.TempDir()), false); !errors.IsConfig(err) {
		t.Errorf("get instance with other settings: %v, want a config error", err)
	}
}
