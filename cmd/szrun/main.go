package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/emulator"
	"github.com/wippyai/sz-runtime/environment"
	"github.com/wippyai/sz-runtime/native"
)

func main() {
	var (
		profilePath = flag.String("profile", "", "TOML profile with tool defaults")
		dbPath      = flag.String("db", "", "Path to the SQLite repository file")
		rawDoc      = flag.String("settings", "", "Full settings document (JSON, overrides -db)")
		ephemeral   = flag.Bool("ephemeral", false, "Use a throwaway repository")
		name        = flag.String("name", "szrun", "Instance name reported to the engine")
		sources     = flag.String("sources", "", "Data sources registered when seeding a fresh repository (comma-separated)")
		verbose     = flag.Bool("verbose", false, "Enable native diagnostics and debug logging")
		addKey      = flag.String("add", "", "Add a record (DATASOURCE:RECORDID, requires -record)")
		record      = flag.String("record", "", "Record definition JSON for -add")
		getKey      = flag.String("get", "", "Print the entity a record resolved into (DATASOURCE:RECORDID)")
		deleteKey   = flag.String("delete", "", "Delete a record (DATASOURCE:RECORDID)")
		search      = flag.String("search", "", "Search for entities matching attributes (JSON)")
		export      = flag.Bool("export", false, "Write all entities as JSON lines to stdout")
		stats       = flag.Bool("stats", false, "Print engine workload statistics")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *profilePath != "" {
		var err error
		cfg, err = applyProfile(cfg, *profilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Explicit flags beat profile values.
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if explicit["name"] {
		cfg.Name = *name
	}
	if explicit["db"] {
		cfg.Database = *dbPath
	}
	if explicit["settings"] {
		cfg.Settings = *rawDoc
	}
	if explicit["ephemeral"] {
		cfg.Ephemeral = *ephemeral
	}
	if explicit["verbose"] {
		cfg.Verbose = *verbose
	}
	if explicit["sources"] {
		cfg.Sources = splitCSV(*sources)
	}

	doc, err := cfg.document()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Usage: szrun -db <repo.db> [-sources CUSTOMERS,...] [operation]")
		fmt.Fprintln(os.Stderr, "       szrun -ephemeral -add CUSTOMERS:1 -record '{\"NAME_FULL\":\"Ann\"}'")
		fmt.Fprintln(os.Stderr, "       szrun -db <repo.db> -i  (interactive mode)")
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}

	if cfg.Verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		native.SetLogger(logger)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	op := operation{
		addKey: *addKey, record: *record,
		getKey: *getKey, deleteKey: *deleteKey,
		search: *search, export: *export, stats: *stats,
	}
	if err := run(cfg, doc, op); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// operation is the single action selected by flags. Empty fields mean the
// overview is printed instead.
type operation struct {
	addKey    string
	record    string
	getKey    string
	deleteKey string
	search    string
	export    bool
	stats     bool
}

func run(cfg toolConfig, doc string, op operation) error {
	ctx := context.Background()

	env, err := environment.Initialize(cfg.Name, doc, cfg.Verbose, driverOptions()...)
	if err != nil {
		return err
	}
	defer env.Destroy()

	if err := seedDefaultConfig(ctx, env, cfg.Sources); err != nil {
		return fmt.Errorf("seed repository: %w", err)
	}

	engine, err := env.Engine(ctx)
	if err != nil {
		return err
	}

	switch {
	case op.addKey != "":
		key, err := splitKey(op.addKey)
		if err != nil {
			return err
		}
		if op.record == "" {
			return fmt.Errorf("-add requires -record with the definition JSON")
		}
		res, err := engine.AddRecord(ctx, key, op.record, szruntime.WithInfo)
		if err != nil {
			return err
		}
		fmt.Println(prettyJSON(res))

	case op.getKey != "":
		key, err := splitKey(op.getKey)
		if err != nil {
			return err
		}
		res, err := engine.GetEntity(ctx, szruntime.ByRecord(key.DataSource, key.RecordID), szruntime.EntityDefaultFlags)
		if err != nil {
			return err
		}
		fmt.Println(prettyJSON(res))

	case op.deleteKey != "":
		key, err := splitKey(op.deleteKey)
		if err != nil {
			return err
		}
		res, err := engine.DeleteRecord(ctx, key, szruntime.WithInfo)
		if err != nil {
			return err
		}
		fmt.Println(prettyJSON(res))

	case op.search != "":
		res, err := engine.SearchByAttributes(ctx, op.search, "", szruntime.SearchByAttributesDefaultFlags)
		if err != nil {
			return err
		}
		fmt.Println(prettyJSON(res))

	case op.export:
		return exportEntities(ctx, engine)

	case op.stats:
		res, err := engine.GetStats(ctx)
		if err != nil {
			return err
		}
		fmt.Println(prettyJSON(res))

	default:
		return printOverview(ctx, env)
	}
	return nil
}

// driverOptions installs the in-process emulator when no real native driver
// has been registered.
func driverOptions() []environment.Option {
	if native.Default() != nil {
		return nil
	}
	return []environment.Option{environment.WithAPI(emulator.New())}
}

// seedDefaultConfig makes a fresh repository usable: when no default
// configuration exists yet, one is created, the requested data sources are
// registered and the result becomes the default.
func seedDefaultConfig(ctx context.Context, env *environment.Environment, sources []string) error {
	mgr, err := env.ConfigManager(ctx)
	if err != nil {
		return err
	}
	id, err := mgr.GetDefaultConfigID(ctx)
	if err != nil {
		return err
	}
	if id != 0 {
		return nil
	}

	cfg, err := mgr.CreateConfig(ctx)
	if err != nil {
		return err
	}
	defer cfg.Close()
	for _, code := range sources {
		if _, err := cfg.RegisterDataSource(ctx, code); err != nil {
			return err
		}
	}
	definition, err := cfg.Export(ctx)
	if err != nil {
		return err
	}
	_, err = mgr.SetDefaultConfig(ctx, definition, "szrun seed")
	return err
}

func exportEntities(ctx context.Context, engine *environment.Engine) error {
	handle, err := engine.ExportJSONEntityReport(ctx, szruntime.ExportDefaultFlags)
	if err != nil {
		return err
	}
	defer engine.CloseExport(ctx, handle)
	for {
		line, err := engine.FetchNext(ctx, handle)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		fmt.Print(line)
	}
}

func printOverview(ctx context.Context, env *environment.Environment) error {
	product, err := env.Product(ctx)
	if err != nil {
		return err
	}
	version, err := product.GetVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Product: %s\n", version)

	configID, err := env.ActiveConfigID(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Active config: %d\n", configID)

	mgr, err := env.ConfigManager(ctx)
	if err != nil {
		return err
	}
	cfg, err := mgr.CreateConfigFromID(ctx, configID)
	if err != nil {
		return err
	}
	defer cfg.Close()
	registry, err := cfg.GetDataSourceRegistry(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nData sources:\n%s\n", prettyJSON(registry))
	return nil
}

func splitKey(arg string) (szruntime.RecordKey, error) {
	ds, id, ok := strings.Cut(arg, ":")
	if !ok || ds == "" || id == "" {
		return szruntime.RecordKey{}, fmt.Errorf("record key must be DATASOURCE:RECORDID, got %q", arg)
	}
	return szruntime.RecordKey{DataSource: ds, RecordID: id}, nil
}

func prettyJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}
