// Package szruntime provides lifecycle and configuration management for a
// native entity-resolution engine.
//
// The engine itself is a closed-source library reached through a foreign
// function boundary. This package and its subpackages own everything around
// that boundary: the process-wide environment singleton, typed hub handles
// for the engine subsystems, configuration document management, and the
// sanitization of raw native error buffers into inspectable error values.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	szruntime/           Root package with shared ids, record keys and flags
//	├── environment/     High-level API: Environment lifecycle and hubs
//	├── native/          Low-level call contract and serialized call plumbing
//	├── settings/        Engine settings document parsing and building
//	├── errors/          Structured error types and native buffer sanitizing
//	└── emulator/        Deterministic in-process engine for tests and demos
//
// # Quick Start
//
// Initialize an environment and manage configuration:
//
//	env, err := environment.Initialize("my-app", settings, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Destroy()
//
//	cfgMgr, err := env.ConfigManager(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, err := cfgMgr.CreateConfig(ctx)
//	added, err := cfg.RegisterDataSource(ctx, "CUSTOMERS")
//	definition, err := cfg.Export(ctx)
//
//	id, err := cfgMgr.RegisterConfig(ctx, definition, "with CUSTOMERS")
//	err = cfgMgr.SetDefaultConfigID(ctx, id)
//
// # Lifecycle
//
// Exactly one live Environment exists per process. Destroy tears down the
// native engine and invalidates every hub issued by that Environment; a new
// Environment may then be initialized, starting the next generation. Hub
// methods called after Destroy fail with a not-ready error, never a crash.
//
// # Thread Safety
//
// Environment and the hubs are safe for concurrent use. Every native call is
// serialized on a single mutex owned by the environment's native handle, and
// Destroy waits out in-flight calls before tearing the engine down. Config
// documents are not safe for concurrent use by multiple goroutines.
//
// # Drivers
//
// The native boundary is the native.API interface. Production deployments
// install a driver backed by the engine's shared library; the emulator
// package provides a pure-Go implementation with the same observable
// contract, backed by an embedded SQLite repository, so this layer can be
// exercised without the engine installed. The emulator performs no entity
// resolution: every record is its own entity.
package szruntime
