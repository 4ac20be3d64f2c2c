// Package config provides configuration loading and validation for debugtel.
//
// Config groups the settings of every component: pipeline, logFiles,
// sanitizer, transport, the shared NATS connection, security (TLS) and the
// local metrics server. Keys are camelCase in every file format.
//
// # Loading
//
// Loader merges file layers onto Default() with last-wins semantics, then
// applies environment overrides:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/debugtel.yaml")
//	loader.AddLayer("configs/production.jsonc") // overrides the YAML layer
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Supported layers are .json, .jsonc/.json5 (comments and trailing commas)
// and .yaml/.yml. Duration keys accept Go duration strings plus a day
// suffix ("30s", "500ms", "1d").
//
// Layers merge per key:
//
//	base.yaml:
//	  pipeline: {batchSize: 20, uploadInterval: 10s}
//
//	override.json:
//	  {"pipeline": {"batchSize": 5}}
//
//	Result:
//	  pipeline.batchSize=5, pipeline.uploadInterval=10s
//
// # Environment Variable Overrides
//
// DEBUGTEL_* variables win over every file layer, for example:
//
//	export DEBUGTEL_ENVIRONMENT=production
//	export DEBUGTEL_TRANSPORT_KIND=nats
//	export DEBUGTEL_NATS_URLS="nats://server1:4222,nats://server2:4222"
//	export DEBUGTEL_API_ENDPOINT=https://collector.example.com/api/debug/events
//
// # Thread-Safe Access
//
// SafeConfig hands out deep copies and validates before replacing:
//
//	sc := config.NewSafeConfig(cfg)
//	current := sc.Get()
//	current.Pipeline.BatchSize = 100
//	if err := sc.Update(current); err != nil {
//		log.Printf("rejected: %v", err)
//	}
//
// # Security
//
// File loading enforces:
//   - File size limits (10MB max) to prevent memory exhaustion
//   - Nesting depth limits (100 levels max) for every format
//   - Path validation to prevent directory traversal
//   - Regular file checks (no directories or device files)
package config
