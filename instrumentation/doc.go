// Package instrumentation provides OpenTelemetry instrumentation for the
// authorization server: counters and histograms for the OAuth endpoints,
// observable gauges for storage sizes, and span helpers for tracing
// request flows.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "driftmap-oauth",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// When Enabled is false (or when no Instrumentation is configured at all)
// every instrument is backed by a no-op provider, so instrumented code
// paths cost nothing in deployments that do not collect telemetry.
//
// Exporter wiring is the embedding application's concern: pass a custom
// Resource and swap providers as needed before handing the instance to the
// server.
package instrumentation
