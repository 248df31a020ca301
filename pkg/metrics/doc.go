// Package metrics provides observability for the quantum-safe key simulator:
// a leveled structured logger, a latency histogram used by the benchmark
// harness, a tracing facade with an OpenTelemetry adapter (build tag "otel"),
// and a counter collector for QKD runs and key-hierarchy operations.
//
// Nothing in this package ever receives secret material; callers log ids,
// generations, sizes and verdicts only.
package metrics
