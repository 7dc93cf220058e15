// Package telemetry wires OpenTelemetry tracing and metrics for ragctl.
//
// Telemetry is off by default. When enabled, spans and metrics are exported
// over OTLP (gRPC or HTTP) to a collector:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Exporter failures never stop ingestion; the instance reports itself as
// degraded and falls back to the global no-op providers.
package telemetry
