/*
Package metrics exports objclient activity as Prometheus metrics.

# Architecture

	┌──────────────┐   RecordRequest, RecordBytes,      ┌─────────────────┐
	│  s3.Client   │ ─ RecordSignerSelection, ... ───▶  │                 │
	└──────────────┘                                    │    Collector    │
	┌──────────────┐   ObserveCompletionAttempt         │                 │
	│  multipart   │ ─────────────────────────────────▶ │   (registry)    │
	└──────────────┘                                    │                 │
	┌──────────────┐   GaugeFunc / CounterFunc          │                 │
	│ RegionCache  │ ◀───────────────────────────────── │                 │
	└──────────────┘                                    └────────┬────────┘
	                                                             │
	                                                   /metrics, /health

The Collector satisfies s3.Recorder and multipart.Observer, so a single
instance is passed to s3.WithMetrics:

	collector, err := metrics.NewCollector(&metrics.Config{Address: ":9090"}, logger)
	if err != nil {
		return err
	}
	client, err := s3.NewClient(cfg, s3.WithMetrics(collector))
	if err != nil {
		return err
	}
	_ = collector.RegisterRegionCache(client.RegionCache())
	_ = collector.Start(ctx)

# Exported Series

	objclient_requests_total{operation,status}
	objclient_request_duration_seconds{operation}
	objclient_transferred_bytes_total{operation}
	objclient_signer_selections_total{signer,step}
	objclient_region_probes_total{status}
	objclient_integrity_failures_total{operation}
	objclient_multipart_completion_attempts_total{outcome}
	objclient_region_cache_{entries,capacity,hits_total,misses_total,evictions_total}

The status label is "success" or the error code of the failure, which keeps
cardinality bounded.
*/
package metrics
