/*
Package metrics exposes Prometheus collectors and health endpoints for a
running drain.

Collectors are registered on the default registry in init:

	gentle_drain_rounds_total{result}
	gentle_drain_backoffs_total{reason}
	gentle_drain_round_duration_seconds
	gentle_drain_target_weight
	gentle_drain_osd_crush_weight{osd}
	gentle_drain_active_backfills
	gentle_drain_write_latency_milliseconds
	gentle_drain_weight_removed_total

Server serves them on /metrics next to /health and /ready. /ready turns ready
once the cluster answered and the scratch pool exists.
*/
package metrics
