package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "animals.create", true, 20*time.Millisecond)
	rec.Observe(ctx, "animals.create", true, 30*time.Millisecond)
	rec.Observe(ctx, "animals.create", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.DurationsMS["animals.create"]; got != 55 {
		t.Fatalf("duration total: got %v, want 55", got)
	}
	if got := snap.Results["animals.create"]["success"]; got != 2 {
		t.Fatalf("success count: got %d, want 2", got)
	}
	if got := snap.Results["animals.create"]["error"]; got != 1 {
		t.Fatalf("error count: got %d, want 1", got)
	}
	if rec.Name() == "" {
		t.Fatal("generated name should not be empty")
	}
}

func TestExpvarSnapshotIsACopy(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "op", true, time.Millisecond)
	snap := rec.Snapshot()
	snap.DurationsMS["op"] = 9999
	if got := rec.Snapshot().DurationsMS["op"]; got == 9999 {
		t.Fatal("mutating snapshot leaked into recorder")
	}
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "events.create", true, 10*time.Millisecond)
	rec.Observe(ctx, "events.create", false, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sawCounter, sawHistogram bool
	for _, fam := range families {
		switch fam.GetName() {
		case "herdcore_service_operations_total":
			sawCounter = true
			var total float64
			for _, m := range fam.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total != 2 {
				t.Fatalf("counter total: got %v, want 2", total)
			}
		case "herdcore_service_operation_duration_seconds":
			sawHistogram = true
		}
	}
	if !sawCounter || !sawHistogram {
		t.Fatalf("collectors missing: counter=%v histogram=%v", sawCounter, sawHistogram)
	}
}

func TestPrometheusRecorderDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("second register on same registry should fail")
	}
}
