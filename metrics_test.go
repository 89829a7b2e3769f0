package caseauth

import (
	"context"
	"sync"
	"testing"
)

func TestMetricsCountEngineEvents(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	mustSignup(t, env, "alice@curator.example", "correct horse battery")
	if _, err := env.engine.Signup(ctx, "alice@curator.example", "another password", ""); err == nil {
		t.Fatal("expected duplicate signup to fail")
	}
	if _, err := env.engine.Signin(ctx, "alice@curator.example", "wrong password"); err == nil {
		t.Fatal("expected bad signin to fail")
	}
	if _, err := env.engine.Signin(ctx, "alice@curator.example", "correct horse battery"); err != nil {
		t.Fatalf("Signin failed: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	expect := map[MetricID]uint64{
		MetricSignupSuccess:   1,
		MetricSignupDuplicate: 1,
		MetricSigninFailure:   1,
		MetricSigninSuccess:   1,
	}
	for id, want := range expect {
		if snap[id] != want {
			t.Fatalf("metric %d: expected %d, got %d", id, want, snap[id])
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSigninSuccess)
	if len(m.Snapshot()) != 0 {
		t.Fatal("expected empty snapshot when disabled")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricSigninSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot()[MetricSigninSuccess]; got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
}

func TestMetricsIgnoresOutOfRangeID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricID(-1))
	m.Inc(metricIDCount)
	for id, v := range m.Snapshot() {
		if v != 0 {
			t.Fatalf("metric %d: expected 0, got %d", id, v)
		}
	}
}
