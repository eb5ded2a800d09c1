package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected disabled metrics to stay at 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	for i := 0; i < 3; i++ {
		m.Inc(MetricLoginFailure)
	}
	if got := m.Value(MetricLoginFailure); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected untouched counter to stay at 0, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := m.Value(MetricLoginSuccess); got != goroutines*perGoroutine {
		t.Fatalf("expected %d, got %d", goroutines*perGoroutine, got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{3 * time.Millisecond, 0},
		{8 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{80 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, s := range samples {
		m.Observe(MetricLoginLatency, s.d)
	}

	buckets := m.Snapshot().Histograms[MetricLoginLatency]
	if len(buckets) == 0 {
		t.Fatal("expected a latency histogram in the snapshot")
	}
	for _, s := range samples {
		if buckets[s.bucket] == 0 {
			t.Fatalf("expected %s to land in bucket %d, histogram %v", s.d, s.bucket, buckets)
		}
	}
}

func TestMetricsHistogramDisabledByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricLoginLatency, 10*time.Millisecond)
	if hist := m.Snapshot().Histograms[MetricLoginLatency]; hist != nil {
		t.Fatal("expected no histogram without EnableLatencyHistograms")
	}
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRegisterSuccess)

	snap := m.Snapshot()
	m.Inc(MetricRegisterSuccess)

	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatalf("expected snapshot to hold 1, got %d", snap.Counters[MetricRegisterSuccess])
	}
	if m.Value(MetricRegisterSuccess) != 2 {
		t.Fatalf("expected live value 2, got %d", m.Value(MetricRegisterSuccess))
	}
}

func TestFacadeCountsLoginOutcomes(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	auth, _, _ := newTestAuth(t, cfg)
	ctx := context.Background()
	registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	_, _ = auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "wrong"})
	if _, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "Passw0rd!pad"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	snap := auth.MetricsSnapshot()
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 login failure, got %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 login success, got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricSessionIssued] == 0 {
		t.Fatal("expected a session issuance to be counted")
	}
}
