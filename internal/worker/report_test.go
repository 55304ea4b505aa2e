package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtlprog/treasury/internal/domain"
)

type mockOverviewGenerator struct {
	callCount atomic.Int32
	threshold atomic.Int64
	err       error
}

func (m *mockOverviewGenerator) GetGlobalOverview(_ context.Context, staleThreshold time.Duration) (domain.GlobalOverview, error) {
	m.callCount.Add(1)
	m.threshold.Store(int64(staleThreshold))
	if m.err != nil {
		return domain.GlobalOverview{}, m.err
	}
	return domain.GlobalOverview{
		Networks: []domain.NetworkMetrics{{
			NetworkName: "ETH",
			Status:      domain.StatusOK,
			Equity:      []domain.AssetAmount{{Asset: "ETH", Raw: domain.NewRawAmount(-1), Decimals: 18, Amount: "-0.000000000000000001"}},
		}},
	}, nil
}

type mockObserver struct {
	callCount atomic.Int32
}

func (m *mockObserver) ObserveOverview(_ domain.GlobalOverview) {
	m.callCount.Add(1)
}

type mockHook struct {
	callCount atomic.Int32
	err       error
}

func (m *mockHook) Export(_ context.Context, _ domain.GlobalOverview) error {
	m.callCount.Add(1)
	return m.err
}

func TestReportWorkerRunsAndShutdown(t *testing.T) {
	gen := &mockOverviewGenerator{}
	obs := &mockObserver{}
	hook := &mockHook{}
	w := NewReportWorker(gen, 50*time.Millisecond, 5*time.Minute, obs, hook)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := gen.callCount.Load(); got < 1 {
		t.Errorf("call count = %d, want >= 1", got)
	}
	if got := time.Duration(gen.threshold.Load()); got != 5*time.Minute {
		t.Errorf("stale threshold = %v, want 5m", got)
	}
	if obs.callCount.Load() != gen.callCount.Load() {
		t.Errorf("observer calls = %d, generator calls = %d", obs.callCount.Load(), gen.callCount.Load())
	}
	if hook.callCount.Load() != gen.callCount.Load() {
		t.Errorf("hook calls = %d, generator calls = %d", hook.callCount.Load(), gen.callCount.Load())
	}
}

func TestReportWorkerSkipsHookOnFailure(t *testing.T) {
	gen := &mockOverviewGenerator{err: errors.New("db down")}
	obs := &mockObserver{}
	hook := &mockHook{}
	w := NewReportWorker(gen, time.Hour, 0, obs, hook)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if gen.callCount.Load() != 1 {
		t.Errorf("call count = %d, want 1", gen.callCount.Load())
	}
	if obs.callCount.Load() != 0 || hook.callCount.Load() != 0 {
		t.Error("observer and hook must not run after a failed generation")
	}
}

func TestReportWorkerNilOptionalDeps(t *testing.T) {
	gen := &mockOverviewGenerator{}
	w := NewReportWorker(gen, time.Hour, 0, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if gen.callCount.Load() != 1 {
		t.Errorf("call count = %d, want 1", gen.callCount.Load())
	}
}

func TestReportWorkerHookErrorDoesNotStop(t *testing.T) {
	gen := &mockOverviewGenerator{}
	hook := &mockHook{err: errors.New("sheets unavailable")}
	w := NewReportWorker(gen, 20*time.Millisecond, 0, nil, hook)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := gen.callCount.Load(); got < 2 {
		t.Errorf("call count = %d, want >= 2", got)
	}
}
