package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) SweepExpired() int {
	s.calls.Add(1)
	return 0
}

type fixedLister struct {
	ids []string
	err error
}

func (l fixedLister) List() ([]string, error) { return l.ids, l.err }

func TestStartCollector_SweepsAndCounts(t *testing.T) {
	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartCollector(ctx, sweeper, fixedLister{ids: []string{"a", "b", "c"}}, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("collector did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := testutil.ToFloat64(VaultFiles); got != 3 {
		t.Errorf("VaultFiles = %v, want 3", got)
	}
}

func TestCollect_ListErrorKeepsGauge(t *testing.T) {
	VaultFiles.Set(7)
	collect(&countingSweeper{}, fixedLister{err: errors.New("boom")})
	if got := testutil.ToFloat64(VaultFiles); got != 7 {
		t.Errorf("VaultFiles = %v, want unchanged 7", got)
	}
}
