package pointer

import (
	"math"
	"reflect"
	"sync"
	"testing"
	"testing/quick"
)

func TestNewCentered(t *testing.T) {
	s := New(1200, 801)
	got := s.Snapshot()
	want := Snapshot{X: 600, Y: 400}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fresh state mismatch:\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestScenarios(t *testing.T) {
	s := New(100, 100)

	// A
	s.Update(1000, 10, -5, 0)
	want := Snapshot{X: 60, Y: 45, RawDx: 10, RawDy: -5, TotalX: 10, TotalY: -5, EventCount: 1, LastTimestamp: 1000}
	if got := s.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("scenario A:\ngot:  %+v\nwant: %+v", got, want)
	}

	// B: x clamps to the right edge, totals keep counting.
	s.Update(2000, 1000, 0, 0)
	want = Snapshot{X: 100, Y: 45, RawDx: 1000, RawDy: 0, TotalX: 1010, TotalY: -5, EventCount: 2, LastTimestamp: 2000}
	if got := s.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("scenario B:\ngot:  %+v\nwant: %+v", got, want)
	}

	// C: reset leaves the last delta, count and timestamp alone.
	s.Reset()
	want = Snapshot{X: 50, Y: 50, RawDx: 1000, RawDy: 0, TotalX: 0, TotalY: 0, EventCount: 2, LastTimestamp: 2000}
	if got := s.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("scenario C:\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New(100, 100)
	s.Update(1, 3, 4, 0)

	snap := s.Snapshot()
	snap.X = -1
	snap.TotalX = 99

	s.Update(2, 1, 1, 0)
	if snap.EventCount != 1 || snap.LastTimestamp != 1 {
		t.Fatalf("snapshot changed after update: %+v", snap)
	}
	if got := s.Snapshot(); got.X != 54 || got.TotalX != 4 {
		t.Fatalf("internal state affected by snapshot mutation: %+v", got)
	}
}

func TestExtremeDeltasClamp(t *testing.T) {
	s := New(640, 480)

	s.Update(1, math.MaxInt, math.MinInt, 0)
	if got := s.Snapshot(); got.X != 640 || got.Y != 0 {
		t.Fatalf("expected (640, 0), got (%d, %d)", got.X, got.Y)
	}

	s.Update(2, math.MinInt, math.MaxInt, 0)
	if got := s.Snapshot(); got.X != 0 || got.Y != 480 {
		t.Fatalf("expected (0, 480), got (%d, %d)", got.X, got.Y)
	}
}

func TestZeroSizedScreen(t *testing.T) {
	s := New(-3, 0)
	s.Update(1, 5, -5, 0)
	got := s.Snapshot()
	if got.X != 0 || got.Y != 0 {
		t.Fatalf("expected position pinned at origin, got (%d, %d)", got.X, got.Y)
	}
	if w, h := s.Bounds(); w != 0 || h != 0 {
		t.Fatalf("expected 0x0 bounds, got %dx%d", w, h)
	}
}

type delta struct {
	Dx, Dy int16
}

func TestTotalsMatchSumOfDeltas(t *testing.T) {
	f := func(resetFirst bool, deltas []delta) bool {
		s := New(1920, 1080)
		if resetFirst {
			s.Update(1, 77, -13, 0)
			s.Reset()
		}

		var sumX, sumY int64
		for i, d := range deltas {
			s.Update(uint64(i), int(d.Dx), int(d.Dy), 0)
			sumX += int64(d.Dx)
			sumY += int64(d.Dy)

			snap := s.Snapshot()
			if snap.X < 0 || snap.X > 1920 || snap.Y < 0 || snap.Y > 1080 {
				return false
			}
		}

		snap := s.Snapshot()
		return snap.TotalX == sumX && snap.TotalY == sumY
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestResetProperty(t *testing.T) {
	f := func(deltas []delta, ts uint64) bool {
		s := New(300, 200)
		for _, d := range deltas {
			s.Update(ts, int(d.Dx), int(d.Dy), 0)
		}
		before := s.Snapshot()
		s.Reset()
		after := s.Snapshot()

		return after.X == 150 && after.Y == 100 &&
			after.TotalX == 0 && after.TotalY == 0 &&
			after.RawDx == before.RawDx && after.RawDy == before.RawDy &&
			after.EventCount == before.EventCount &&
			after.LastTimestamp == before.LastTimestamp
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

// Every producer applies dx=1, dy=2, so any snapshot taken between whole
// updates satisfies TotalX == EventCount and TotalY == 2*EventCount.
func TestConcurrentSnapshotsAreConsistent(t *testing.T) {
	const (
		producers = 4
		perWorker = 5000
	)

	s := New(1<<20, 1<<20)
	done := make(chan struct{})

	var readers sync.WaitGroup
	readers.Add(1)
	var torn int
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			snap := s.Snapshot()
			if snap.TotalX != int64(snap.EventCount) || snap.TotalY != 2*int64(snap.EventCount) {
				torn++
			}
		}
	}()

	var writers sync.WaitGroup
	for p := 0; p < producers; p++ {
		writers.Add(1)
		go func(p int) {
			defer writers.Done()
			for i := 0; i < perWorker; i++ {
				s.Update(uint64(p*perWorker+i), 1, 2, 0)
			}
		}(p)
	}
	writers.Wait()
	close(done)
	readers.Wait()

	if torn != 0 {
		t.Fatalf("observed %d inconsistent snapshots", torn)
	}
	snap := s.Snapshot()
	if snap.EventCount != producers*perWorker {
		t.Fatalf("expected %d events, got %d", producers*perWorker, snap.EventCount)
	}
	if snap.TotalX != producers*perWorker || snap.TotalY != 2*producers*perWorker {
		t.Fatalf("unexpected totals: %+v", snap)
	}
}
