package pool

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/syncly/syncly/internal/backend"
	"github.com/syncly/syncly/internal/backend/memory"
)

// downDriver fails every operation, simulating an unreachable account.
type downDriver struct{}

func (downDriver) Capacity(ctx context.Context) (backend.Capacity, error) {
	return backend.Capacity{}, backend.ErrUnavailable
}

func (downDriver) ListObjects(ctx context.Context, filter backend.Filter) ([]backend.ObjectInfo, error) {
	return nil, backend.ErrUnavailable
}

func (downDriver) CreateObject(ctx context.Context, name, mimeType string, r io.Reader, size int64) (string, error) {
	return "", backend.ErrUnavailable
}

func (downDriver) OpenObject(ctx context.Context, id string) (backend.ObjectInfo, io.ReadCloser, error) {
	return backend.ObjectInfo{}, nil, backend.ErrUnavailable
}

func (downDriver) DeleteObject(ctx context.Context, id string) error {
	return backend.ErrUnavailable
}

func testPlanner(t *testing.T, frees map[string]int64) *Planner {
	t.Helper()
	registry := backend.NewRegistry()
	for id, free := range frees {
		registry.Register(id, memory.New(free))
	}
	return NewPlanner(registry, DefaultOpTimeout, zerolog.Nop())
}

func TestPlanPreflight(t *testing.T) {
	planner := testPlanner(t, map[string]int64{"a": 100, "b": 50})

	if _, err := planner.Plan(context.Background(), 200); !errors.Is(err, ErrInsufficientPoolSpace) {
		t.Fatalf("Plan(200) err = %v, want ErrInsufficientPoolSpace", err)
	}
	if _, err := planner.Plan(context.Background(), 150); err != nil {
		t.Fatalf("Plan(150) err = %v, want nil", err)
	}
}

func TestPlanExcludesUnavailableBackend(t *testing.T) {
	registry := backend.NewRegistry()
	registry.Register("up", memory.New(100))
	registry.Register("down", downDriver{})
	planner := NewPlanner(registry, DefaultOpTimeout, zerolog.Nop())

	// The unreachable backend contributes nothing to the pool.
	if _, err := planner.Plan(context.Background(), 101); !errors.Is(err, ErrInsufficientPoolSpace) {
		t.Fatalf("Plan(101) err = %v, want ErrInsufficientPoolSpace", err)
	}

	plan, err := planner.Plan(context.Background(), 100)
	if err != nil {
		t.Fatalf("Plan(100) err = %v", err)
	}
	if got := plan.TotalFree(); got != 100 {
		t.Fatalf("TotalFree() = %d, want 100", got)
	}
}

func TestWholeFilePicksLargest(t *testing.T) {
	planner := testPlanner(t, map[string]int64{"small": 40, "large": 90, "mid": 60})

	plan, err := planner.Plan(context.Background(), 50)
	if err != nil {
		t.Fatalf("Plan err = %v", err)
	}
	id, ok := plan.WholeFile()
	if !ok || id != "large" {
		t.Fatalf("WholeFile() = %q, %v; want \"large\", true", id, ok)
	}
}

func TestNextDrainsSmallestFirst(t *testing.T) {
	planner := testPlanner(t, map[string]int64{"a": 10, "b": 5})

	// The concrete scenario: A(10), B(5), file of 12. No single backend
	// fits, chunk 1 lands on B (5 bytes), chunk 2 on A (7 bytes).
	plan, err := planner.Plan(context.Background(), 12)
	if err != nil {
		t.Fatalf("Plan err = %v", err)
	}
	if _, ok := plan.WholeFile(); ok {
		t.Fatal("WholeFile() = true, want false for 12 bytes")
	}

	id, size, ok := plan.Next(12)
	if !ok || id != "b" || size != 5 {
		t.Fatalf("Next(12) = %q, %d, %v; want \"b\", 5, true", id, size, ok)
	}
	plan.Consume("b", 5)

	id, size, ok = plan.Next(7)
	if !ok || id != "a" || size != 7 {
		t.Fatalf("Next(7) = %q, %d, %v; want \"a\", 7, true", id, size, ok)
	}
	plan.Consume("a", 7)

	// The file is placed but "a" still has 3 bytes of headroom.
	id, size, ok = plan.Next(1)
	if !ok || id != "a" || size != 1 {
		t.Fatalf("Next(1) = %q, %d, %v; want \"a\", 1, true", id, size, ok)
	}
	plan.Consume("a", 3)

	if _, _, ok := plan.Next(1); ok {
		t.Fatal("Next(1) ok = true after pool drained, want false")
	}
}

func TestMarkFullRemovesBackend(t *testing.T) {
	planner := testPlanner(t, map[string]int64{"a": 10, "b": 5})

	plan, err := planner.Plan(context.Background(), 12)
	if err != nil {
		t.Fatalf("Plan err = %v", err)
	}
	plan.MarkFull("b")

	id, size, ok := plan.Next(12)
	if !ok || id != "a" || size != 10 {
		t.Fatalf("Next(12) = %q, %d, %v; want \"a\", 10, true", id, size, ok)
	}
	if got := plan.TotalFree(); got != 10 {
		t.Fatalf("TotalFree() = %d, want 10", got)
	}
}

func TestNextTieBreakIsStable(t *testing.T) {
	planner := testPlanner(t, map[string]int64{"b2": 5, "b1": 5, "b3": 5})

	plan, err := planner.Plan(context.Background(), 15)
	if err != nil {
		t.Fatalf("Plan err = %v", err)
	}

	// Equal free space resolves in backend-ID order.
	var order []string
	for remaining := int64(15); remaining > 0; {
		id, size, ok := plan.Next(remaining)
		if !ok {
			t.Fatal("Next ran out of backends")
		}
		order = append(order, id)
		plan.Consume(id, size)
		remaining -= size
	}
	want := []string{"b1", "b2", "b3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("placement order = %v, want %v", order, want)
		}
	}
}
