package epoch

import (
	"context"
	"sync"
	"testing"
)

func TestMemory_LazyInit(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	v, err := s.Current(ctx, "u1")
	if err != nil || v != 1 {
		t.Fatalf("Current on fresh subject: %d, %v", v, err)
	}
	// repeated reads stay at 1
	v, _ = s.Current(ctx, "u1")
	if v != 1 {
		t.Fatalf("Current changed without a bump: %d", v)
	}
}

func TestMemory_BumpInvalidatesOnlyThatSubject(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.Current(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Current(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	v, err := s.Bump(ctx, "a")
	if err != nil || v != 2 {
		t.Fatalf("Bump: %d, %v", v, err)
	}

	va, _ := s.Current(ctx, "a")
	vb, _ := s.Current(ctx, "b")
	if va != 2 || vb != 1 {
		t.Fatalf("bump leaked across subjects: a=%d b=%d", va, vb)
	}
}

func TestMemory_BumpOnFreshSubject(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	v, err := s.Bump(context.Background(), "fresh")
	if err != nil || v != 2 {
		t.Fatalf("Bump on fresh subject: %d, %v (implicit 1 must still be invalidated)", v, err)
	}
}

func TestMemory_ConcurrentBumpsStrictlyIncrease(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			if _, err := s.Bump(ctx, "u"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	v, _ := s.Current(ctx, "u")
	if v != 1+n {
		t.Fatalf("lost bumps: %d", v)
	}
}
