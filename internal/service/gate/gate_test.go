package gate

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCooldown_AcceptsOncePerWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := NewCooldownWithClock(5*time.Second, clock.Now)

	if !g.TryAccept() {
		t.Fatal("First detection should be accepted")
	}
	if g.TryAccept() {
		t.Error("Second detection in the same window should be ignored")
	}

	clock.Advance(4999 * time.Millisecond)
	if g.TryAccept() {
		t.Error("Detection before the window ends should be ignored")
	}

	clock.Advance(time.Millisecond)
	if !g.TryAccept() {
		t.Error("Detection at the end of the window should be accepted")
	}
}

func TestCooldown_WindowMeasuredFromAcceptance(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	g := NewCooldownWithClock(5*time.Second, clock.Now)

	clock.Advance(10 * time.Second)
	if !g.TryAccept() {
		t.Fatal("Expected acceptance")
	}
	if want := clock.Now().Add(5 * time.Second); !g.UnblockAt().Equal(want) {
		t.Errorf("UnblockAt = %v, expected %v", g.UnblockAt(), want)
	}
	if g.Active() {
		t.Error("Gate should be blocked right after acceptance")
	}
}

func TestCooldown_AtMostOnePerRollingWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	window := 5 * time.Second
	g := NewCooldownWithClock(window, clock.Now)
	rng := rand.New(rand.NewSource(42))

	var accepted []time.Time
	for i := 0; i < 2000; i++ {
		clock.Advance(time.Duration(rng.Intn(700)) * time.Millisecond)
		if g.TryAccept() {
			accepted = append(accepted, clock.Now())
		}
	}

	if len(accepted) < 2 {
		t.Fatalf("Expected several acceptances, got %d", len(accepted))
	}
	for i := 1; i < len(accepted); i++ {
		if gap := accepted[i].Sub(accepted[i-1]); gap < window {
			t.Fatalf("Acceptances %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestCooldown_ConcurrentCallers(t *testing.T) {
	g := NewCooldown(time.Hour)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAccept() {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Errorf("Expected exactly one acceptance, got %d", accepted.Load())
	}
}

func TestCooldown_Close(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	g := NewCooldownWithClock(time.Second, clock.Now)

	g.TryAccept()
	g.Close()
	clock.Advance(time.Minute)

	if g.TryAccept() {
		t.Error("Closed gate must not accept")
	}
	if g.Active() {
		t.Error("Closed gate must not be active")
	}
}

func TestCooldown_DefaultWindow(t *testing.T) {
	g := NewCooldown(0)
	if g.window != DefaultCooldown {
		t.Errorf("Expected default window %v, got %v", DefaultCooldown, g.window)
	}
}

func TestPassthrough(t *testing.T) {
	p := &Passthrough{}
	for i := 0; i < 3; i++ {
		if !p.TryAccept() {
			t.Fatal("Passthrough should accept every detection")
		}
	}
	p.Close()
	if p.TryAccept() {
		t.Error("Closed passthrough must not accept")
	}
}
