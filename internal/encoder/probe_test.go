package encoder

import (
	"context"
	"testing"
	"time"

	"github.com/eurogig/webtimelapse/internal/logging"
)

type countingProber struct {
	calls int
	err   error
}

func (p *countingProber) Probe(context.Context) (*Capabilities, error) {
	p.calls++
	if p.err != nil {
		return &Capabilities{ProbedAt: time.Now()}, p.err
	}
	return &Capabilities{Available: true, Version: "6.1", ProbedAt: time.Now()}, nil
}

func TestCachedProbe_CachesWithinTTL(t *testing.T) {
	p := &countingProber{}
	c := NewCachedProbe(p, logging.Discard())

	if c.Peek() != nil {
		t.Fatal("Peek() before any probe should be nil")
	}
	c.Get(context.Background())
	caps := c.Get(context.Background())

	if p.calls != 1 {
		t.Errorf("probe ran %d times, want 1", p.calls)
	}
	if !caps.Available {
		t.Errorf("Get() = %+v", caps)
	}

	c.Invalidate()
	c.Get(context.Background())
	if p.calls != 2 {
		t.Errorf("probe ran %d times after Invalidate, want 2", p.calls)
	}
}

func TestCachedProbe_CachesUnavailable(t *testing.T) {
	p := &countingProber{err: ErrEncoderUnavailable}
	c := NewCachedProbe(p, logging.Discard())

	caps := c.Get(context.Background())
	if caps == nil || caps.Available {
		t.Fatalf("Get() = %+v, want unavailable capabilities", caps)
	}
	c.Get(context.Background())
	if p.calls != 1 {
		t.Errorf("probe ran %d times, want 1", p.calls)
	}
}
