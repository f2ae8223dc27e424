package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// hostCallFuelCost is the fuel charged to a single host capability call.
// wazero does not expose deterministic instruction-level fuel metering the
// way wasmtime/wasmer do, so fuel here is approximated as a budget of
// host-boundary crossings rather than executed instructions. Consequence: a
// guest that never crosses the host boundary (a pure-compute tight loop)
// consumes zero fuel and can never trip FuelExhausted, regardless of
// fuel_limit. It is bounded only by the wall-clock timeout, surfacing as
// ExecutionTimeout instead. Documented as an Open Question resolution in
// DESIGN.md.
const hostCallFuelCost = 1000

// budget tracks the fuel and memory limits for a single invocation and is
// shared between the engine's host call thunks and its memory watchdog.
type budget struct {
	fuelLimit uint64
	fuelUsed  atomic.Uint64

	memoryLimitBytes uint64
	memoryExceeded   atomic.Bool

	fuelExhausted atomic.Bool
}

func newBudget(fuelLimit uint64, memoryLimitMiB uint64) *budget {
	return &budget{
		fuelLimit:        fuelLimit,
		memoryLimitBytes: memoryLimitMiB * 1024 * 1024,
	}
}

// consume charges cost fuel and reports whether the budget is exhausted.
func (b *budget) consume(cost uint64) bool {
	used := b.fuelUsed.Add(cost)
	if used > b.fuelLimit {
		b.fuelExhausted.Store(true)
		return false
	}
	return true
}

func (b *budget) consumed() uint64 {
	used := b.fuelUsed.Load()
	if used > b.fuelLimit {
		return b.fuelLimit
	}
	return used
}

// memorySampler polls a module's memory size at a fixed interval and flags
// memoryExceeded the first time it observes the linear memory grown past the
// step's configured cap, closing the instance so the blocked Call returns.
// wazero's RuntimeConfig.WithMemoryLimitPages applies a single ceiling to an
// entire Runtime, which is shared across concurrent invocations with
// differing per-step limits (see DESIGN.md); this watchdog retrofits a
// per-invocation cap on top of that shared runtime ceiling.
type memorySampler struct {
	stop chan struct{}
	done chan struct{}
}

func startMemorySampler(ctx context.Context, sizeBytes func() uint64, limitBytes uint64, onExceeded func()) *memorySampler {
	m := &memorySampler{stop: make(chan struct{}), done: make(chan struct{})}
	if limitBytes == 0 {
		close(m.done)
		return m
	}
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if sizeBytes() > limitBytes {
					onExceeded()
					return
				}
			}
		}
	}()
	return m
}

func (m *memorySampler) Stop() {
	close(m.stop)
	<-m.done
}
