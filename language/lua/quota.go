package lua

import (
	"context"
	"errors"

	glua "github.com/yuin/gopher-lua"
)

var errQuotaExceeded = errors.New("step quota exceeded")

var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// budget is a context.Context that counts steps. gopher-lua polls Done
// once before each VM instruction of a state that carries a context, so
// every poll is one step. Once the limit is reached Done stays closed and
// every later instruction raises.
//
// A budget belongs to one state and is only touched by the goroutine
// running it.
type budget struct {
	context.Context
	limit     uint64
	used      uint64
	exhausted bool
}

func newBudget(parent context.Context, limit uint64) *budget {
	if parent == nil {
		parent = context.Background()
	}
	return &budget{Context: parent, limit: limit}
}

func (b *budget) Done() <-chan struct{} {
	if b.exhausted {
		return closedDone
	}
	if b.used >= b.limit {
		b.exhausted = true
		return closedDone
	}
	b.used++
	return b.Context.Done()
}

func (b *budget) Err() error {
	if b.exhausted {
		return errQuotaExceeded
	}
	return b.Context.Err()
}

// installBudget arms L with a fresh budget of quota steps.
func installBudget(L *glua.LState, parent context.Context, quota uint64) *budget {
	b := newBudget(parent, quota)
	L.SetContext(b)
	return b
}

// removeBudget restores the unmetered main loop and returns the steps the
// budget counted. b may be nil.
func removeBudget(L *glua.LState, b *budget) uint64 {
	if L.Context() != nil {
		L.RemoveContext()
	}
	if b == nil {
		return 0
	}
	return b.used
}
