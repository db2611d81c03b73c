package lua

import (
	"context"
	stderrors "errors"

	glua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/mminer/plume/errors"
	"github.com/mminer/plume/wire"
)

// runtime is one gopher-lua state serving a single run.
type runtime struct {
	guest    *Lua
	L        *glua.LState
	fn       *glua.LFunction
	budget   *budget
	out      printBuffer
	maxDepth int
	ret      glua.LValue
	closed   bool
}

func (rt *runtime) Compile(script string) error {
	proto, err := rt.guest.getCompiled(script)
	if err != nil {
		return err
	}
	rt.fn = rt.L.NewFunctionFromProto(proto)
	return nil
}

func (rt *runtime) BindGlobal(name string, v wire.Value) error {
	lv, err := toLua(rt.L, v)
	if err != nil {
		return err
	}
	rt.L.SetGlobal(name, lv)
	return nil
}

func (rt *runtime) InstallStepHook(ctx context.Context, quota uint64) {
	rt.budget = installBudget(rt.L, ctx, quota)
}

func (rt *runtime) RemoveStepHook() uint64 {
	return removeBudget(rt.L, rt.budget)
}

func (rt *runtime) Invoke() (int, error) {
	if rt.fn == nil {
		return 0, errors.New(errors.PhaseLoad, errors.KindSyntax).
			Detail("no script compiled").
			Build()
	}

	base := rt.L.GetTop()
	rt.L.Push(rt.fn)
	if err := rt.L.PCall(0, glua.MultRet, nil); err != nil {
		return 0, rt.runtimeError(err)
	}
	// A protected call in tail position can catch the budget error and
	// return straight out of the chunk without another instruction.
	if err := rt.stopped(); err != nil {
		rt.L.SetTop(base)
		return 0, err
	}

	n := rt.L.GetTop() - base
	if n > 0 {
		rt.ret = rt.L.Get(base + 1)
	}
	rt.L.SetTop(base)
	return n, nil
}

// runtimeError classifies a failed call. The budget is checked first: a
// spent quota surfaces as whatever error the script was in the middle of.
func (rt *runtime) runtimeError(err error) error {
	if stop := rt.stopped(); stop != nil {
		return stop
	}

	msg := err.Error()
	var apiErr *glua.ApiError
	if stderrors.As(err, &apiErr) {
		if apiErr.Type == glua.ApiErrorPanic {
			Logger().Warn("recovered panic in script call", zap.String("panic", msg))
		}
		if apiErr.Object != nil {
			msg = apiErr.Object.String()
		}
	}
	return errors.New(errors.PhaseRuntime, errors.KindScriptError).
		Cause(err).
		Detail("%s", msg).
		Build()
}

// stopped reports a spent budget or a done parent context.
func (rt *runtime) stopped() error {
	if rt.budget == nil {
		return nil
	}
	if rt.budget.exhausted {
		return errors.New(errors.PhaseRuntime, errors.KindQuotaExceeded).
			Detail("script used all %d steps", rt.budget.limit).
			Build()
	}
	if ctxErr := rt.budget.Context.Err(); ctxErr != nil {
		return errors.New(errors.PhaseRuntime, errors.KindCancelled).
			Cause(ctxErr).
			Detail("stopped after %d steps", rt.budget.used).
			Build()
	}
	return nil
}

func (rt *runtime) ReturnValue() (wire.Value, error) {
	return fromLua(rt.ret, 0, rt.maxDepth)
}

func (rt *runtime) Printed() string {
	return rt.out.String()
}

func (rt *runtime) Close() {
	if rt.closed {
		return
	}
	rt.closed = true
	if rt.out.truncated {
		Logger().Debug("print output truncated", zap.Int("limit", rt.out.limit))
	}
	rt.L.Close()
}
