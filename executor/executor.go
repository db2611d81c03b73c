package executor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mminer/plume/errors"
	"github.com/mminer/plume/wire"
)

const tracerName = "github.com/mminer/plume/executor"

// Result holds the output and metadata from one run.
type Result struct {
	// Output is the wire encoding of the script's first return value.
	// It is nil unless State is StateCompleted.
	Output []byte
	// Printed is what the script wrote with print, capped by WithMaxOutput.
	Printed string
	// Steps is the number of interpreter steps the script consumed.
	Steps uint64
	// Returned is how many values the script returned. Only the first is
	// encoded.
	Returned int
	State    State
	Duration time.Duration
	Error    error
}

// Phase returns the phase that failed, or "" for a completed run.
func (r Result) Phase() errors.Phase { return errors.PhaseOf(r.Error) }

// Kind returns the kind of failure, or "" for a completed run.
func (r Result) Kind() errors.Kind { return errors.KindOf(r.Error) }

// Executor runs untrusted scripts of one guest language. It is safe for
// concurrent use: every run gets its own runtime.
type Executor struct {
	guest  Guest
	cfg    executorConfig
	logger *zap.Logger
	tracer trace.Tracer
	mu     sync.RWMutex
	closed bool
}

// New creates an Executor for the given guest.
func New(guest Guest, opts ...ExecutorOption) (*Executor, error) {
	if guest == nil {
		return nil, fmt.Errorf("executor: nil guest")
	}

	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.logger
	if log == nil {
		log = Logger()
	}
	tp := cfg.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	e := &Executor{
		guest:  guest,
		cfg:    cfg,
		logger: log.With(zap.String("guest", guest.Name())),
		tracer: tp.Tracer(tracerName),
	}

	if len(cfg.precompile) > 0 {
		pc, ok := guest.(Precompiler)
		if !ok {
			return nil, fmt.Errorf("guest %s cannot precompile", guest.Name())
		}
		for i, script := range cfg.precompile {
			if err := pc.Precompile(script); err != nil {
				return nil, fmt.Errorf("precompile script %d: %w", i, err)
			}
		}
		e.logger.Debug("precompiled scripts", zap.Int("count", len(cfg.precompile)))
	}

	return e, nil
}

// Guest returns the guest this executor runs.
func (e *Executor) Guest() Guest { return e.guest }

// Run executes script with input bound to the global named binding and
// at most quota interpreter steps. input must hold exactly one wire value.
//
// Run never panics on script behavior and never returns a partial
// Output: either State is StateCompleted and Output holds the encoded
// first return value, or State is StateFailed and Error says why.
func (e *Executor) Run(ctx context.Context, script, binding string, input []byte, quota uint64, opts ...Option) Result {
	start := time.Now()
	cfg := e.runConfig(opts)

	ctx, span := e.tracer.Start(ctx, "plume.run", trace.WithAttributes(
		attribute.String("plume.guest", e.guest.Name()),
		attribute.String("plume.binding", binding),
		attribute.Int64("plume.quota", int64(min(quota, 1<<63-1))),
		attribute.Int("plume.input_bytes", len(input)),
	))
	defer span.End()

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	r := &run{
		state: StateCreated,
		log:   e.logger.With(zap.String("binding", binding), zap.Uint64("quota", quota)),
		span:  span,
	}

	e.cfg.metrics.runStarted(len(input))
	result := e.execute(ctx, r, cfg, script, binding, input, quota)
	result.State = r.state
	result.Duration = time.Since(start)
	e.cfg.metrics.runFinished(e.guest.Name(), &result)

	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, string(result.Kind()))
		r.log.Debug("run failed",
			zap.Error(result.Error),
			zap.Uint64("steps", result.Steps),
			zap.Duration("duration", result.Duration))
	} else {
		span.SetAttributes(attribute.Int64("plume.steps", int64(result.Steps)))
		r.log.Debug("run completed",
			zap.Int("output_bytes", len(result.Output)),
			zap.Uint64("steps", result.Steps),
			zap.Duration("duration", result.Duration))
	}

	return result
}

func (e *Executor) execute(ctx context.Context, r *run, cfg runConfig, script, binding string, input []byte, quota uint64) (result Result) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return r.fail(errors.New(errors.PhaseLoad, errors.KindClosed).Detail("executor is closed").Build())
	}

	rt, err := e.guest.NewRuntime(RuntimeConfig{
		MaxDepth:       cfg.maxDepth,
		MaxOutputBytes: cfg.maxOutputBytes,
	})
	if err != nil {
		return r.fail(fmt.Errorf("create %s runtime: %w", e.guest.Name(), err))
	}
	defer func() {
		result.Printed = rt.Printed()
		rt.Close()
	}()

	if err := rt.Compile(script); err != nil {
		return r.fail(err)
	}
	r.transition(StateLoaded)

	value, err := wire.Decode(input, wire.WithMaxDepth(cfg.maxDepth))
	if err != nil {
		return r.fail(err)
	}
	if err := rt.BindGlobal(binding, value); err != nil {
		return r.fail(err)
	}
	r.transition(StateBound)

	r.transition(StateRunning)
	steps, nret, err := invoke(ctx, rt, quota)
	if err != nil {
		res := r.fail(err)
		res.Steps = steps
		return res
	}
	if nret > 1 {
		r.log.Debug("extra return values discarded", zap.Int("returned", nret))
	}

	out, err := rt.ReturnValue()
	if err == nil {
		var data []byte
		if data, err = wire.Encode(out, wire.WithMaxDepth(cfg.maxDepth)); err == nil {
			r.transition(StateCompleted)
			return Result{Output: data, Steps: steps, Returned: nret}
		}
	}
	res := r.fail(err)
	res.Steps = steps
	res.Returned = nret
	return res
}

// invoke runs the chunk under the step budget. The budget is removed on
// every path out, including a panic from the runtime.
func invoke(ctx context.Context, rt Runtime, quota uint64) (steps uint64, nret int, err error) {
	rt.InstallStepHook(ctx, quota)
	defer func() {
		steps = rt.RemoveStepHook()
	}()
	nret, err = rt.Invoke()
	return steps, nret, err
}

// Close marks the executor closed. Runs already in progress finish; later
// runs fail with a closed error.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if c, ok := e.guest.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// run tracks the state of one Run call.
type run struct {
	state State
	log   *zap.Logger
	span  trace.Span
}

func (r *run) transition(to State) {
	if !canTransition(r.state, to) {
		r.log.DPanic("illegal state transition",
			zap.Stringer("from", r.state),
			zap.Stringer("to", to))
		return
	}
	r.span.AddEvent(to.String())
	r.state = to
}

func (r *run) fail(err error) Result {
	from := r.state
	r.transition(StateFailed)
	r.span.SetAttributes(attribute.String("plume.failed_in", from.String()))
	return Result{Error: err}
}
