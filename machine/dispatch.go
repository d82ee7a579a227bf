package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mastercactapus/hkmacro/hk"
)

var (
	// ErrInvalidProgram is returned for programs with validation errors.
	ErrInvalidProgram = errors.New("program has validation errors")

	// ErrBusy is returned while another program is being sent.
	ErrBusy = errors.New("machine busy")
)

// Dispatcher sends one program at a time to an Adapter.
type Dispatcher struct {
	a   Adapter
	log *slog.Logger

	mx sync.Mutex
}

func NewDispatcher(a Adapter, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{a: a, log: log}
}

// Result describes a completed dispatch.
type Result struct {
	Statements int
	Bytes      int64
	Duration   time.Duration
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Dispatch emits p and streams it to the machine. issues must be the
// validation result of p; programs with errors are refused.
func (d *Dispatcher) Dispatch(ctx context.Context, p *hk.Program, issues []hk.Issue, opts hk.EmitOptions) (*Result, error) {
	if hk.HasErrors(issues) {
		return nil, ErrInvalidProgram
	}
	if !d.mx.TryLock() {
		return nil, ErrBusy
	}
	defer d.mx.Unlock()

	stmts := hk.EmitStatements(p, opts)
	log := d.log.With("operations", len(p.Operations), "statements", len(stmts))
	log.Info("dispatch started")

	start := time.Now()
	n, err := d.a.ReadFrom(ctxReader{ctx: ctx, r: hk.NewBuffer(&hk.StatementsReader{Statements: stmts})})
	res := &Result{Statements: len(stmts), Bytes: n, Duration: time.Since(start)}
	if err != nil {
		log.Error("dispatch failed", "sent", n, "err", err)
		return res, fmt.Errorf("dispatch: %w", err)
	}

	log.Info("dispatch complete", "bytes", n, "duration", res.Duration)
	return res, nil
}

// Close closes the underlying adapter.
func (d *Dispatcher) Close() error { return d.a.Close() }
