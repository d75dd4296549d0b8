package miner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screa/create2-miner/internal/logger"
	"github.com/screa/create2-miner/pkg/pattern"
	"github.com/screa/create2-miner/pkg/types"
	"github.com/screa/create2-miner/pkg/worker"
)

// DefaultPerWorkerAttempts bounds a sequential worker when no ceiling is given.
const DefaultPerWorkerAttempts = 100_000_000

// ctxCheckInterval is how many attempts a worker makes between context polls.
const ctxCheckInterval = 256

// ErrWorkerInit is returned when a worker cannot be set up. The search is
// aborted rather than run with fewer workers than requested.
var ErrWorkerInit = errors.New("worker initialisation failed")

// Config describes one search.
type Config struct {
	Factory     common.Address
	ContentHash common.Hash
	Pattern     *pattern.Pattern
	Workers     int
	MaxAttempts uint64 // 0 = unbounded
	Ceiling     types.CeilingMode
	Strategy    types.Strategy

	// StartSalts pins the starting point of each sequential worker. When
	// set it must hold exactly Workers entries.
	StartSalts []types.Salt
}

// Miner coordinates parallel workers for one factory, content hash and
// pattern. Each call to Mine is an independent search.
type Miner struct {
	config Config
	logger *logger.Logger

	// newSource is swapped in tests to simulate seeding failures
	newSource func(id int) (worker.SaltSource, error)

	current atomic.Pointer[state]
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewMiner validates cfg and creates a miner.
func NewMiner(cfg Config, log *logger.Logger) (*Miner, error) {
	if cfg.Workers < 1 {
		return nil, &types.InputError{Field: "workers", Value: fmt.Sprint(cfg.Workers), Err: types.ErrInvalidWorkers}
	}
	if cfg.Pattern == nil {
		return nil, &types.InputError{Field: "pattern", Err: types.ErrEmptyPattern}
	}
	if len(cfg.StartSalts) > 0 {
		if cfg.Strategy != types.StrategySequential {
			return nil, &types.InputError{Field: "start salts", Err: errors.New("only valid with the sequential strategy")}
		}
		if len(cfg.StartSalts) != cfg.Workers {
			return nil, &types.InputError{
				Field: "start salts",
				Err:   fmt.Errorf("%w: got %d, want one per worker (%d)", types.ErrInvalidLength, len(cfg.StartSalts), cfg.Workers),
			}
		}
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("miner")

	// An explicit ceiling is kept as given, even when it leaves a
	// sequential search unbounded.
	if cfg.Ceiling == types.CeilingAuto {
		cfg.Ceiling = types.CeilingGlobal
		if cfg.Strategy == types.StrategySequential && cfg.MaxAttempts == 0 {
			cfg.Ceiling = types.CeilingPerWorker
			cfg.MaxAttempts = DefaultPerWorkerAttempts
			log.Infow("sequential search capped per worker", "max_attempts_per_worker", cfg.MaxAttempts)
		}
	}

	m := &Miner{config: cfg, logger: log}
	m.newSource = m.defaultSource
	return m, nil
}

// Config returns the effective configuration after defaults.
func (m *Miner) Config() Config {
	return m.config
}

func (m *Miner) defaultSource(id int) (worker.SaltSource, error) {
	if len(m.config.StartSalts) > 0 {
		return worker.NewSequentialSourceFrom(m.config.StartSalts[id]), nil
	}
	return worker.NewSource(m.config.Strategy)
}

// Mine runs the search until a match, the attempt ceiling, or cancellation.
// Exhaustion is reported as StatusExhausted with a nil error.
func (m *Miner) Mine(ctx context.Context) (types.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancel = cancel
	if m.stopped {
		cancel()
	}
	m.mu.Unlock()

	workerCfg := &worker.Config{
		Factory:     m.config.Factory,
		ContentHash: m.config.ContentHash,
		Pattern:     m.config.Pattern,
	}

	// All workers are built before any goroutine starts.
	workers := make([]*worker.Worker, m.config.Workers)
	for i := range workers {
		src, err := m.newSource(i)
		if err != nil {
			return types.Outcome{}, fmt.Errorf("%w: worker %d of %d: %v", ErrWorkerInit, i, m.config.Workers, err)
		}
		workers[i] = worker.NewWorker(i, workerCfg, src)
	}

	var globalLimit, perWorker uint64
	if m.config.Ceiling == types.CeilingPerWorker {
		perWorker = m.config.MaxAttempts
	} else {
		globalLimit = m.config.MaxAttempts
	}

	st := newState(globalLimit)
	m.current.Store(st)

	m.logger.Debugw("search started",
		"workers", m.config.Workers,
		"strategy", m.config.Strategy.String(),
		"ceiling", m.config.Ceiling.String(),
		"max_attempts", m.config.MaxAttempts,
		"pattern", m.config.Pattern.String(),
	)

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			m.run(ctx, st, w, perWorker)
		}(w)
	}
	wg.Wait()

	out := types.Outcome{
		TotalAttempts: st.attempts.Load(),
		Elapsed:       time.Since(st.start),
	}

	select {
	case r := <-st.result:
		out.Status = types.StatusFound
		out.Result = &r
		m.logger.Debugw("search finished", "status", out.Status.String(), "attempts", r.Attempts, "worker_total", out.TotalAttempts)
		return out, nil
	default:
	}

	if err := ctx.Err(); err != nil {
		out.Status = types.StatusCancelled
		m.logger.Debugw("search cancelled", "attempts", out.TotalAttempts)
		return out, err
	}

	// Every worker ran out of attempts without a match.
	st.stop.CompareAndSwap(false, true)
	out.Status = types.StatusExhausted
	m.logger.Debugw("search exhausted", "attempts", out.TotalAttempts)
	return out, nil
}

// run is the hot loop of one worker: shared memory is touched only to claim
// an attempt and to check or set the stop flag.
func (m *Miner) run(ctx context.Context, st *state, w *worker.Worker, perWorker uint64) {
	var local uint64
	for {
		if st.stopped() {
			return
		}
		if local%ctxCheckInterval == 0 && ctx.Err() != nil {
			return
		}
		if perWorker > 0 && local >= perWorker {
			return
		}
		ticket, ok := st.claim()
		if !ok {
			return
		}
		local++

		if !w.Step() {
			continue
		}
		salt, addr := w.Last()
		if st.commit(types.Result{
			Salt:     salt,
			Address:  addr,
			Attempts: ticket,
			Elapsed:  time.Since(st.start),
		}) {
			m.logger.Debugw("match committed", "worker", w.ID, "attempt", ticket)
		}
		return
	}
}

// Progress returns a lock-free snapshot of the current search. It is safe
// to poll from any goroutine and never blocks the workers.
func (m *Miner) Progress() types.Progress {
	st := m.current.Load()
	if st == nil {
		return types.Progress{}
	}
	return st.progress()
}

// Stop cancels the running search, including one still seeding its
// workers. Cancellation is terminal: any later Mine returns cancelled.
func (m *Miner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
}
