package worker

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/screa/create2-miner/internal/crypto"
	"github.com/screa/create2-miner/pkg/pattern"
	"github.com/screa/create2-miner/pkg/types"
)

// Config is the per-run, read-only input shared by every worker.
type Config struct {
	Factory     common.Address
	ContentHash common.Hash
	Pattern     *pattern.Pattern
}

// Worker evaluates salt candidates. It owns its hasher, buffers and salt
// source exclusively; nothing in a Worker is shared across goroutines.
type Worker struct {
	ID      int
	source  SaltSource
	deriver *crypto.Deriver
	pattern *pattern.Pattern

	// Pre-allocated per-attempt state
	salt types.Salt
	addr common.Address
}

// NewWorker creates a new worker instance
func NewWorker(id int, cfg *Config, source SaltSource) *Worker {
	return &Worker{
		ID:      id,
		source:  source,
		deriver: crypto.NewDeriver(cfg.Factory, cfg.ContentHash),
		pattern: cfg.Pattern,
	}
}

// Step advances the salt, derives its address and tests the pattern.
func (w *Worker) Step() bool {
	w.source.Next(&w.salt)
	w.deriver.Derive(&w.salt, &w.addr)
	return w.pattern.Match(w.addr)
}

// Last returns the salt and address evaluated by the most recent Step.
func (w *Worker) Last() (types.Salt, common.Address) {
	return w.salt, w.addr
}
