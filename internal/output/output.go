// Package output persists search results as JSON.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screa/create2-miner/pkg/pattern"
	"github.com/screa/create2-miner/pkg/types"
)

// Entry is the persisted form of one contract's search.
type Entry struct {
	ContractName   string  `json:"contractName"`
	ContentHash    string  `json:"contentHash"`
	Pattern        string  `json:"pattern"`
	Found          bool    `json:"found"`
	Status         string  `json:"status"`
	Salt           string  `json:"salt,omitempty"`
	Address        string  `json:"address,omitempty"`
	Attempts       uint64  `json:"attempts"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// Report is the whole output file.
type Report struct {
	Network   string  `json:"network"`
	Timestamp string  `json:"timestamp"`
	Factory   string  `json:"factory"`
	Results   []Entry `json:"results"`
}

// NewReport starts a report stamped with now in UTC.
func NewReport(network string, factory common.Address, now time.Time) *Report {
	return &Report{
		Network:   network,
		Timestamp: now.UTC().Format(time.RFC3339),
		Factory:   types.AddressHex(factory),
		Results:   []Entry{},
	}
}

// Add records an outcome. Found entries carry the match's attempt number;
// others carry every attempt evaluated.
func (r *Report) Add(name string, contentHash common.Hash, p *pattern.Pattern, out types.Outcome) Entry {
	e := Entry{
		ContractName:   name,
		ContentHash:    contentHash.Hex(),
		Pattern:        p.String(),
		Status:         out.Status.String(),
		Attempts:       out.TotalAttempts,
		ElapsedSeconds: out.Elapsed.Seconds(),
	}
	if out.Found() {
		e.Found = true
		e.Salt = out.Result.Salt.Hex()
		e.Address = types.AddressHex(out.Result.Address)
		e.Attempts = out.Result.Attempts
		e.ElapsedSeconds = out.Result.ElapsedSeconds()
	}
	r.Results = append(r.Results, e)
	return e
}

// AllFound reports whether every recorded search found a match.
func (r *Report) AllFound() bool {
	for _, e := range r.Results {
		if !e.Found {
			return false
		}
	}
	return len(r.Results) > 0
}

// Write saves the report as indented JSON, replacing path atomically.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".create2-miner-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save report %q: %w", path, err)
	}
	return nil
}
