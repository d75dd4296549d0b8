package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/screa/create2-miner/internal/crypto"
	"github.com/screa/create2-miner/pkg/pattern"
	"github.com/screa/create2-miner/pkg/types"
)

// Errors
var (
	ErrNoTargetSpecified  = errors.New("must specify either --target, --prefix, or --suffix")
	ErrNoContentSpecified = errors.New("must specify --init-code-hash, --bytecode, --bytecode-file, or contracts in --config")
	ErrConflictingContent = errors.New("specify only one of --init-code-hash, --bytecode, --bytecode-file")
)

// Contract is one search target sharing the run's factory and pattern.
type Contract struct {
	Name         string `yaml:"name"`
	InitCodeHash string `yaml:"initCodeHash"`
	Bytecode     string `yaml:"bytecode"`
	BytecodeFile string `yaml:"bytecodeFile"`
}

// Config holds the application configuration
type Config struct {
	Workers     int
	Target      string
	Prefix      string
	Suffix      string
	Verbose     bool
	LogFile     string
	LogLevel    string
	LogInterval int // Logging interval in seconds
	NoProgress  bool

	Factory      string
	InitCodeHash string
	Bytecode     string
	BytecodeFile string
	ContractName string
	Contracts    []Contract

	MaxAttempts uint64
	Ceiling     string
	Strategy    string
	StartSalts  []string

	Network    string
	Output     string
	ConfigFile string
}

// File is the on-disk job description. JSON files decode too, including the
// {factoryAddress, initCodeHash} form.
type File struct {
	Factory        string     `yaml:"factory"`
	FactoryAddress string     `yaml:"factoryAddress"`
	InitCodeHash   string     `yaml:"initCodeHash"`
	Bytecode       string     `yaml:"bytecode"`
	BytecodeFile   string     `yaml:"bytecodeFile"`
	ContractName   string     `yaml:"contractName"`
	Network        string     `yaml:"network"`
	Prefix         string     `yaml:"prefix"`
	Suffix         string     `yaml:"suffix"`
	Target         string     `yaml:"target"`
	Workers        int        `yaml:"workers"`
	MaxAttempts    uint64     `yaml:"maxAttempts"`
	Ceiling        string     `yaml:"ceiling"`
	Strategy       string     `yaml:"strategy"`
	StartSalts     []string   `yaml:"startSalts"`
	Output         string     `yaml:"output"`
	Contracts      []Contract `yaml:"contracts"`
}

// Job is one resolved search target.
type Job struct {
	Name        string
	ContentHash common.Hash
}

// Plan is the validated, decoded form of Config that the miner consumes.
type Plan struct {
	Factory     common.Address
	Pattern     *pattern.Pattern
	Workers     int
	MaxAttempts uint64
	Ceiling     types.CeilingMode
	Strategy    types.Strategy
	StartSalts  []types.Salt
	Jobs        []Job
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Workers:     runtime.NumCPU(),
		LogLevel:    "info",
		LogInterval: 5, // Default 5 seconds
		Factory:     crypto.DefaultFactoryAddress,
		Ceiling:     "auto",
		Strategy:    "random",
		Network:     "unknown",
		Output:      "vanity-result.json",
	}
}

// LoadFile decodes a YAML or JSON job file.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var jf File
	if err := yaml.NewDecoder(f).Decode(&jf); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	return &jf, nil
}

// Apply copies file values into c for every setting whose flag was not
// given explicitly. changed reports whether a flag was set.
func (c *Config) Apply(f *File, changed func(flag string) bool) {
	str := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}

	factory := f.Factory
	if factory == "" {
		factory = f.FactoryAddress
	}
	str("factory", &c.Factory, factory)
	str("init-code-hash", &c.InitCodeHash, f.InitCodeHash)
	str("bytecode", &c.Bytecode, f.Bytecode)
	str("bytecode-file", &c.BytecodeFile, f.BytecodeFile)
	str("name", &c.ContractName, f.ContractName)
	str("network", &c.Network, f.Network)
	str("prefix", &c.Prefix, f.Prefix)
	str("suffix", &c.Suffix, f.Suffix)
	str("target", &c.Target, f.Target)
	str("ceiling", &c.Ceiling, f.Ceiling)
	str("strategy", &c.Strategy, f.Strategy)
	str("output", &c.Output, f.Output)

	if f.Workers > 0 && !changed("workers") {
		c.Workers = f.Workers
	}
	if f.MaxAttempts > 0 && !changed("max-attempts") {
		c.MaxAttempts = f.MaxAttempts
	}
	if len(f.StartSalts) > 0 && !changed("start-salt") {
		c.StartSalts = f.StartSalts
	}
	c.Contracts = append(c.Contracts, f.Contracts...)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Target == "" && c.Prefix == "" && c.Suffix == "" {
		return ErrNoTargetSpecified
	}
	if c.Workers < 1 {
		return &types.InputError{Field: "workers", Value: fmt.Sprint(c.Workers), Err: types.ErrInvalidWorkers}
	}
	sources := 0
	for _, s := range []string{c.InitCodeHash, c.Bytecode, c.BytecodeFile} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return ErrConflictingContent
	}
	if sources == 0 && len(c.Contracts) == 0 {
		return ErrNoContentSpecified
	}
	return nil
}

// GetTargetDescription returns a human-readable description of the target
func (c *Config) GetTargetDescription() string {
	if c.Target != "" {
		return "exact match: " + c.Target
	}
	switch {
	case c.Prefix != "" && c.Suffix != "":
		return "prefix: " + c.Prefix + ", suffix: " + c.Suffix
	case c.Prefix != "":
		return "prefix: " + c.Prefix
	case c.Suffix != "":
		return "suffix: " + c.Suffix
	}
	return "unknown"
}

// Resolve decodes every hex input and builds the search plan. All input
// errors surface here, before any worker exists.
func (c *Config) Resolve() (*Plan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	factory, err := crypto.ParseAddress("factory", c.Factory)
	if err != nil {
		return nil, err
	}

	var p *pattern.Pattern
	if c.Target != "" {
		p, err = pattern.Exact(c.Target)
	} else {
		p, err = pattern.New(c.Prefix, c.Suffix)
	}
	if err != nil {
		return nil, err
	}

	strategy, err := types.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	ceiling, err := types.ParseCeilingMode(c.Ceiling)
	if err != nil {
		return nil, err
	}

	salts := make([]types.Salt, 0, len(c.StartSalts))
	for i, s := range c.StartSalts {
		salt, err := crypto.ParseSalt(fmt.Sprintf("start salt %d", i), s)
		if err != nil {
			return nil, err
		}
		salts = append(salts, salt)
	}

	jobs, err := c.jobs()
	if err != nil {
		return nil, err
	}

	return &Plan{
		Factory:     factory,
		Pattern:     p,
		Workers:     c.Workers,
		MaxAttempts: c.MaxAttempts,
		Ceiling:     ceiling,
		Strategy:    strategy,
		StartSalts:  salts,
		Jobs:        jobs,
	}, nil
}

func (c *Config) jobs() ([]Job, error) {
	var jobs []Job
	if c.InitCodeHash != "" || c.Bytecode != "" || c.BytecodeFile != "" {
		name := c.ContractName
		if name == "" {
			name = "contract"
		}
		h, err := GetContentHash(Contract{
			Name:         name,
			InitCodeHash: c.InitCodeHash,
			Bytecode:     c.Bytecode,
			BytecodeFile: c.BytecodeFile,
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{Name: name, ContentHash: h})
	}

	for i, ct := range c.Contracts {
		name := ct.Name
		if name == "" {
			name = fmt.Sprintf("contract-%d", i)
		}
		h, err := GetContentHash(ct)
		if err != nil {
			return nil, fmt.Errorf("contract %q: %w", name, err)
		}
		jobs = append(jobs, Job{Name: name, ContentHash: h})
	}
	return jobs, nil
}

// GetContentHash returns the init code hash for a contract, hashing the
// bytecode when no precomputed hash is given.
func GetContentHash(ct Contract) (common.Hash, error) {
	switch {
	case ct.InitCodeHash != "":
		return crypto.ParseHash("init code hash", ct.InitCodeHash)
	case ct.BytecodeFile != "":
		code, err := crypto.ReadBytecodeFile(ct.BytecodeFile)
		if err != nil {
			return common.Hash{}, err
		}
		return crypto.ContentHash(code), nil
	case strings.TrimSpace(ct.Bytecode) != "":
		code, err := crypto.DecodeBytecode(ct.Bytecode)
		if err != nil {
			return common.Hash{}, err
		}
		return crypto.ContentHash(code), nil
	default:
		return common.Hash{}, ErrNoContentSpecified
	}
}
