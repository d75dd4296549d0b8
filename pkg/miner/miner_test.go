package miner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/create2-miner/internal/crypto"
	"github.com/screa/create2-miner/pkg/pattern"
	"github.com/screa/create2-miner/pkg/types"
	"github.com/screa/create2-miner/pkg/worker"
)

var (
	testFactory = common.HexToAddress("0xAA28020DDA6b954D16208eccF873D79AC6533833")
	testHash    = crypto.ContentHash(common.FromHex("0x6080604052348015600f57600080fd5b50"))
)

// Counting up from zero, the first salt whose address ends in 777 is 2310.
const firstMatch = 2310

func saltOf(n uint64) types.Salt {
	var s types.Salt
	for i := 0; i < 8; i++ {
		s[31-i] = byte(n >> (8 * i))
	}
	return s
}

func mustPattern(t *testing.T, prefix, suffix string) *pattern.Pattern {
	t.Helper()
	p, err := pattern.New(prefix, suffix)
	require.NoError(t, err)
	return p
}

func newTestMiner(t *testing.T, cfg Config) *Miner {
	t.Helper()
	if cfg.Factory == (common.Address{}) {
		cfg.Factory = testFactory
	}
	if cfg.ContentHash == (common.Hash{}) {
		cfg.ContentHash = testHash
	}
	m, err := NewMiner(cfg, nil)
	require.NoError(t, err)
	return m
}

func TestNewMinerValidation(t *testing.T) {
	p, err := pattern.New("", "777")
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero workers", Config{Workers: 0, Pattern: p}, types.ErrInvalidWorkers},
		{"negative workers", Config{Workers: -2, Pattern: p}, types.ErrInvalidWorkers},
		{"nil pattern", Config{Workers: 1}, types.ErrEmptyPattern},
		{
			"start salts count",
			Config{Workers: 2, Pattern: p, Strategy: types.StrategySequential, StartSalts: []types.Salt{saltOf(1)}},
			types.ErrInvalidLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMiner(tt.cfg, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var inErr *types.InputError
			assert.True(t, errors.As(err, &inErr))
		})
	}

	t.Run("start salts need sequential", func(t *testing.T) {
		_, err := NewMiner(Config{Workers: 1, Pattern: p, StartSalts: []types.Salt{saltOf(1)}}, nil)
		var inErr *types.InputError
		assert.True(t, errors.As(err, &inErr))
	})

	t.Run("sequential defaults to a per-worker ceiling", func(t *testing.T) {
		m, err := NewMiner(Config{Workers: 2, Pattern: p, Strategy: types.StrategySequential}, nil)
		require.NoError(t, err)
		assert.Equal(t, types.CeilingPerWorker, m.Config().Ceiling)
		assert.Equal(t, uint64(DefaultPerWorkerAttempts), m.Config().MaxAttempts)
	})

	t.Run("explicit global ceiling is kept", func(t *testing.T) {
		m, err := NewMiner(Config{Workers: 2, Pattern: p, Strategy: types.StrategySequential, Ceiling: types.CeilingGlobal}, nil)
		require.NoError(t, err)
		assert.Equal(t, types.CeilingGlobal, m.Config().Ceiling)
		assert.Zero(t, m.Config().MaxAttempts)
	})

	t.Run("random search resolves to global", func(t *testing.T) {
		m, err := NewMiner(Config{Workers: 2, Pattern: p, MaxAttempts: 5}, nil)
		require.NoError(t, err)
		assert.Equal(t, types.CeilingGlobal, m.Config().Ceiling)
		assert.Equal(t, uint64(5), m.Config().MaxAttempts)
	})
}

func TestMineFindsKnownSalt(t *testing.T) {
	m := newTestMiner(t, Config{
		Pattern:     mustPattern(t, "", "777"),
		Workers:     1,
		Strategy:    types.StrategySequential,
		StartSalts:  []types.Salt{saltOf(firstMatch - 10)},
		MaxAttempts: 1000,
	})

	out, err := m.Mine(context.Background())
	require.NoError(t, err)
	require.True(t, out.Found())
	assert.Equal(t, types.StatusFound, out.Status)
	assert.Equal(t, saltOf(firstMatch), out.Result.Salt)
	assert.Equal(t, "0x576bf20d90808dbd8ff7736bfcb969baa85fe777", types.AddressHex(out.Result.Address))
	assert.Equal(t, uint64(11), out.Result.Attempts)
	assert.Equal(t, uint64(11), out.TotalAttempts)
	assert.Equal(t, uint64(11), m.Progress().Attempts)
}

func TestMineExhaustsGlobalCeiling(t *testing.T) {
	// No salt below firstMatch matches, so these ranges can never hit.
	m := newTestMiner(t, Config{
		Pattern:     mustPattern(t, "", "777"),
		Workers:     4,
		Strategy:    types.StrategySequential,
		StartSalts:  []types.Salt{saltOf(0), saltOf(100), saltOf(200), saltOf(300)},
		MaxAttempts: 10,
		Ceiling:     types.CeilingGlobal,
	})

	out, err := m.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusExhausted, out.Status)
	assert.False(t, out.Found())
	assert.Nil(t, out.Result)
	assert.Equal(t, uint64(10), out.TotalAttempts)
}

func TestMineExhaustsRandomStrategy(t *testing.T) {
	// ten tries at a 1 in 16^10 pattern
	m := newTestMiner(t, Config{
		Pattern:     mustPattern(t, "0000000000", ""),
		Workers:     3,
		MaxAttempts: 10,
	})

	out, err := m.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusExhausted, out.Status)
	assert.Equal(t, uint64(10), out.TotalAttempts)
}

func TestMineExhaustsPerWorkerCeiling(t *testing.T) {
	m := newTestMiner(t, Config{
		Pattern:     mustPattern(t, "", "777"),
		Workers:     3,
		Strategy:    types.StrategySequential,
		StartSalts:  []types.Salt{saltOf(0), saltOf(500), saltOf(1000)},
		MaxAttempts: 5,
		Ceiling:     types.CeilingPerWorker,
	})

	out, err := m.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusExhausted, out.Status)
	assert.Equal(t, uint64(15), out.TotalAttempts)
}

func TestMineFirstCommitterWins(t *testing.T) {
	m := newTestMiner(t, Config{
		Pattern:     mustPattern(t, "", "777"),
		Workers:     2,
		Strategy:    types.StrategySequential,
		StartSalts:  []types.Salt{saltOf(firstMatch), saltOf(firstMatch)},
		MaxAttempts: 100,
	})

	out, err := m.Mine(context.Background())
	require.NoError(t, err)
	require.True(t, out.Found())
	assert.Equal(t, saltOf(firstMatch), out.Result.Salt)
	assert.LessOrEqual(t, out.Result.Attempts, out.TotalAttempts)
	assert.LessOrEqual(t, out.TotalAttempts, uint64(2))
}

func TestStateSingleCommit(t *testing.T) {
	st := newState(0)

	// two workers claim and match on the same tick
	var claimed sync.WaitGroup
	claimed.Add(2)
	release := make(chan struct{})
	wins := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func(id int) {
			ticket, ok := st.claim()
			claimed.Done()
			<-release
			wins <- ok && st.commit(types.Result{Salt: saltOf(uint64(id)), Attempts: ticket})
		}(i)
	}
	claimed.Wait()
	close(release)

	won := 0
	for i := 0; i < 2; i++ {
		if <-wins {
			won++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, uint64(2), st.attempts.Load(), "both attempts counted once")
	require.Len(t, st.result, 1)
	r := <-st.result
	assert.Contains(t, []uint64{1, 2}, r.Attempts)
	assert.True(t, st.stopped())
	assert.False(t, st.commit(types.Result{}), "stop flag is set exactly once")
}

func TestStateClaimStopsAtLimit(t *testing.T) {
	st := newState(10)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := st.claim(); !ok {
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(10), st.attempts.Load())
}

func TestMineBoundedSlackAfterStop(t *testing.T) {
	const workers = 8
	m := newTestMiner(t, Config{
		Pattern: mustPattern(t, "", "0"),
		Workers: workers,
	})

	out, err := m.Mine(context.Background())
	require.NoError(t, err)
	require.True(t, out.Found())
	assert.True(t, m.config.Pattern.Match(out.Result.Address))

	derived, err := crypto.DeriveAddress(testFactory[:], out.Result.Salt[:], testHash[:])
	require.NoError(t, err)
	assert.Equal(t, derived, out.Result.Address)

	st := m.current.Load()
	require.NotNil(t, st)
	assert.LessOrEqual(t, out.TotalAttempts-st.stoppedAt.Load(), uint64(workers))
	assert.GreaterOrEqual(t, out.TotalAttempts, out.Result.Attempts)
}

func TestMineWorkerInitFailureAborts(t *testing.T) {
	m := newTestMiner(t, Config{
		Pattern: mustPattern(t, "", "777"),
		Workers: 4,
	})
	seeded := 0
	m.newSource = func(id int) (worker.SaltSource, error) {
		if id == 2 {
			return nil, errors.New("entropy unavailable")
		}
		seeded++
		return worker.NewSequentialSourceFrom(saltOf(0)), nil
	}

	_, err := m.Mine(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerInit)
	assert.Equal(t, 2, seeded)
	assert.Equal(t, uint64(0), m.Progress().Attempts, "no worker may start")
}

func TestMineContextDeadline(t *testing.T) {
	m := newTestMiner(t, Config{
		Pattern: mustPattern(t, "0000000000", ""),
		Workers: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, err := m.Mine(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.StatusCancelled, out.Status)
	assert.Nil(t, out.Result)
	assert.Greater(t, out.TotalAttempts, uint64(0))
}

func TestMineStop(t *testing.T) {
	m := newTestMiner(t, Config{
		Pattern: mustPattern(t, "0000000000", ""),
		Workers: 2,
	})

	type mined struct {
		out types.Outcome
		err error
	}
	done := make(chan mined, 1)
	go func() {
		out, err := m.Mine(context.Background())
		done <- mined{out, err}
	}()

	require.Eventually(t, func() bool { return m.Progress().Attempts > 0 }, 5*time.Second, time.Millisecond)
	m.Stop()

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, context.Canceled)
		assert.Equal(t, types.StatusCancelled, res.out.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("miner did not stop")
	}
}

func TestMineStopDuringWorkerSetup(t *testing.T) {
	for i := 0; i < 20; i++ {
		m := newTestMiner(t, Config{
			Pattern: mustPattern(t, "0000000000", ""),
			Workers: 2000,
		})

		done := make(chan types.Outcome, 1)
		go func() {
			out, _ := m.Mine(context.Background())
			done <- out
		}()
		time.Sleep(100 * time.Microsecond)
		m.Stop()

		select {
		case out := <-done:
			assert.Equal(t, types.StatusCancelled, out.Status)
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d: stop was lost while workers were being seeded", i)
		}
	}
}

func TestMineAfterStopIsCancelled(t *testing.T) {
	m := newTestMiner(t, Config{
		Pattern: mustPattern(t, "0000000000", ""),
		Workers: 4,
	})
	m.Stop()

	out, err := m.Mine(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.StatusCancelled, out.Status)
	assert.Zero(t, out.TotalAttempts)
}

func TestProgressBeforeMine(t *testing.T) {
	m := newTestMiner(t, Config{Pattern: mustPattern(t, "69", ""), Workers: 1})
	p := m.Progress()
	assert.Equal(t, uint64(0), p.Attempts)
	assert.Equal(t, 0.0, p.Rate())
}

func TestConcurrentSearchesAreIndependent(t *testing.T) {
	a := newTestMiner(t, Config{Pattern: mustPattern(t, "0000000000", ""), Workers: 2, MaxAttempts: 10})
	b := newTestMiner(t, Config{Pattern: mustPattern(t, "0000000000", ""), Workers: 2, MaxAttempts: 20})

	var wg sync.WaitGroup
	var outA, outB types.Outcome
	wg.Add(2)
	go func() { defer wg.Done(); outA, _ = a.Mine(context.Background()) }()
	go func() { defer wg.Done(); outB, _ = b.Mine(context.Background()) }()
	wg.Wait()

	assert.Equal(t, uint64(10), outA.TotalAttempts)
	assert.Equal(t, uint64(20), outB.TotalAttempts)
}
