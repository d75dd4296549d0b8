package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/create2-miner/pkg/pattern"
	"github.com/screa/create2-miner/pkg/types"
)

func TestReportRoundTrip(t *testing.T) {
	factory := common.HexToAddress("0xAA28020DDA6b954D16208eccF873D79AC6533833")
	hash := common.HexToHash("0x9782e38b2927e497dbec51c468bc9da14d403478b2bb602f2236aa3d61a26e68")
	p, err := pattern.New("", "777")
	require.NoError(t, err)

	var salt types.Salt
	salt[30], salt[31] = 0x09, 0x06

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.FixedZone("X", 3600))
	r := NewReport("sonic", factory, now)
	found := r.Add("registry", hash, p, types.Outcome{
		Status: types.StatusFound,
		Result: &types.Result{
			Salt:     salt,
			Address:  common.HexToAddress("0x576bf20d90808dbd8ff7736bfcb969baa85fe777"),
			Attempts: 11,
			Elapsed:  1500 * time.Millisecond,
		},
		TotalAttempts: 13,
		Elapsed:       2 * time.Second,
	})
	r.Add("token", hash, p, types.Outcome{Status: types.StatusExhausted, TotalAttempts: 10, Elapsed: time.Second})

	assert.True(t, found.Found)
	assert.Equal(t, uint64(11), found.Attempts)
	assert.Equal(t, 1.5, found.ElapsedSeconds)
	assert.False(t, r.AllFound())

	path := filepath.Join(t.TempDir(), "nested", "vanity-result.json")
	require.NoError(t, r.Write(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"salt": "0x`+strings.Repeat("0", 60)+`0906"`)
	assert.Contains(t, string(raw), `"address": "0x576bf20d90808dbd8ff7736bfcb969baa85fe777"`)
	assert.Contains(t, string(raw), `"timestamp": "2026-10-19T11:00:00Z"`)
	assert.Contains(t, string(raw), `"pattern": "0x...777"`)

	var back Report
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Len(t, back.Results, 2)
	assert.Equal(t, "0xaa28020dda6b954d16208eccf873d79ac6533833", back.Factory)
	assert.Equal(t, "exhausted", back.Results[1].Status)
	assert.Empty(t, back.Results[1].Salt)
	assert.Equal(t, uint64(10), back.Results[1].Attempts)
}

func TestAllFoundEmpty(t *testing.T) {
	r := NewReport("x", common.Address{}, time.Now())
	assert.False(t, r.AllFound())
}
