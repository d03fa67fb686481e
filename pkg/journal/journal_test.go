package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	w.nowFn = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	rec := &CycleRecord{
		Trigger:         "scheduled",
		BalanceSOL:      "1.5",
		GatePassed:      true,
		Candidates:      []string{"bonk", "wif"},
		Recommendations: []map[string]string{{"ticker": "BONK"}},
		Success:         true,
	}
	path, err := w.WriteCycle(rec)
	require.NoError(t, err)

	_, err = uuid.Parse(rec.RunID)
	require.NoError(t, err, "run id should be a uuid")
	assert.Equal(t, 1, rec.CycleNumber)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "cycle_20260102_030405_00001_"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, rec.RunID, decoded["run_id"])
	assert.Equal(t, "1.5", decoded["balance_sol"])
	assert.Equal(t, true, decoded["gate_passed"])

	_, err = w.WriteCycle(&CycleRecord{RunID: "fixed-id-123456"})
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriteCycleNil(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	_, err = w.WriteCycle(nil)
	assert.Error(t, err)
}
