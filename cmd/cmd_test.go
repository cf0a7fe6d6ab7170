package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soundgrid/clip"
	"soundgrid/persist"
	"soundgrid/slot"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writeTestWAV(t *testing.T, path string, lead, tone time.Duration) {
	t.Helper()
	const rate = 48000
	b := clip.New(rate, 2, int(float64(rate)*(lead+tone).Seconds()))
	start := int(float64(rate) * lead.Seconds())
	for c := range b.Data {
		for i := start; i < len(b.Data[c]); i++ {
			b.Data[c][i] = 0.5
		}
	}
	require.NoError(t, writeWAVFile(path, b))
}

func readWAV(t *testing.T, path string) *clip.Buffer {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	b, err := clip.DecodeWAV(data)
	require.NoError(t, err)
	return b
}

func TestParseSlotID(t *testing.T) {
	tests := []struct {
		in      string
		want    slot.ID
		wantErr bool
	}{
		{"0", 0, false},
		{"35", 35, false},
		{"-1", -1, false},
		{"one", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSlotID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ééé", truncate("ééé", 3))
}

func TestTrimAndEncode(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	writeTestWAV(t, in, 500*time.Millisecond, time.Second)

	encoded := filepath.Join(dir, "encoded.wav")
	require.NoError(t, run(t, "encode", in, encoded))
	assert.InDelta(t, 1.5, readWAV(t, encoded).Duration().Seconds(), 0.01)

	trimmed := filepath.Join(dir, "trimmed.wav")
	require.NoError(t, run(t, "trim", in, trimmed))
	got := readWAV(t, trimmed).Duration().Seconds()
	assert.Less(t, got, 1.5)
	assert.GreaterOrEqual(t, got, 1.0)
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "slots.db")

	db, err := persist.Open(dbPath)
	require.NoError(t, err)
	store := slot.NewStore(slot.DefaultCount)
	require.NoError(t, store.Attach(db))
	name := "Bell"
	_, err = store.Set(7, slot.Patch{Name: &name, Clip: clip.New(48000, 1, 4800)})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	archived := filepath.Join(dir, "board.zip")
	require.NoError(t, run(t, "export", archived, "--db", dbPath))
	require.NoError(t, run(t, "slots", "reset", "7", "--db", dbPath))
	require.NoError(t, run(t, "import", archived, "--db", dbPath))

	db, err = persist.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	saved, _, err := db.LoadAll()
	require.NoError(t, err)
	require.Contains(t, saved, slot.ID(7))
	assert.Equal(t, "Bell", saved[7].Name)
	assert.True(t, saved[7].HasClip())
}

func TestSlotsDump(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "slots.db")

	db, err := persist.Open(dbPath)
	require.NoError(t, err)
	store := slot.NewStore(slot.DefaultCount)
	require.NoError(t, store.Attach(db))
	name := "Horn"
	_, err = store.Set(2, slot.Patch{Name: &name, Clip: clip.New(48000, 2, 4800)})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out := filepath.Join(dir, "clips")
	require.NoError(t, run(t, "slots", "dump", out, "--db", dbPath))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, slot.FileName(2, "Horn"), entries[0].Name())
}
