package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soundgrid/clip"
	"soundgrid/slot"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "soundgrid.db"))
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleParameters() slot.Parameters {
	b := clip.New(22050, 1, 100)
	for i := range b.Data[0] {
		b.Data[0][i] = float32(i%10) / 20
	}
	p := slot.Defaults()
	p.Name = "Airhorn"
	p.Clip = b
	p.Gain = 1.5
	p.Balance = -0.25
	p.EchoDelay = 0.3
	p.EchoFeedback = 0.4
	p.Color = slot.Teal
	return p
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	p := sampleParameters()

	require.NoError(t, s.Save(3, p))
	p.Name = "Airhorn (long)"
	require.NoError(t, s.Save(3, p))
	require.NoError(t, s.Save(5, slot.Defaults()))

	saved, order, err := s.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, order)
	require.Len(t, saved, 2)

	got := saved[3]
	assert.Equal(t, "Airhorn (long)", got.Name)
	assert.Equal(t, 1.5, got.Gain)
	assert.Equal(t, -0.25, got.Balance)
	assert.Equal(t, slot.Teal, got.Color)
	require.NotNil(t, got.Clip)
	assert.Equal(t, 22050, got.Clip.SampleRate)
	assert.Equal(t, 100, got.Clip.Len())
	assert.InDelta(t, p.Clip.Data[0][7], got.Clip.Data[0][7], 1e-4)

	assert.Nil(t, saved[5].Clip)
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save(1, sampleParameters()))
	require.NoError(t, s.Delete(1))
	require.NoError(t, s.Delete(2))

	saved, _, err := s.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestStore_SaveOrder(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveOrder([]slot.ID{2, 0, 1}))
	require.NoError(t, s.SaveOrder([]slot.ID{1, 2, 0}))

	_, order, err := s.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []slot.ID{1, 2, 0}, order)
}

func TestStore_AttachToSlotStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	db, err := Open(path)
	require.NoError(t, err)

	board := slot.NewStore(4)
	require.NoError(t, board.Attach(db))
	_, err = board.Set(2, slot.Replace(sampleParameters()))
	require.NoError(t, err)
	require.NoError(t, board.SetOrder([]slot.ID{3, 2, 1, 0}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	reloaded := slot.NewStore(4)
	require.NoError(t, reloaded.Attach(db))
	p, err := reloaded.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "Airhorn", p.Name)
	assert.True(t, p.HasClip())
	assert.Equal(t, []slot.ID{3, 2, 1, 0}, reloaded.Order())
}
