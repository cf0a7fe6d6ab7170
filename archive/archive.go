// Package archive exports a whole board to a zip file and restores it.
//
// Layout: manifest.json describes every pad and the button order; each pad
// with audio has its clip at audio/slot-<id>.wav as 16-bit PCM.
package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"soundgrid/clip"
	"soundgrid/slot"
)

// ManifestName is the metadata entry every archive must contain.
const ManifestName = "manifest.json"

// Version is the manifest version written by Export.
const Version = 1

var (
	// ErrInvalidArchive is returned when the file is not a readable archive.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrMissingManifest is returned when the archive has no manifest entry.
	ErrMissingManifest = errors.New("archive has no manifest")
	// ErrUnsupportedVersion is returned for manifests newer than this build understands.
	ErrUnsupportedVersion = errors.New("unsupported archive version")
)

// Manifest is the structured metadata entry.
type Manifest struct {
	Version    int         `json:"version"`
	ExportedAt time.Time   `json:"exportedAt"`
	SlotCount  int         `json:"slotCount"`
	AudioCount int         `json:"audioCount"`
	Order      []slot.ID   `json:"order"`
	Slots      []SlotEntry `json:"slots"`
}

// SlotEntry is one pad's parameters.
type SlotEntry struct {
	ID           slot.ID    `json:"id"`
	Name         string     `json:"name"`
	Speed        float64    `json:"speed"`
	Balance      float64    `json:"balance"`
	Gain         float64    `json:"gain"`
	EchoDelay    float64    `json:"echoDelay"`
	EchoFeedback float64    `json:"echoFeedback"`
	Loop         bool       `json:"loop"`
	Color        slot.Color `json:"color"`
	HasAudio     bool       `json:"hasAudio"`
}

// AudioEntry returns the archive path of a pad's clip.
func AudioEntry(id slot.ID) string {
	return fmt.Sprintf("audio/slot-%d.wav", id)
}

// Export writes every pad of store to w.
func Export(w io.Writer, store *slot.Store, exportedAt time.Time) (Manifest, error) {
	all := store.All()
	m := Manifest{
		Version:    Version,
		ExportedAt: exportedAt.UTC(),
		SlotCount:  len(all),
		Order:      store.Order(),
		Slots:      make([]SlotEntry, 0, len(all)),
	}

	zw := zip.NewWriter(w)
	for i, p := range all {
		id := slot.ID(i)
		entry := newEntry(id, p)
		if entry.HasAudio {
			data, err := clip.EncodeWAV(p.Clip)
			if err != nil {
				return Manifest{}, fmt.Errorf("failed to encode clip for slot %d: %w", id, err)
			}
			f, err := zw.Create(AudioEntry(id))
			if err != nil {
				return Manifest{}, fmt.Errorf("failed to create audio entry: %w", err)
			}
			if _, err := f.Write(data); err != nil {
				return Manifest{}, fmt.Errorf("failed to write audio entry: %w", err)
			}
			m.AudioCount++
		}
		m.Slots = append(m.Slots, entry)
	}

	f, err := zw.Create(ManifestName)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to create manifest: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return Manifest{}, fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("failed to finish archive: %w", err)
	}
	return m, nil
}

func newEntry(id slot.ID, p slot.Parameters) SlotEntry {
	return SlotEntry{
		ID:           id,
		Name:         p.Name,
		Speed:        p.Speed,
		Balance:      p.Balance,
		Gain:         p.Gain,
		EchoDelay:    p.EchoDelay,
		EchoFeedback: p.EchoFeedback,
		Loop:         p.Loop,
		Color:        p.Color,
		HasAudio:     p.HasClip(),
	}
}

func (e SlotEntry) parameters() slot.Parameters {
	return slot.Parameters{
		Name:         e.Name,
		Speed:        e.Speed,
		Balance:      e.Balance,
		Gain:         e.Gain,
		EchoDelay:    e.EchoDelay,
		EchoFeedback: e.EchoFeedback,
		Loop:         e.Loop,
		Color:        e.Color,
	}
}

// Result summarises an import.
type Result struct {
	Slots        int `json:"slots"`
	Audio        int `json:"audio"`
	MissingAudio int `json:"missingAudio"`
	Skipped      int `json:"skipped"`
}

// Import replaces every pad of store with the archive's contents. Pads the
// archive does not mention are reset to defaults; clips the manifest promises
// but the archive lacks are counted in MissingAudio.
func Import(r io.ReaderAt, size int64, store *slot.Store) (Result, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	m, err := readManifest(files[ManifestName])
	if err != nil {
		return Result{}, err
	}

	logger := slog.With("component", "archive")
	var res Result
	next := make([]slot.Parameters, store.Count())
	for i := range next {
		next[i] = slot.Defaults()
	}
	for _, entry := range m.Slots {
		if entry.ID < 0 || int(entry.ID) >= len(next) {
			logger.Warn("Skipping slot outside the board", slog.Int("slot", int(entry.ID)))
			res.Skipped++
			continue
		}
		p := entry.parameters()
		if err := p.Validate(); err != nil {
			logger.Warn("Skipping slot with invalid parameters", slog.Int("slot", int(entry.ID)), slog.Any("error", err))
			res.Skipped++
			continue
		}
		if entry.HasAudio {
			buf, err := readClip(files[AudioEntry(entry.ID)])
			if err != nil {
				logger.Warn("Missing audio for slot", slog.Int("slot", int(entry.ID)), slog.Any("error", err))
				res.MissingAudio++
			} else {
				p.Clip = buf
				res.Audio++
			}
		}
		next[entry.ID] = p
		res.Slots++
	}

	for i, p := range next {
		if _, err := store.Set(slot.ID(i), slot.Replace(p)); err != nil {
			return res, fmt.Errorf("failed to restore slot %d: %w", i, err)
		}
	}
	if err := store.SetOrder(m.Order); err != nil {
		logger.Warn("Archive button order does not fit the board, using default order", slog.Any("error", err))
		_ = store.SetOrder(store.IDs())
	}
	logger.Info("Archive imported",
		slog.Int("slots", res.Slots),
		slog.Int("audio", res.Audio),
		slog.Int("missing_audio", res.MissingAudio))
	return res, nil
}

func readManifest(f *zip.File) (Manifest, error) {
	if f == nil {
		return Manifest{}, ErrMissingManifest
	}
	rc, err := f.Open()
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest: %v", ErrInvalidArchive, err)
	}
	if m.Version < 1 || m.Version > Version {
		return Manifest{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	return m, nil
}

func readClip(f *zip.File) (*clip.Buffer, error) {
	if f == nil {
		return nil, errors.New("entry not found")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return clip.DecodeWAV(data)
}
