// Package persist keeps slot parameters and clips in a SQLite database.
package persist

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"soundgrid/clip"
	"soundgrid/slot"
)

// slotRow is one saved pad. The clip is stored as a PCM16 WAV blob.
type slotRow struct {
	ID           int `gorm:"primaryKey;autoIncrement:false"`
	Name         string
	Speed        float64
	Balance      float64
	Gain         float64
	EchoDelay    float64
	EchoFeedback float64
	Loop         bool
	Color        string
	Audio        []byte
	UpdatedAt    time.Time
}

func (slotRow) TableName() string { return "slots" }

type orderRow struct {
	Position int `gorm:"primaryKey;autoIncrement:false"`
	SlotID   int
}

func (orderRow) TableName() string { return "button_order" }

// Store implements slot.Persister on top of gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ slot.Persister = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger := slog.With("component", "persist")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.NewSlogLogger(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.AutoMigrate(&slotRow{}, &orderRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	logger.Info("Slot database opened", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadAll returns every saved pad and the saved button order. A clip that no
// longer decodes is dropped and its pad loads without audio.
func (s *Store) LoadAll() (map[slot.ID]slot.Parameters, []slot.ID, error) {
	var rows []slotRow
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to read slots: %w", err)
	}
	saved := make(map[slot.ID]slot.Parameters, len(rows))
	for _, row := range rows {
		p, err := row.parameters()
		if err != nil {
			s.logger.Warn("Dropping unreadable clip", slog.Int("slot", row.ID), slog.Any("error", err))
		}
		saved[slot.ID(row.ID)] = p
	}

	var order []orderRow
	if err := s.db.Order("position").Find(&order).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to read button order: %w", err)
	}
	ids := make([]slot.ID, len(order))
	for i, row := range order {
		ids[i] = slot.ID(row.SlotID)
	}
	return saved, ids, nil
}

// Save upserts one pad.
func (s *Store) Save(id slot.ID, p slot.Parameters) error {
	row, err := newSlotRow(id, p)
	if err != nil {
		return err
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save slot %d: %w", id, err)
	}
	return nil
}

// Delete forgets a pad so it loads with defaults.
func (s *Store) Delete(id slot.ID) error {
	if err := s.db.Delete(&slotRow{}, int(id)).Error; err != nil {
		return fmt.Errorf("failed to delete slot %d: %w", id, err)
	}
	return nil
}

// SaveOrder replaces the stored button order.
func (s *Store) SaveOrder(order []slot.ID) error {
	rows := make([]orderRow, len(order))
	for i, id := range order {
		rows[i] = orderRow{Position: i, SlotID: int(id)}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&orderRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear button order: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to save button order: %w", err)
		}
		return nil
	})
}

func newSlotRow(id slot.ID, p slot.Parameters) (slotRow, error) {
	row := slotRow{
		ID:           int(id),
		Name:         p.Name,
		Speed:        p.Speed,
		Balance:      p.Balance,
		Gain:         p.Gain,
		EchoDelay:    p.EchoDelay,
		EchoFeedback: p.EchoFeedback,
		Loop:         p.Loop,
		Color:        p.Color.String(),
	}
	if p.HasClip() {
		audio, err := clip.EncodeWAV(p.Clip)
		if err != nil {
			return slotRow{}, fmt.Errorf("failed to encode clip for slot %d: %w", id, err)
		}
		row.Audio = audio
	}
	return row, nil
}

// parameters converts the row back. Parameters are returned even when the
// clip fails to decode.
func (r slotRow) parameters() (slot.Parameters, error) {
	p := slot.Parameters{
		Name:         r.Name,
		Speed:        r.Speed,
		Balance:      r.Balance,
		Gain:         r.Gain,
		EchoDelay:    r.EchoDelay,
		EchoFeedback: r.EchoFeedback,
		Loop:         r.Loop,
	}
	var errs []error
	color, err := slot.ParseColor(r.Color)
	if err != nil {
		errs = append(errs, err)
	}
	p.Color = color
	if len(r.Audio) > 0 {
		buf, err := clip.DecodeWAV(r.Audio)
		if err != nil {
			errs = append(errs, err)
		} else {
			p.Clip = buf
		}
	}
	return p, errors.Join(errs...)
}
