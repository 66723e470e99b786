package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"casaflow/server/internal/models"
)

// DraftRow is the persisted form of an in-progress draft, keyed by the
// editing session. The draft body is stored as JSON; binary image handles are
// deliberately excluded (they cannot survive a restart).
type DraftRow struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"uniqueIndex;size:64"`
	PropertyID *int64
	Title      string
	Body       string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AutosaveSummary identifies one recoverable autosave without its body.
type AutosaveSummary struct {
	SessionID  string    `json:"session_id"`
	PropertyID *int64    `json:"property_id"`
	Title      string    `json:"title"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists draft autosaves locally so an interrupted editing session
// can be resumed. Marketplace persistence stays on the server side.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// Open opens (or creates) the sqlite database at path and runs migrations.
func Open(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open draft store: %w", err)
	}

	if err := db.AutoMigrate(&DraftRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate draft store: %w", err)
	}

	return &Store{db: db, logger: log}, nil
}

// SaveDraft upserts the draft for the given session.
func (s *Store) SaveDraft(sessionID string, d *models.PropertyDraft) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to serialize draft: %w", err)
	}

	row := DraftRow{SessionID: sessionID, PropertyID: d.ID, Title: d.Title, Body: string(body)}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing DraftRow
		result := tx.Where("session_id = ?", sessionID).First(&existing)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return tx.Create(&row).Error
			}
			return result.Error
		}
		existing.PropertyID = row.PropertyID
		existing.Title = row.Title
		existing.Body = row.Body
		return tx.Save(&existing).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	s.logger.WithField("session_id", sessionID).Debug("Autosaved draft")
	return nil
}

// LoadDraft returns the saved draft for the session, if any.
func (s *Store) LoadDraft(sessionID string) (*models.PropertyDraft, bool, error) {
	var row DraftRow
	result := s.db.Where("session_id = ?", sessionID).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load draft: %w", result.Error)
	}

	d := models.NewDraft()
	if err := json.Unmarshal([]byte(row.Body), d); err != nil {
		return nil, false, fmt.Errorf("failed to deserialize draft: %w", err)
	}
	if d.Amenities == nil {
		d.Amenities = make(map[int]bool)
	}
	if d.ImagesToDelete == nil {
		d.ImagesToDelete = make(map[int64]bool)
	}
	return d, true, nil
}

// ListDrafts returns a summary of every autosave, newest first, so a client
// can offer them for recovery after a restart.
func (s *Store) ListDrafts() ([]AutosaveSummary, error) {
	var rows []DraftRow
	if err := s.db.Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	summaries := make([]AutosaveSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, AutosaveSummary{
			SessionID:  row.SessionID,
			PropertyID: row.PropertyID,
			Title:      row.Title,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	return summaries, nil
}

// DeleteDraft removes the session's autosave, e.g. after a successful
// creation or when the user abandons the draft.
func (s *Store) DeleteDraft(sessionID string) error {
	if err := s.db.Where("session_id = ?", sessionID).Delete(&DraftRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
