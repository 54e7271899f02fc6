package sqlitestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrsteele09/go-medscan-client/internal/crypto"
	"github.com/jrsteele09/go-medscan-client/sessions"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	sessionSlot   = 1
	deviceKeyFile = "device.key"
	sealPurpose   = "medscan-session-sqlite"
)

var _ sessions.Store = (*Store)(nil)

// sessionRow is the single persisted slot. The token column holds the sealed token, base64 encoded.
type sessionRow struct {
	Slot        uint `gorm:"primaryKey;autoIncrement:false"`
	SealedToken string
	UserID      string
	Role        string
	Name        string
	Email       string
	ExpiresAt   time.Time
	UpdatedAt   time.Time
}

func (sessionRow) TableName() string {
	return "device_session"
}

// Store persists the session in a SQLite database through GORM.
type Store struct {
	db     *gorm.DB
	sealer *crypto.Sealer
	mu     sync.Mutex
}

// New opens the database at dbPath, migrating the schema. The device key lives
// beside the database file.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("[sqlitestore.New] dbPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("[sqlitestore.New] create data folder: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore.New] open %s: %w", dbPath, err)
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("[sqlitestore.New] migrate: %w", err)
	}

	key, err := crypto.LoadOrCreateDeviceKey(filepath.Join(filepath.Dir(dbPath), deviceKeyFile))
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore.New] device key: %w", err)
	}
	sealer, err := crypto.NewSealer(key, sealPurpose)
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore.New] sealer: %w", err)
	}

	return &Store{db: db, sealer: sealer}, nil
}

func (s *Store) Save(session sessions.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	sealed, err := s.sealer.Seal([]byte(session.Token))
	if err != nil {
		return fmt.Errorf("[sqlitestore.Save] seal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := sessionRow{
		Slot:        sessionSlot,
		SealedToken: base64.StdEncoding.EncodeToString(sealed),
		UserID:      session.UserID,
		Role:        string(session.Role),
		Name:        session.Name,
		Email:       session.Email,
		ExpiresAt:   session.ExpiresAt,
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("[sqlitestore.Save] %w", err)
	}
	return nil
}

func (s *Store) Load() (*sessions.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row sessionRow
	err := s.db.First(&row, sessionSlot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore.Load] %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(row.SealedToken)
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore.Load] decode token: %w", err)
	}
	token, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore.Load] open token: %w", err)
	}

	return &sessions.Session{
		Token:     string(token),
		UserID:    row.UserID,
		Role:      sessions.Role(row.Role),
		Name:      row.Name,
		Email:     row.Email,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete(&sessionRow{}, sessionSlot).Error; err != nil {
		return fmt.Errorf("[sqlitestore.Clear] %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
