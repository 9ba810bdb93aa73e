package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ptvalert/ptvalert/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNoSuchKey is returned by Get when a key has never been put or
	// was deleted.
	ErrNoSuchKey = errors.New("kvstore: no such key")

	// ErrStorageUnavailable wraps any other database failure. Callers
	// surface it as a 500-class response; no retries happen here.
	ErrStorageUnavailable = errors.New("kvstore: storage unavailable")
)

// Store is a durable key-value namespace. Values are opaque bytes;
// repositories serialize their records as JSON.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

type Entry struct {
	Namespace string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey;column:k"`
	Value     []byte `gorm:"column:v"`
	UpdatedAt time.Time
}

func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return db, nil
}

func NewDatabase(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config) *gorm.DB {
	db, err := Open(cfg.DatabasePath)
	if err != nil {
		log.Sugar().Panicw("failed to connect database", "err", err)
	}
	log.Info("Database started")
	return db
}

// Namespaces bundles the keyspaces owned by each repository. Each
// repository writes only to its own namespace.
type Namespaces struct {
	Markers       Store
	Subscriptions Store
	Admins        Store
	Notified      Store
}

func NewNamespaces(lc fx.Lifecycle, db *gorm.DB) *Namespaces {
	return &Namespaces{
		Markers:       InNamespace(db, "markers"),
		Subscriptions: InNamespace(db, "subscriptions"),
		Admins:        InNamespace(db, "admins"),
		Notified:      InNamespace(db, "notified"),
	}
}

func InNamespace(db *gorm.DB, namespace string) Store {
	return &gormStore{db: db, namespace: namespace}
}

type gormStore struct {
	db        *gorm.DB
	namespace string
}

func (s *gormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry Entry
	tx := s.db.WithContext(ctx).
		Where("namespace = ?", s.namespace).
		Where("k = ?", key).
		First(&entry)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSuchKey
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return entry.Value, nil
}

func (s *gormStore) Put(ctx context.Context, key string, value []byte) error {
	entry := Entry{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry)
	if err := tx.Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *gormStore) Delete(ctx context.Context, key string) error {
	tx := s.db.WithContext(ctx).
		Where("namespace = ?", s.namespace).
		Where("k = ?", key).
		Delete(&Entry{})
	if err := tx.Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *gormStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	tx := s.db.WithContext(ctx).
		Model(&Entry{}).
		Where("namespace = ?", s.namespace).
		Pluck("k", &keys)
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return keys, nil
}
