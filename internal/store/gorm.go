package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taridex/declaration-processor/internal/model"
)

type declarationRecord struct {
	ID        string `gorm:"primaryKey;column:id"`
	Name      string `gorm:"column:name"`
	Date      string `gorm:"column:date"`
	CreatedAt time.Time
}

func (declarationRecord) TableName() string { return "declarations" }

type documentRecord struct {
	ID            string         `gorm:"primaryKey;column:id"`
	DeclarationID string         `gorm:"column:declaration_id;index:idx_documents_decl_type"`
	TypeKey       string         `gorm:"column:type_key;index:idx_documents_decl_type"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	CreatedAt     time.Time
}

func (documentRecord) TableName() string { return "documents" }

type overridesRecord struct {
	DeclarationID string         `gorm:"primaryKey;column:declaration_id"`
	Data          datatypes.JSON `gorm:"column:data"`
	UpdatedAt     time.Time
}

func (overridesRecord) TableName() string { return "overrides" }

// GormStore persists through GORM on sqlite.
type GormStore struct {
	db    *gorm.DB
	locks *declLocks
}

// Open opens (and migrates) the sqlite database at path.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&declarationRecord{}, &documentRecord{}, &overridesRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, locks: newDeclLocks()}, nil
}

func (s *GormStore) CreateDeclaration(ctx context.Context, name, date string) (model.Declaration, error) {
	rec := declarationRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Declaration{}, err
	}
	return declarationFromRecord(rec), nil
}

func (s *GormStore) GetDeclaration(ctx context.Context, id string) (model.Declaration, error) {
	var rec declarationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Declaration{}, ErrNotFound
	}
	if err != nil {
		return model.Declaration{}, err
	}
	return declarationFromRecord(rec), nil
}

func (s *GormStore) ListDeclarations(ctx context.Context) ([]model.Declaration, error) {
	var recs []declarationRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.Declaration, 0, len(recs))
	for _, rec := range recs {
		out = append(out, declarationFromRecord(rec))
	}
	return out, nil
}

func (s *GormStore) DeleteDeclaration(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&declarationRecord{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Delete(&documentRecord{}, "declaration_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&overridesRecord{}, "declaration_id = ?", id).Error
	})
}

func (s *GormStore) SaveDocument(ctx context.Context, declID string, typeKey model.DocType, payload json.RawMessage) (model.Document, error) {
	if _, err := s.GetDeclaration(ctx, declID); err != nil {
		return model.Document{}, err
	}
	rec := documentRecord{
		ID:            uuid.NewString(),
		DeclarationID: declID,
		TypeKey:       string(typeKey),
		Payload:       datatypes.JSON(payload),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Document{}, err
	}
	return documentFromRecord(rec), nil
}

func (s *GormStore) ListDocuments(ctx context.Context, declID string) ([]model.Document, error) {
	var recs []documentRecord
	err := s.db.WithContext(ctx).
		Where("declaration_id = ?", declID).
		Order("created_at").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.Document, 0, len(recs))
	for _, rec := range recs {
		out = append(out, documentFromRecord(rec))
	}
	return out, nil
}

func (s *GormStore) DeleteDocuments(ctx context.Context, declID string, typeKey model.DocType) error {
	return s.db.WithContext(ctx).
		Delete(&documentRecord{}, "declaration_id = ? AND type_key = ?", declID, string(typeKey)).Error
}

func (s *GormStore) Overrides(ctx context.Context, declID string) (model.Overrides, error) {
	var rec overridesRecord
	err := s.db.WithContext(ctx).First(&rec, "declaration_id = ?", declID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Overrides{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := model.Overrides{}
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *GormStore) SaveOverrides(ctx context.Context, declID string, overrides model.Overrides) error {
	if overrides == nil {
		overrides = model.Overrides{}
	}
	raw, err := json.Marshal(overrides)
	if err != nil {
		return err
	}
	rec := overridesRecord{
		DeclarationID: declID,
		Data:          datatypes.JSON(raw),
		UpdatedAt:     time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *GormStore) Lock(declID string) func() {
	return s.locks.Lock(declID)
}

func (s *GormStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func declarationFromRecord(rec declarationRecord) model.Declaration {
	return model.Declaration{
		ID:        rec.ID,
		Name:      rec.Name,
		Date:      rec.Date,
		CreatedAt: rec.CreatedAt,
	}
}

func documentFromRecord(rec documentRecord) model.Document {
	return model.Document{
		ID:        rec.ID,
		TypeKey:   model.DocType(rec.TypeKey),
		Payload:   json.RawMessage(rec.Payload),
		CreatedAt: rec.CreatedAt,
	}
}
