package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

// GormRepository is the production Repository backed by Postgres.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// GetDBConnection gets a connection to the database specified by env.
func GetDBConnection() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASS"), os.Getenv("DB_NAME"), os.Getenv("DB_PORT"))
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func DatabaseSetupAndMigration(db *gorm.DB) error {
	return db.AutoMigrate(&model.Source{}, &model.RawItem{}, &model.Story{}, &model.StoryItem{})
}

func (r *GormRepository) SaveStory(story *model.Story) error {
	res := r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(story)
	return errors.Wrap(res.Error, "fail to save story")
}

func (r *GormRepository) FindStoryByHash(hash string) (*model.Story, error) {
	var story model.Story
	res := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("identity_hash = ?", hash).First(&story)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to query story by hash")
	}
	return &story, nil
}

func (r *GormRepository) FindStoriesUpdatedSince(since time.Time) ([]*model.Story, error) {
	var stories []*model.Story
	res := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).
		Where("last_updated_at >= ?", since).
		Order("last_updated_at DESC, id ASC").
		Find(&stories)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to query recent stories")
	}
	return stories, nil
}

func (r *GormRepository) SaveRawItem(item *model.RawItem) error {
	// Re-fetching an already stored item should be a no-op, not an error.
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(item)
	return errors.Wrap(res.Error, "fail to save raw item")
}

func (r *GormRepository) GetSource(handle string) (*model.Source, error) {
	var source model.Source
	res := r.db.Where("handle = ?", handle).First(&source)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to query source")
	}
	return &source, nil
}

func (r *GormRepository) ListActiveSources() ([]model.Source, error) {
	var sources []model.Source
	res := r.db.Where("active = ?", true).Order("handle ASC").Find(&sources)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to list active sources")
	}
	return sources, nil
}

func (r *GormRepository) UpsertSource(source *model.Source) error {
	// Reliability is a learned value, never reset it on re-seed.
	res := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "handle"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "kind", "feed_url", "tier", "region", "language", "active",
		}),
	}).Create(source)
	return errors.Wrap(res.Error, "fail to upsert source")
}

func (r *GormRepository) UpdateSourceReliability(handle string, score float64) error {
	res := r.db.Model(&model.Source{}).Where("handle = ?", handle).Update("reliability", score)
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to update source reliability")
	}
	if res.RowsAffected == 0 {
		return errors.Errorf("unknown source %s", handle)
	}
	return nil
}
