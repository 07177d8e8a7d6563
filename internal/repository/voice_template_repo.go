package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoiceTemplateRepo is the repository for saved voice messages
type VoiceTemplateRepo struct {
	db *gorm.DB
}

// NewVoiceTemplateRepo creates a new VoiceTemplateRepo
func NewVoiceTemplateRepo(db *gorm.DB) *VoiceTemplateRepo {
	return &VoiceTemplateRepo{db: db}
}

// Save creates or replaces a template by name
func (r *VoiceTemplateRepo) Save(ctx context.Context, tmpl *entity.VoiceTemplate) error {
	if tmpl.CreatedAt == 0 {
		tmpl.CreatedAt = entity.NowUnixMilli()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_id", "duration", "created_at"}),
	}).Create(tmpl).Error
}

// Get gets a template by name. Returns nil when absent.
func (r *VoiceTemplateRepo) Get(ctx context.Context, name string) (*entity.VoiceTemplate, error) {
	var tmpl entity.VoiceTemplate
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

// List lists all templates by name
func (r *VoiceTemplateRepo) List(ctx context.Context) ([]*entity.VoiceTemplate, error) {
	var tmpls []*entity.VoiceTemplate
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tmpls).Error
	if err != nil {
		return nil, err
	}
	return tmpls, nil
}

// Delete deletes a template and reports whether it existed
func (r *VoiceTemplateRepo) Delete(ctx context.Context, name string) (bool, error) {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&entity.VoiceTemplate{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
