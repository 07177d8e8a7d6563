package repository

import (
	"context"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"gorm.io/gorm"
)

// NoteRepo is the repository for admin notes
type NoteRepo struct {
	db *gorm.DB
}

// NewNoteRepo creates a new NoteRepo
func NewNoteRepo(db *gorm.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// Add adds a note
func (r *NoteRepo) Add(ctx context.Context, note *entity.Note) error {
	if note.CreatedAt == 0 {
		note.CreatedAt = entity.NowUnixMilli()
	}
	return r.db.WithContext(ctx).Create(note).Error
}

// Latest gets the newest notes of a user
func (r *NoteRepo) Latest(ctx context.Context, userId int64, limit int) ([]*entity.Note, error) {
	var notes []*entity.Note
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}
