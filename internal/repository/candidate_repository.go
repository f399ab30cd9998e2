package repository

import (
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"taskbot/internal/model"
)

type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db}
}

func (r *CandidateRepository) CreateCandidate(c *model.Candidate) error {
	return r.db.Create(c).Error
}

func (r *CandidateRepository) UpdateCandidate(c *model.Candidate) error {
	return r.db.Save(c).Error
}

func (r *CandidateRepository) FindCandidateByUserID(userID string) (*model.Candidate, error) {
	var c model.Candidate
	err := r.db.First(&c, "user_id = ?", userID).Error
	return &c, err
}

func (r *CandidateRepository) GetCandidates() ([]model.Candidate, error) {
	var candidates []model.Candidate
	err := r.db.Find(&candidates).Error
	return candidates, err
}

// SearchCandidates narrows the ranking pool to the topK profiles closest to
// the task embedding. The exclusion rules and ordering policy stay with the
// ranker; this is only a pre-filter over a large pool.
func (r *CandidateRepository) SearchCandidates(embedding pgvector.Vector, topK int) ([]model.Candidate, error) {
	var candidates []model.Candidate

	err := r.db.Raw(`
        SELECT *, embedding <-> ? AS distance
        FROM candidates
        WHERE hours_available > 0
        ORDER BY embedding <-> ?
        LIMIT ?
    `, embedding, embedding, topK).Scan(&candidates).Error

	return candidates, err
}
