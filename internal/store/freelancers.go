package store

import (
	"context"
	"time"
)

// FreelancerFilter narrows ListFreelancers.
type FreelancerFilter struct {
	Skill         string
	AvailableOnly bool
	Limit         int
	Offset        int
}

func (s *Store) CreateFreelancer(ctx context.Context, f *Freelancer) error {
	return translateError(s.db.WithContext(ctx).Create(f).Error)
}

func (s *Store) GetFreelancerByID(ctx context.Context, id uint) (*Freelancer, error) {
	var f Freelancer
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &f, nil
}

func (s *Store) GetFreelancerByEmail(ctx context.Context, email string) (*Freelancer, error) {
	var f Freelancer
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&f).Error; err != nil {
		return nil, translateError(err)
	}
	return &f, nil
}

func (s *Store) ListFreelancers(ctx context.Context, f FreelancerFilter) ([]Freelancer, int64, error) {
	q := s.db.WithContext(ctx).Model(&Freelancer{})
	if f.Skill != "" {
		q = q.Where("JSON_CONTAINS(skills, JSON_QUOTE(?))", f.Skill)
	}
	if f.AvailableOnly {
		q = q.Where("available = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var freelancers []Freelancer
	err := q.Order("rating DESC, completed_projects DESC").Limit(f.Limit).Offset(f.Offset).Find(&freelancers).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return freelancers, total, nil
}

// ListAllFreelancers streams every profile, used by reindex jobs.
func (s *Store) ListAllFreelancers(ctx context.Context) ([]Freelancer, error) {
	var freelancers []Freelancer
	if err := s.db.WithContext(ctx).Find(&freelancers).Error; err != nil {
		return nil, translateError(err)
	}
	return freelancers, nil
}

func (s *Store) UpdateFreelancer(ctx context.Context, f *Freelancer) error {
	return translateError(s.db.WithContext(ctx).Save(f).Error)
}

// VerifyFreelancer marks a profile verified exactly once.
func (s *Store) VerifyFreelancer(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Freelancer{}).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]any{"verified": true, "verified_at": &now})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) CountFreelancers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Freelancer{}).Count(&n).Error
	return n, translateError(err)
}
