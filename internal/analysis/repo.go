package analysis

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InsertAnalysis(ctx context.Context, a *TaxAnalysis) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repo) InsertRecommendation(ctx context.Context, rec *Recommendation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repo) GetLatestAnalysisByUser(ctx context.Context, userID uint64) (*TaxAnalysis, error) {
	var a TaxAnalysis
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) ListRecommendationsByAnalysis(ctx context.Context, analysisID uint64) ([]Recommendation, error) {
	var recs []Recommendation
	if err := r.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("id ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Job CRUD

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, analysisID uint64) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             JobSucceeded,
			"result_analysis_id": analysisID,
			"error":              nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             JobFailed,
			"error":              errMsg,
			"result_analysis_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id,
// idempotency_key) already exists, it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
