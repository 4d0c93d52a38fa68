package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/arsip-go-api/internal/models"
)

// ErrImmutableRecord is returned by every attempt to modify a stored
// tracking record. The audit trail is append-only; this is a hard contract.
var ErrImmutableRecord = errors.New("tracking records are immutable and cannot be updated")

// ErrRecordNotFound is returned when a tracking record does not exist.
var ErrRecordNotFound = errors.New("tracking record not found")

// TrackingFilter narrows tracking record queries. Zero-valued fields impose
// no constraint.
type TrackingFilter struct {
	UserID     string
	StudentID  string
	DocumentID string
	ActionType models.ActionType
	IPAddress  string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ActionTypeCount is one row of a per-action-type aggregate.
type ActionTypeCount struct {
	ActionType models.ActionType `json:"action_type"`
	Count      int64             `json:"count"`
}

// UserCount is one row of a per-user aggregate.
type UserCount struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

// DailyCount is one day of an activity time series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ActivityStats aggregates tracking records over a trailing window.
type ActivityStats struct {
	TotalActions  int64             `json:"total_actions"`
	ActionsByType []ActionTypeCount `json:"actions_by_type"`
	ActionsByUser []UserCount       `json:"actions_by_user,omitempty"`
	DailyActivity []DailyCount      `json:"daily_activity"`
}

// TrackingRepository persists and queries the audit trail.
type TrackingRepository interface {
	Create(ctx context.Context, record *models.TrackingRecord) error
	Update(ctx context.Context, record *models.TrackingRecord) error
	GetByID(ctx context.Context, id string) (models.TrackingRecord, error)
	List(ctx context.Context, filter TrackingFilter) ([]models.TrackingRecord, int64, error)
	ListByStudent(ctx context.Context, studentID string, page, pageSize int) ([]models.TrackingRecord, int64, error)
	ListByDocument(ctx context.Context, documentID string, page, pageSize int) ([]models.TrackingRecord, int64, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.TrackingRecord, int64, error)
	ListByActionType(ctx context.Context, action models.ActionType, page, pageSize int) ([]models.TrackingRecord, int64, error)
	Recent(ctx context.Context, limit int) ([]models.TrackingRecord, error)
	UserStats(ctx context.Context, userID string, days int) (ActivityStats, error)
	SystemStats(ctx context.Context, days int) (ActivityStats, error)
	CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error)
}

type trackingRepository struct {
	db *gorm.DB
}

// NewTrackingRepository constructs the tracking repository.
func NewTrackingRepository(db *gorm.DB) TrackingRepository {
	return &trackingRepository{db: db}
}

func (r *trackingRepository) Create(ctx context.Context, record *models.TrackingRecord) error {
	if result := record.Validate(); !result.Valid {
		return fmt.Errorf("invalid tracking record: %s", strings.Join(result.Errors, "; "))
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to persist tracking record: %w", err)
	}
	return nil
}

// Update unconditionally fails: the trail is append-only.
func (r *trackingRepository) Update(ctx context.Context, record *models.TrackingRecord) error {
	return ErrImmutableRecord
}

func (r *trackingRepository) GetByID(ctx context.Context, id string) (models.TrackingRecord, error) {
	var record models.TrackingRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TrackingRecord{}, ErrRecordNotFound
		}
		return models.TrackingRecord{}, fmt.Errorf("failed to fetch tracking record: %w", err)
	}
	return record, nil
}

// sortColumns whitelists caller-specified sort keys.
var sortColumns = map[string]string{
	"created_at":  "created_at",
	"action_type": "action_type",
	"user_id":     "user_id",
	"ip_address":  "ip_address",
}

func (f TrackingFilter) orderClause() string {
	column, ok := sortColumns[strings.ToLower(strings.TrimSpace(f.SortBy))]
	if !ok {
		column = "created_at"
	}

	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(f.SortOrder), "asc") {
		direction = "ASC"
	}

	// Ties broken by id so ordering stays stable under concurrent inserts.
	return fmt.Sprintf("%s %s, id %s", column, direction, direction)
}

func (r *trackingRepository) filtered(ctx context.Context, filter TrackingFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.TrackingRecord{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.StudentID != "" {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.DocumentID != "" {
		query = query.Where("document_id = ?", filter.DocumentID)
	}
	if filter.ActionType != "" {
		query = query.Where("action_type = ?", filter.ActionType)
	}
	if filter.IPAddress != "" {
		query = query.Where("ip_address = ?", filter.IPAddress)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	return query
}

func (r *trackingRepository) List(ctx context.Context, filter TrackingFilter) ([]models.TrackingRecord, int64, error) {
	base := r.filtered(ctx, filter)

	// The count and the page are independent reads; issue them concurrently.
	var (
		total   int64
		records []models.TrackingRecord
	)

	group, groupCtx := errgroup.WithContext(ctx)

	countQuery := base.Session(&gorm.Session{})
	group.Go(func() error {
		if err := countQuery.WithContext(groupCtx).Count(&total).Error; err != nil {
			return fmt.Errorf("failed to count tracking records: %w", err)
		}
		return nil
	})

	pageQuery := base.Session(&gorm.Session{}).Order(filter.orderClause())
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		pageQuery = pageQuery.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	group.Go(func() error {
		if err := pageQuery.WithContext(groupCtx).Find(&records).Error; err != nil {
			return fmt.Errorf("failed to list tracking records: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *trackingRepository) ListByStudent(ctx context.Context, studentID string, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return r.List(ctx, TrackingFilter{StudentID: studentID, Page: page, PageSize: pageSize})
}

func (r *trackingRepository) ListByDocument(ctx context.Context, documentID string, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return r.List(ctx, TrackingFilter{DocumentID: documentID, Page: page, PageSize: pageSize})
}

func (r *trackingRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return r.List(ctx, TrackingFilter{UserID: userID, Page: page, PageSize: pageSize})
}

func (r *trackingRepository) ListByActionType(ctx context.Context, action models.ActionType, page, pageSize int) ([]models.TrackingRecord, int64, error) {
	return r.List(ctx, TrackingFilter{ActionType: action, Page: page, PageSize: pageSize})
}

func (r *trackingRepository) Recent(ctx context.Context, limit int) ([]models.TrackingRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	var records []models.TrackingRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tracking records: %w", err)
	}
	return records, nil
}

// dayExpression returns the SQL expression that buckets created_at into a
// YYYY-MM-DD string for the connected dialect.
func (r *trackingRepository) dayExpression() string {
	if r.db.Dialector.Name() == "sqlite" {
		return "strftime('%Y-%m-%d', created_at)"
	}
	return "to_char(created_at, 'YYYY-MM-DD')"
}

func (r *trackingRepository) UserStats(ctx context.Context, userID string, days int) (ActivityStats, error) {
	return r.stats(ctx, days, userID, false)
}

func (r *trackingRepository) SystemStats(ctx context.Context, days int) (ActivityStats, error) {
	return r.stats(ctx, days, "", true)
}

func (r *trackingRepository) stats(ctx context.Context, days int, userID string, includeUsers bool) (ActivityStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	windowed := func(ctx context.Context) *gorm.DB {
		query := r.db.WithContext(ctx).
			Model(&models.TrackingRecord{}).
			Where("created_at >= ?", since)
		if userID != "" {
			query = query.Where("user_id = ?", userID)
		}
		return query
	}

	var stats ActivityStats
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := windowed(groupCtx).Count(&stats.TotalActions).Error; err != nil {
			return fmt.Errorf("failed to count actions: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		err := windowed(groupCtx).
			Select("action_type, COUNT(*) AS count").
			Group("action_type").
			Order("count DESC").
			Scan(&stats.ActionsByType).Error
		if err != nil {
			return fmt.Errorf("failed to aggregate actions by type: %w", err)
		}
		return nil
	})

	if includeUsers {
		group.Go(func() error {
			err := windowed(groupCtx).
				Select("user_id, COUNT(*) AS count").
				Group("user_id").
				Order("count DESC").
				Limit(10).
				Scan(&stats.ActionsByUser).Error
			if err != nil {
				return fmt.Errorf("failed to aggregate actions by user: %w", err)
			}
			return nil
		})
	}

	day := r.dayExpression()
	group.Go(func() error {
		err := windowed(groupCtx).
			Select(day + " AS date, COUNT(*) AS count").
			Group(day).
			Order("date DESC").
			Scan(&stats.DailyActivity).Error
		if err != nil {
			return fmt.Errorf("failed to aggregate daily activity: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return ActivityStats{}, err
	}

	return stats, nil
}

func (r *trackingRepository) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.TrackingRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up tracking records: %w", result.Error)
	}

	return result.RowsAffected, nil
}
