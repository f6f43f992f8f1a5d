package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/reconcile"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationMismatch = errors.New("user belongs to a different organization")
	ErrPersistence          = errors.New("saving report failed")
)

// Coordinator owns every database read and write the pipeline makes.
type Coordinator struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewCoordinator(db *gorm.DB, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{db: db, logger: logger, now: time.Now}
}

// Lookup resolves the organization and the requesting user. A user with no
// organization may generate for any organization; a user with one may only
// generate for their own.
func (c *Coordinator) Lookup(ctx context.Context, orgID, userID uuid.UUID) (*models.Organization, *models.User, error) {
	return lookup(c.db.WithContext(ctx), orgID, userID)
}

func lookup(db *gorm.DB, orgID, userID uuid.UUID) (*models.Organization, *models.User, error) {
	var org models.Organization
	if err := db.Where("id = ?", orgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrOrganizationNotFound, orgID)
		}
		return nil, nil, fmt.Errorf("%w: loading organization: %w", ErrPersistence, err)
	}

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return nil, nil, fmt.Errorf("%w: loading user: %w", ErrPersistence, err)
	}

	if user.OrganizationID != nil && *user.OrganizationID != org.ID {
		return nil, nil, ErrOrganizationMismatch
	}

	return &org, &user, nil
}

// ExistingRisks returns the organization's open risks, most severe first.
func (c *Coordinator) ExistingRisks(ctx context.Context, orgID uuid.UUID) ([]models.Risk, error) {
	var risks []models.Risk
	err := c.db.WithContext(ctx).
		Where("organization_id = ? AND is_archived = ?", orgID, false).
		Order("severity_rank DESC").
		Order("created_at ASC").
		Find(&risks).Error
	if err != nil {
		return nil, fmt.Errorf("%w: loading existing risks: %w", ErrPersistence, err)
	}
	return risks, nil
}

// Submission is everything produced by one pipeline run.
type Submission struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Format         models.ReportFormat
	Payload        datatypes.JSON
	StartedAt      time.Time
	Findings       []reconcile.Finding
}

// ReportName is the display name given to a report completed on day.
func ReportName(orgName string, day time.Time) string {
	return fmt.Sprintf("Security Assessment - %s - %s", orgName, day.Format("2006-01-02"))
}

// Persist writes the report and one risk row per finding in a single
// transaction. Nothing is kept if any insert fails.
func (c *Coordinator) Persist(ctx context.Context, sub Submission) (*models.Report, error) {
	var report *models.Report

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, user, err := lookup(tx, sub.OrganizationID, sub.UserID)
		if err != nil {
			return err
		}

		completed := c.now().UTC()
		started := sub.StartedAt.UTC()
		if sub.StartedAt.IsZero() {
			started = completed
		}

		report = &models.Report{
			UserID:         user.ID,
			OrganizationID: org.ID,
			Name:           ReportName(org.Name, completed),
			Format:         sub.Format,
			StartedAt:      started,
			CompletedAt:    &completed,
			Payload:        sub.Payload,
		}
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("%w: creating report: %w", ErrPersistence, err)
		}

		for i, f := range sub.Findings {
			risk := f.ToRisk(report.ID, org.ID)
			if err := tx.Create(&risk).Error; err != nil {
				return fmt.Errorf("%w: creating risk %d (%s): %w", ErrPersistence, i+1, f.Name, err)
			}
			report.Risks = append(report.Risks, risk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("report persisted",
		"report_id", report.ID,
		"org_id", report.OrganizationID,
		"risks", len(report.Risks),
	)
	return report, nil
}
