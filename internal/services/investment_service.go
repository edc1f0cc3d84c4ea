package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"referral-ledger/internal/models"
	"referral-ledger/pkg/common"
)

// NetworkJobs queues follow-up work for an investment: a later commission attempt, and a
// refresh of each sponsor's cached level stats.
type NetworkJobs interface {
	RetryCommission(ctx context.Context, investmentId int) error
	EnqueueRefreshStats(ctx context.Context, userId int) error
}

type InvestmentService struct {
	DB         *gorm.DB
	Helper     *HelperService
	Commission *CommissionService
	Jobs       NetworkJobs
}

func NewInvestmentService(db *gorm.DB, helper *HelperService, commission *CommissionService, jobs NetworkJobs) *InvestmentService {
	return &InvestmentService{DB: db, Helper: helper, Commission: commission, Jobs: jobs}
}

type CreateProjectDTO struct {
	Name         string               `json:"name" binding:"required"`
	TargetAmount decimal.Decimal      `json:"target_amount"`
	ReturnRate   decimal.Decimal      `json:"return_rate"`
	Status       models.ProjectStatus `json:"status"`
}

func (s *InvestmentService) CreateProject(ctx context.Context, data CreateProjectDTO) (*models.Project, error) {
	if data.Name == "" || !data.TargetAmount.IsPositive() || data.ReturnRate.IsNegative() {
		return nil, fmt.Errorf("project needs a name, a positive target and a non-negative rate: %w", ErrInvalidState)
	}
	status := data.Status
	if status == "" {
		status = models.ProjectComingSoon
	}
	if status != models.ProjectComingSoon && status != models.ProjectOpen {
		return nil, fmt.Errorf("new project cannot start as %s: %w", status, ErrInvalidState)
	}

	project := models.Project{
		Name:         data.Name,
		TargetAmount: data.TargetAmount,
		RaisedAmount: decimal.Zero,
		ReturnRate:   data.ReturnRate,
		Status:       status,
	}
	if err := s.DB.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *InvestmentService) GetProject(ctx context.Context, projectId int) (*models.Project, error) {
	var project models.Project
	if err := s.DB.WithContext(ctx).Take(&project, projectId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %d: %w", projectId, ErrNotFound)
		}
		return nil, err
	}
	return &project, nil
}

func (s *InvestmentService) ListProjects(ctx context.Context, status string, page, limit int) (common.PaginationResult, error) {
	page, limit, offset := common.NormalizePage(page, limit)

	query := s.DB.WithContext(ctx).Model(&models.Project{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}
	var projects []models.Project
	if err := query.Order("id").Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
		return common.PaginationResult{}, err
	}
	return common.PaginateResponse(projects, total, page, limit, "Successful"), nil
}

var projectTransitions = map[models.ProjectStatus][]models.ProjectStatus{
	models.ProjectComingSoon: {models.ProjectOpen},
	models.ProjectOpen:       {models.ProjectFunded, models.ProjectCompleted},
	models.ProjectFunded:     {models.ProjectCompleted},
}

// UpdateProjectStatus applies an operator status change. Status only moves forward and
// FUNDED requires the target to be met.
func (s *InvestmentService) UpdateProjectStatus(ctx context.Context, projectId int, status models.ProjectStatus) (*models.Project, error) {
	project, err := s.GetProject(ctx, projectId)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range projectTransitions[project.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("project %d cannot move from %s to %s: %w", projectId, project.Status, status, ErrInvalidState)
	}
	if status == models.ProjectFunded && project.RaisedAmount.LessThan(project.TargetAmount) {
		return nil, fmt.Errorf("project %d raised %s of %s: %w", projectId, project.RaisedAmount, project.TargetAmount, ErrInvalidState)
	}

	res := s.DB.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND status = ?", projectId, project.Status).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("project %d changed concurrently: %w", projectId, ErrInvalidState)
	}
	project.Status = status
	return project, nil
}

type InvestDTO struct {
	UserId    int             `json:"-"`
	ProjectId int             `json:"project_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type InvestResult struct {
	Investment  models.Investment `json:"investment"`
	Commissions []CommissionShare `json:"commissions"`
}

// Invest debits the investor and records the investment in one transaction, then pays
// sponsors. A commission failure never undoes the investment.
func (s *InvestmentService) Invest(ctx context.Context, data InvestDTO) (*InvestResult, error) {
	if !data.Amount.IsPositive() {
		return nil, fmt.Errorf("investment amount %s: %w", data.Amount, ErrInvalidState)
	}

	var investment models.Investment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Take(&project, data.ProjectId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("project %d: %w", data.ProjectId, ErrNotFound)
			}
			return err
		}
		if project.Status != models.ProjectOpen {
			return fmt.Errorf("project %d is %s: %w", project.ID, project.Status, ErrInvalidState)
		}

		user, err := s.Helper.findUser(tx, data.UserId)
		if err != nil {
			return err
		}
		if user.Status == models.UserStatusBanned {
			return fmt.Errorf("user %d is banned: %w", user.ID, ErrInvalidState)
		}

		if err := s.Helper.DebitWallet(tx, user.ID, data.Amount); err != nil {
			return err
		}

		investment = models.Investment{
			UserId:         user.ID,
			ProjectId:      project.ID,
			Amount:         data.Amount,
			Status:         models.InvestmentActive,
			ExpectedReturn: data.Amount.Mul(project.ReturnRate).RoundBank(2),
		}
		if err := tx.Create(&investment).Error; err != nil {
			return err
		}

		_, err = s.Helper.SaveTransaction(tx, TransactionData{
			UserId:       user.ID,
			Type:         models.TransactionInvestment,
			Amount:       data.Amount,
			Status:       models.TransactionApproved,
			Description:  fmt.Sprintf("Investment in %s", project.Name),
			InvestmentId: &investment.ID,
		})
		if err != nil {
			return err
		}

		if err := s.Helper.AddTotalInvested(tx, user.ID, data.Amount); err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", project.ID).
			UpdateColumn("raised_amount", gorm.Expr("raised_amount + ?", data.Amount)).Error; err != nil {
			return err
		}
		return tx.Model(&models.Project{}).
			Where("id = ? AND status = ? AND raised_amount >= target_amount", project.ID, models.ProjectOpen).
			UpdateColumn("status", models.ProjectFunded).Error
	})
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"investment_id": investment.ID,
		"user_id":       investment.UserId,
		"project_id":    investment.ProjectId,
		"amount":        investment.Amount.String(),
	})
	log.Info("Investment recorded")

	defer s.refreshSponsorStats(ctx, investment.UserId)

	result := &InvestResult{Investment: investment, Commissions: []CommissionShare{}}
	shares, err := s.Commission.DistributeForInvestment(ctx, investment.ID)
	if err != nil {
		log.WithError(err).Warn("Commission distribution failed")
		if s.Jobs != nil {
			if err := s.Jobs.RetryCommission(ctx, investment.ID); err != nil {
				log.WithError(err).Error("Failed to queue commission retry")
			}
		}
		return result, nil
	}
	result.Commissions = shares
	return result, nil
}

// CancelInvestment refunds the principal. Commissions already paid stay paid and a FUNDED
// project stays FUNDED.
func (s *InvestmentService) CancelInvestment(ctx context.Context, investmentId int) (*models.Investment, error) {
	var investment models.Investment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&investment, investmentId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("investment %d: %w", investmentId, ErrNotFound)
			}
			return err
		}

		res := tx.Model(&models.Investment{}).
			Where("id = ? AND status = ?", investmentId, models.InvestmentActive).
			Update("status", models.InvestmentCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("investment %d is %s: %w", investmentId, investment.Status, ErrInvalidState)
		}
		investment.Status = models.InvestmentCancelled

		_, err := s.Helper.SaveTransaction(tx, TransactionData{
			UserId:       investment.UserId,
			Type:         models.TransactionRefund,
			Amount:       investment.Amount,
			Status:       models.TransactionApproved,
			Description:  fmt.Sprintf("Refund of investment %d", investment.ID),
			InvestmentId: &investment.ID,
		})
		if err != nil {
			return err
		}
		if err := s.Helper.CreditWallet(tx, investment.UserId, investment.Amount); err != nil {
			return err
		}
		if err := s.Helper.AddTotalInvested(tx, investment.UserId, investment.Amount.Neg()); err != nil {
			return err
		}
		return tx.Model(&models.Project{}).Where("id = ?", investment.ProjectId).
			UpdateColumn("raised_amount", gorm.Expr("raised_amount - ?", investment.Amount)).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"investment_id": investment.ID,
		"user_id":       investment.UserId,
		"amount":        investment.Amount.String(),
	}).Info("Investment cancelled")

	s.refreshSponsorStats(ctx, investment.UserId)
	return &investment, nil
}

// refreshSponsorStats queues a level-stat refresh for every sponsor within MaxLevels of
// userId. Failures are logged; reconciliation rebuilds the stats anyway.
func (s *InvestmentService) refreshSponsorStats(ctx context.Context, userId int) {
	if s.Jobs == nil {
		return
	}

	sponsors, err := s.Commission.Tree.Ancestors(ctx, userId, MaxLevels)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userId).Warn("Failed to resolve sponsors for stats refresh")
	}
	for _, sponsorId := range sponsors {
		if err := s.Jobs.EnqueueRefreshStats(ctx, sponsorId); err != nil {
			logrus.WithError(err).WithField("user_id", sponsorId).Warn("Failed to queue stats refresh")
		}
	}
}

func (s *InvestmentService) GetInvestment(ctx context.Context, investmentId int) (*models.Investment, error) {
	var investment models.Investment
	if err := s.DB.WithContext(ctx).Take(&investment, investmentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("investment %d: %w", investmentId, ErrNotFound)
		}
		return nil, err
	}
	return &investment, nil
}
