package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"referral-ledger/internal/metrics"
	"referral-ledger/internal/models"
)

// commissionRates is indexed by level. The same table drives distribution and level stats.
var commissionRates = [MaxLevels + 1]decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("0.05"),
	decimal.RequireFromString("0.03"),
	decimal.RequireFromString("0.02"),
	decimal.RequireFromString("0.01"),
	decimal.RequireFromString("0.005"),
}

// LevelRate returns the commission rate for a level, zero outside 1..MaxLevels.
func LevelRate(level int) decimal.Decimal {
	if level < 1 || level > MaxLevels {
		return decimal.Zero
	}
	return commissionRates[level]
}

// LevelPercent is the display label of a level's rate, e.g. "0.5%".
func LevelPercent(level int) string {
	return LevelRate(level).Mul(decimal.NewFromInt(100)).String() + "%"
}

// CommissionFor is amount × rate[level], rounded half-even to cents.
func CommissionFor(amount decimal.Decimal, level int) decimal.Decimal {
	return amount.Mul(LevelRate(level)).RoundBank(2)
}

type CommissionShare struct {
	SponsorId int             `json:"sponsor_id"`
	Level     int             `json:"level"`
	Amount    decimal.Decimal `json:"amount"`

	recorded bool // paid by an earlier call
}

// errAlreadyPaid marks a level whose COMMISSION row for the investment already exists.
var errAlreadyPaid = errors.New("commission already paid")

type CommissionService struct {
	DB     *gorm.DB
	Helper *HelperService
	Tree   *ReferralTree
}

func NewCommissionService(db *gorm.DB, helper *HelperService, tree *ReferralTree) *CommissionService {
	return &CommissionService{
		DB:     db,
		Helper: helper,
		Tree:   tree,
	}
}

// DistributeCommissions credits up to MaxLevels sponsors of investorId for an investment of amount.
func (s *CommissionService) DistributeCommissions(ctx context.Context, investorId int, amount decimal.Decimal) ([]CommissionShare, error) {
	return s.distribute(ctx, investorId, amount, nil)
}

// DistributeForInvestment runs the distribution for a recorded investment. Each level is paid
// at most once per investment; levels already on the ledger are returned as recorded.
func (s *CommissionService) DistributeForInvestment(ctx context.Context, investmentId int) ([]CommissionShare, error) {
	var investment models.Investment
	if err := s.DB.WithContext(ctx).Take(&investment, investmentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("investment %d: %w", investmentId, ErrNotFound)
		}
		return nil, err
	}
	if investment.Status != models.InvestmentActive {
		return nil, fmt.Errorf("investment %d is %s: %w", investmentId, investment.Status, ErrInvalidState)
	}

	return s.distribute(ctx, investment.UserId, investment.Amount, &investment.ID)
}

// PreviewCommissions walks the same chain as DistributeCommissions without writing.
func (s *CommissionService) PreviewCommissions(ctx context.Context, investorId int, amount decimal.Decimal) ([]CommissionShare, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("commission amount %s: %w", amount, ErrInvalidState)
	}

	sponsors, err := s.Tree.Ancestors(ctx, investorId, MaxLevels)
	if err != nil {
		return nil, err
	}

	shares := make([]CommissionShare, 0, len(sponsors))
	for i, sponsorId := range sponsors {
		level := i + 1
		shares = append(shares, CommissionShare{SponsorId: sponsorId, Level: level, Amount: CommissionFor(amount, level)})
	}
	return shares, nil
}

func (s *CommissionService) distribute(ctx context.Context, investorId int, amount decimal.Decimal, investmentId *int) ([]CommissionShare, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("commission amount %s: %w", amount, ErrInvalidState)
	}
	if _, err := s.Tree.Parent(ctx, investorId); err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{"investor_id": investorId, "amount": amount.String()})
	if investmentId != nil {
		log = log.WithField("investment_id", *investmentId)
	}

	shares := make([]CommissionShare, 0, MaxLevels)
	current := investorId
	for level := 1; level <= MaxLevels; level++ {
		var (
			sponsorId int
			share     *CommissionShare
		)

		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			parent, err := s.Tree.WithTx(tx).Parent(ctx, current)
			if err != nil || parent == nil {
				return err
			}
			sponsorId = *parent

			if _, err := s.Helper.findUser(tx, sponsorId); err != nil {
				return err
			}

			commission := CommissionFor(amount, level)
			if !commission.IsPositive() {
				return nil
			}

			source := investorId
			_, err = s.Helper.SaveTransaction(tx, TransactionData{
				UserId:       sponsorId,
				Type:         models.TransactionCommission,
				Amount:       commission,
				Status:       models.TransactionApproved,
				Description:  fmt.Sprintf("Level %d commission from user %d", level, investorId),
				InvestmentId: investmentId,
				Level:        level,
				SourceUserId: &source,
			})
			if err != nil {
				if investmentId != nil && isDuplicateKey(err) {
					return errAlreadyPaid
				}
				return err
			}
			if err := s.Helper.CreditWallet(tx, sponsorId, commission); err != nil {
				return err
			}

			share = &CommissionShare{SponsorId: sponsorId, Level: level, Amount: commission}
			return nil
		})
		if errors.Is(err, errAlreadyPaid) {
			recorded, lookupErr := s.recordedShare(ctx, *investmentId, level)
			if lookupErr != nil {
				err = lookupErr
			} else {
				log.WithField("commission_level", level).Info("Commission already recorded")
				share, err = recorded, nil
			}
		}
		if err != nil {
			metrics.CommissionFailures.Inc()
			log.WithError(err).WithField("commission_level", level).Warn("Commission distribution stopped")
			break
		}
		if sponsorId == 0 {
			break
		}
		if share != nil {
			shares = append(shares, *share)
			if !share.recorded {
				metrics.CommissionsDistributed.WithLabelValues(strconv.Itoa(level)).Inc()
			}
		}
		current = sponsorId
	}

	log.WithField("levels", len(shares)).Info("Commissions distributed")
	return shares, nil
}

func (s *CommissionService) recordedShare(ctx context.Context, investmentId, level int) (*CommissionShare, error) {
	var trx models.Transaction
	err := s.DB.WithContext(ctx).
		Where("investment_id = ? AND level = ? AND type = ?", investmentId, level, models.TransactionCommission).
		Take(&trx).Error
	if err != nil {
		return nil, err
	}
	return &CommissionShare{SponsorId: trx.UserId, Level: trx.Level, Amount: trx.Amount, recorded: true}, nil
}

// isDuplicateKey reports a unique-key violation from any of the supported stores.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
