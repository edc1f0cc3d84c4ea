package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"referral-ledger/internal/lock"
	"referral-ledger/internal/metrics"
	"referral-ledger/internal/models"
)

const (
	TriggerCron     = "cron"
	TriggerOperator = "operator"
	TriggerWorker   = "worker"

	reconciliationLockKey = "lock:network-reconciliation"
	reconciliationLockTTL = 30 * time.Minute
	reconcileBatchSize    = 1000
)

var driftTolerance = decimal.RequireFromString("0.01")

// drifted reports whether stored and expected differ by more than a cent.
func drifted(stored, expected decimal.Decimal) bool {
	return stored.Sub(expected).Abs().GreaterThan(driftTolerance)
}

type DriftReport struct {
	UserId     int             `json:"user_id"`
	Stored     decimal.Decimal `json:"stored"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"` // stored minus expected
}

func newDriftReport(userId int, stored, expected decimal.Decimal) DriftReport {
	return DriftReport{
		UserId:     userId,
		Stored:     stored,
		Expected:   expected,
		Difference: stored.Sub(expected),
	}
}

type ReconciliationSummary struct {
	RunId                    string        `json:"run_id"`
	Trigger                  string        `json:"trigger"`
	UsersCorrected           int           `json:"users_corrected"`
	ProjectsCorrected        int           `json:"projects_corrected"`
	DriftReportedButNotFixed int           `json:"drift_reported_but_not_fixed"`
	StatsUpserted            int           `json:"stats_upserted"`
	Failures                 int           `json:"failures"`
	Drift                    []DriftReport `json:"drift"`
	StartedAt                time.Time     `json:"started_at"`
	FinishedAt               time.Time     `json:"finished_at"`
}

// ReconciliationService rebuilds every derived figure from raw investments and transactions.
// It never rewrites wallet balances; see CorrectWalletDrift.
type ReconciliationService struct {
	DB     *gorm.DB
	Ranks  *RankEvaluator
	Locker lock.Locker

	group singleflight.Group
}

// NewReconciliationService accepts a nil locker for single-instance deployments.
func NewReconciliationService(db *gorm.DB, ranks *RankEvaluator, locker lock.Locker) *ReconciliationService {
	return &ReconciliationService{DB: db, Ranks: ranks, Locker: locker}
}

// RunReconciliation runs the five stages. Concurrent callers in this process share one run;
// a run held by another instance yields ErrJobRunning.
func (s *ReconciliationService) RunReconciliation(ctx context.Context, trigger string) (*ReconciliationSummary, error) {
	v, err, shared := s.group.Do("reconciliation", func() (interface{}, error) {
		return s.run(ctx, trigger)
	})
	if shared {
		logrus.WithField("trigger", trigger).Debug("Joined in-flight reconciliation")
	}
	summary, _ := v.(*ReconciliationSummary)
	return summary, err
}

func (s *ReconciliationService) run(ctx context.Context, trigger string) (*ReconciliationSummary, error) {
	if s.Locker != nil {
		release, err := s.Locker.Acquire(ctx, reconciliationLockKey, reconciliationLockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				metrics.ReconciliationRuns.WithLabelValues(trigger, "skipped").Inc()
				return nil, ErrJobRunning
			}
			return nil, fmt.Errorf("acquire reconciliation lock: %w", err)
		}
		defer release()
	}

	summary := &ReconciliationSummary{
		RunId:     uuid.NewString(),
		Trigger:   trigger,
		Drift:     []DriftReport{},
		StartedAt: time.Now(),
	}
	log := logrus.WithFields(logrus.Fields{"run_id": summary.RunId, "trigger": trigger})
	log.Info("Starting network reconciliation")

	db := s.DB.WithContext(ctx)
	run := models.ReconciliationRun{RunId: summary.RunId, Trigger: trigger, StartedAt: summary.StartedAt}
	if err := db.Create(&run).Error; err != nil {
		log.WithError(err).Warn("Failed to record reconciliation run")
	}

	err := s.reconcile(ctx, summary, log)
	summary.FinishedAt = time.Now()

	if run.ID != 0 {
		finished := summary.FinishedAt
		updateErr := db.Model(&run).Updates(map[string]interface{}{
			"users_corrected":    summary.UsersCorrected,
			"projects_corrected": summary.ProjectsCorrected,
			"drift_reported":     summary.DriftReportedButNotFixed,
			"failures":           summary.Failures,
			"finished_at":        &finished,
		}).Error
		if updateErr != nil {
			log.WithError(updateErr).Warn("Failed to finish reconciliation run record")
		}
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ReconciliationRuns.WithLabelValues(trigger, result).Inc()
	metrics.ReconciliationDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	metrics.ReconciliationCorrections.WithLabelValues("users").Add(float64(summary.UsersCorrected))
	metrics.ReconciliationCorrections.WithLabelValues("projects").Add(float64(summary.ProjectsCorrected))
	metrics.ReconciliationCorrections.WithLabelValues("level_stats").Add(float64(summary.StatsUpserted))

	log.WithFields(logrus.Fields{
		"users_corrected":    summary.UsersCorrected,
		"projects_corrected": summary.ProjectsCorrected,
		"stats_upserted":     summary.StatsUpserted,
		"drift":              summary.DriftReportedButNotFixed,
		"failures":           summary.Failures,
	}).Info("Network reconciliation finished")

	return summary, err
}

func (s *ReconciliationService) reconcile(ctx context.Context, summary *ReconciliationSummary, log *logrus.Entry) error {
	db := s.DB.WithContext(ctx)
	corrected := make(map[int]bool)

	invested, raised, err := activeInvestmentTotals(db)
	if err != nil {
		return fmt.Errorf("load active investments: %w", err)
	}

	var users []models.User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	// Stage 1: total_invested from ACTIVE investments.
	for i := range users {
		u := &users[i]
		expected := valueOrZero(invested, u.ID)
		if drifted(u.TotalInvested, expected) {
			err := db.Model(&models.User{}).Where("id = ?", u.ID).UpdateColumn("total_invested", expected).Error
			if err != nil {
				summary.Failures++
				log.WithError(err).WithFields(logrus.Fields{"stage": 1, "user_id": u.ID}).Error("Failed to correct total invested")
			} else {
				corrected[u.ID] = true
				log.WithFields(logrus.Fields{"stage": 1, "user_id": u.ID, "stored": u.TotalInvested.String(), "expected": expected.String()}).
					Info("Corrected total invested")
			}
		}
		u.TotalInvested = expected
	}

	// Stage 2: raised_amount and OPEN to FUNDED. FUNDED never goes back.
	var projects []models.Project
	if err := db.Order("id").Find(&projects).Error; err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	for _, p := range projects {
		expected := valueOrZero(raised, p.ID)
		updates := map[string]interface{}{}
		if drifted(p.RaisedAmount, expected) {
			updates["raised_amount"] = expected
		}
		if p.Status == models.ProjectOpen && expected.GreaterThanOrEqual(p.TargetAmount) {
			updates["status"] = models.ProjectFunded
		}
		if len(updates) == 0 {
			continue
		}
		if err := db.Model(&models.Project{}).Where("id = ?", p.ID).UpdateColumns(updates).Error; err != nil {
			summary.Failures++
			log.WithError(err).WithFields(logrus.Fields{"stage": 2, "project_id": p.ID}).Error("Failed to correct project")
			continue
		}
		summary.ProjectsCorrected++
	}

	// Stage 3: level stats from the refreshed totals, walked over an in-memory adjacency.
	children := make(map[int][]Member, len(users))
	for _, u := range users {
		if u.ReferredById != nil {
			children[*u.ReferredById] = append(children[*u.ReferredById], Member{Id: u.ID, TotalInvested: u.TotalInvested})
		}
	}
	fromMemory := func(ids []int) ([]Member, error) {
		var out []Member
		for _, id := range ids {
			out = append(out, children[id]...)
		}
		return out, nil
	}

	cached, err := loadLevelStats(db)
	if err != nil {
		return fmt.Errorf("load level stats: %w", err)
	}

	totals := make(map[int]NetworkTotals, len(users))
	for _, u := range users {
		stats, err := aggregateLevels(u.ID, fromMemory)
		if err != nil {
			summary.Failures++
			log.WithError(err).WithFields(logrus.Fields{"stage": 3, "user_id": u.ID}).Error("Failed to aggregate network")
			continue
		}
		totals[u.ID] = SumLevels(stats)

		changed := changedLevels(cached[u.ID], stats)
		if len(changed) == 0 {
			continue
		}
		if err := saveLevelStats(db, u.ID, changed); err != nil {
			summary.Failures++
			log.WithError(err).WithFields(logrus.Fields{"stage": 3, "user_id": u.ID}).Error("Failed to store level stats")
			continue
		}
		summary.StatsUpserted += len(changed)
	}

	// Stage 4: user aggregates and rank.
	for _, u := range users {
		t, ok := totals[u.ID]
		if !ok {
			continue
		}
		tier, err := s.Ranks.EvaluateRank(t.Volume)
		if err != nil {
			summary.Failures++
			log.WithError(err).WithFields(logrus.Fields{"stage": 4, "user_id": u.ID}).Error("Failed to evaluate rank")
			continue
		}

		updates := map[string]interface{}{}
		if drifted(u.TeamVolume, t.Volume) {
			updates["team_volume"] = t.Volume
		}
		if u.TotalTeamMembers != t.Members {
			updates["total_team_members"] = t.Members
		}
		if u.TotalActiveTeamMembers != t.Active {
			updates["total_active_team_members"] = t.Active
		}
		if drifted(u.TotalTeamCommission, t.Commission) {
			updates["total_team_commission"] = t.Commission
		}
		if u.Rank != tier.Rank {
			updates["rank"] = tier.Rank
		}
		if len(updates) == 0 {
			continue
		}
		if err := db.Model(&models.User{}).Where("id = ?", u.ID).UpdateColumns(updates).Error; err != nil {
			summary.Failures++
			log.WithError(err).WithFields(logrus.Fields{"stage": 4, "user_id": u.ID}).Error("Failed to sync user aggregates")
			continue
		}
		corrected[u.ID] = true
	}
	summary.UsersCorrected = len(corrected)

	// Stage 5: report wallet drift, never fix it here.
	reports, err := s.AuditWallets(ctx)
	if err != nil {
		summary.Failures++
		log.WithError(err).WithField("stage", 5).Error("Wallet audit failed")
		return nil
	}
	summary.Drift = reports
	summary.DriftReportedButNotFixed = len(reports)
	return nil
}

// StartScheduler runs the job on a cron schedule, e.g. "0 */6 * * *".
func (s *ReconciliationService) StartScheduler(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		logrus.Info("Running scheduled network reconciliation...")
		if _, err := s.RunReconciliation(context.Background(), TriggerCron); err != nil {
			if errors.Is(err, ErrJobRunning) {
				logrus.Info("Reconciliation already running on another instance, skipping")
				return
			}
			logrus.WithError(err).Error("Scheduled reconciliation failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reconciliation %q: %w", schedule, err)
	}
	c.Start()
	logrus.WithField("schedule", schedule).Info("Reconciliation scheduler started")
	return c, nil
}

// RecentRuns lists the latest job executions, newest first.
func (s *ReconciliationService) RecentRuns(ctx context.Context, limit int) ([]models.ReconciliationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.ReconciliationRun
	err := s.DB.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func activeInvestmentTotals(db *gorm.DB) (byUser, byProject map[int]decimal.Decimal, err error) {
	byUser = make(map[int]decimal.Decimal)
	byProject = make(map[int]decimal.Decimal)

	var batch []models.Investment
	res := db.Model(&models.Investment{}).
		Select("id", "user_id", "project_id", "amount").
		Where("status = ?", models.InvestmentActive).
		FindInBatches(&batch, reconcileBatchSize, func(tx *gorm.DB, n int) error {
			for _, inv := range batch {
				byUser[inv.UserId] = valueOrZero(byUser, inv.UserId).Add(inv.Amount)
				byProject[inv.ProjectId] = valueOrZero(byProject, inv.ProjectId).Add(inv.Amount)
			}
			return nil
		})
	return byUser, byProject, res.Error
}

func loadLevelStats(db *gorm.DB) (map[int]map[int]models.NetworkLevelStat, error) {
	out := make(map[int]map[int]models.NetworkLevelStat)

	var batch []models.NetworkLevelStat
	res := db.Model(&models.NetworkLevelStat{}).FindInBatches(&batch, reconcileBatchSize, func(tx *gorm.DB, n int) error {
		for _, row := range batch {
			if out[row.UserId] == nil {
				out[row.UserId] = make(map[int]models.NetworkLevelStat, MaxLevels)
			}
			out[row.UserId][row.Level] = row
		}
		return nil
	})
	return out, res.Error
}

// changedLevels keeps the rows that are missing or differ from the cache.
func changedLevels(cached map[int]models.NetworkLevelStat, stats []LevelStat) []LevelStat {
	var changed []LevelStat
	for _, stat := range stats {
		row, ok := cached[stat.Level]
		if !ok ||
			row.Count != stat.Count ||
			row.Active != stat.Active ||
			row.Percent != stat.Percent ||
			drifted(row.Volume, stat.Volume) ||
			drifted(row.Commission, stat.Commission) {
			changed = append(changed, stat)
		}
	}
	return changed
}

func valueOrZero(m map[int]decimal.Decimal, key int) decimal.Decimal {
	if v, ok := m[key]; ok {
		return v
	}
	return decimal.Zero
}
