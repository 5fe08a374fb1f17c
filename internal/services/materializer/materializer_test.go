package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) ListActiveRules(ctx context.Context) ([]*models.RecurringRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecurringRule), args.Error(1)
}

func (m *MockRuleRepository) UpdateRuleCursor(ctx context.Context, id string, oldNext, newNext, lastRun time.Time) (int, error) {
	args := m.Called(ctx, id, oldNext, newNext, lastRun)
	return args.Int(0), args.Error(1)
}

func (m *MockRuleRepository) MarkRuleCanceled(ctx context.Context, id string, lastRun time.Time) (int, error) {
	args := m.Called(ctx, id, lastRun)
	return args.Int(0), args.Error(1)
}

type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) UpsertInstance(ctx context.Context, inst models.RecurringInstance) (bool, error) {
	args := m.Called(ctx, inst)
	return args.Bool(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// today для всех тестов: 2025-06-15.
func newService(rules *MockRuleRepository, instances *MockInstanceRepository, pub Publisher, opts ...Option) *MaterializerService {
	svc := NewMaterializerService(rules, instances, pub, newNoopLogger(), opts...)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC) }
	return svc
}

func activeDailyRule(next time.Time) *models.RecurringRule {
	return &models.RecurringRule{
		ID:            "rule-1",
		Scope:         models.ScopePersonal,
		Username:      "alice",
		AmountCents:   999,
		Currency:      "EUR",
		IntervalUnit:  models.UnitDay,
		IntervalCount: 1,
		StartDate:     date(2025, 1, 1),
		NextRunDate:   next,
		Status:        models.StatusActive,
	}
}

func TestRun_ClassifiesPostedAndScheduled(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	rule := activeDailyRule(date(2025, 6, 14))
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()

	var upserted []models.RecurringInstance
	instances.On("UpsertInstance", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			upserted = append(upserted, args.Get(1).(models.RecurringInstance))
		}).Return(true, nil)

	rules.On("UpdateRuleCursor", mock.Anything, "rule-1",
		date(2025, 6, 14), date(2025, 6, 15), date(2025, 6, 15)).Return(1, nil).Once()

	svc := newService(rules, instances, nil)
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 2})

	require.NoError(t, err)
	assert.Equal(t, 4, report.WrittenTotal)
	assert.Equal(t, 0, report.RulesFailed)
	require.Len(t, upserted, 4)
	assert.Equal(t, models.InstancePosted, upserted[0].Status)
	assert.Equal(t, models.InstancePosted, upserted[1].Status)
	assert.Equal(t, models.InstanceScheduled, upserted[2].Status)
	assert.Equal(t, models.InstanceScheduled, upserted[3].Status)
	assert.Equal(t, "2025-06-14", upserted[0].PeriodKey)
	assert.Equal(t, 999, upserted[0].AmountCents)
	assert.Equal(t, "EUR", upserted[0].Currency)

	rules.AssertExpectations(t)
	instances.AssertExpectations(t)
}

func TestRun_TrialPeriodsAreNotMaterialized(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	trialEnd := date(2025, 6, 1)
	rule := &models.RecurringRule{
		ID:            "rule-trial",
		AmountCents:   500,
		Currency:      "USD",
		IntervalUnit:  models.UnitMonth,
		IntervalCount: 1,
		StartDate:     date(2025, 1, 1),
		NextRunDate:   date(2025, 6, 1),
		Status:        models.StatusActive,
		TrialEndDate:  &trialEnd,
	}
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()

	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return inst.PeriodKey == "2025-07" && inst.DueDate.After(trialEnd)
	})).Return(true, nil).Once()

	rules.On("UpdateRuleCursor", mock.Anything, "rule-trial",
		date(2025, 6, 1), date(2025, 7, 1), date(2025, 6, 15)).Return(1, nil).Once()

	svc := newService(rules, instances, nil)
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 30})

	require.NoError(t, err)
	assert.Equal(t, 1, report.WrittenTotal)
	rules.AssertExpectations(t)
	instances.AssertExpectations(t)
}

func TestRun_CancelAtPeriodEndMaterializesOneMoreCycle(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	rule := &models.RecurringRule{
		ID:                "rule-cancel",
		AmountCents:       1200,
		Currency:          "EUR",
		IntervalUnit:      models.UnitMonth,
		IntervalCount:     1,
		StartDate:         date(2025, 1, 1),
		NextRunDate:       date(2025, 6, 1),
		Status:            models.StatusActive,
		CancelAtPeriodEnd: true,
	}
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()

	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return inst.PeriodKey == "2025-06" && inst.Status == models.InstancePosted
	})).Return(true, nil).Once()

	rules.On("MarkRuleCanceled", mock.Anything, "rule-cancel", date(2025, 6, 15)).Return(1, nil).Once()

	svc := newService(rules, instances, nil)
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 90})

	require.NoError(t, err)
	assert.Equal(t, 1, report.WrittenTotal)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Canceled)

	// Курсор не сохраняется: правило терминально.
	rules.AssertNotCalled(t, "UpdateRuleCursor",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	rules.AssertExpectations(t)
	instances.AssertExpectations(t)
}

func TestRun_EndDateStopsIteration(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	endDate := date(2025, 6, 15)
	rule := activeDailyRule(date(2025, 6, 14))
	rule.EndDate = &endDate
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()

	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return !inst.DueDate.After(endDate)
	})).Return(true, nil).Twice()

	rules.On("UpdateRuleCursor", mock.Anything, "rule-1",
		date(2025, 6, 14), date(2025, 6, 15), date(2025, 6, 15)).Return(1, nil).Once()

	svc := newService(rules, instances, nil)
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 30})

	require.NoError(t, err)
	assert.Equal(t, 2, report.WrittenTotal)
	instances.AssertExpectations(t)
}

func TestRun_PublishesOnlyFreshPostedInstances(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)
	pub := new(MockPublisher)

	rule := activeDailyRule(date(2025, 6, 14))
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()

	// 14-е уже существует (повторный прогон), 15-е вставляется впервые.
	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return inst.PeriodKey == "2025-06-14"
	})).Return(false, nil).Once()
	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return inst.PeriodKey == "2025-06-15"
	})).Return(true, nil).Once()
	instances.On("UpsertInstance", mock.Anything, mock.Anything).Return(true, nil)

	pub.On("Publish", "posted", mock.MatchedBy(func(msg any) bool {
		inst, ok := msg.(models.RecurringInstance)
		return ok && inst.PeriodKey == "2025-06-15"
	})).Return(nil).Once()

	rules.On("UpdateRuleCursor", mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(1, nil).Once()

	svc := newService(rules, instances, pub)
	_, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 1})

	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestRun_FailureOfOneRuleDoesNotAbortBatch(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	broken := activeDailyRule(date(2025, 6, 15))
	broken.ID = "rule-broken"
	healthy := activeDailyRule(date(2025, 6, 15))
	healthy.ID = "rule-healthy"
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{broken, healthy}, nil).Once()

	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return inst.RuleID == "rule-broken"
	})).Return(false, errors.New("connection reset")).Once()
	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return inst.RuleID == "rule-healthy"
	})).Return(true, nil)

	rules.On("UpdateRuleCursor", mock.Anything, "rule-healthy",
		mock.Anything, mock.Anything, mock.Anything).Return(1, nil).Once()

	svc := newService(rules, instances, nil, WithMaxWorkers(1))
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 1})

	require.NoError(t, err)
	assert.Equal(t, 1, report.RulesFailed)
	require.Len(t, report.Results, 2)
	assert.Contains(t, report.Results[0].Error, "connection reset")
	assert.Empty(t, report.Results[1].Error)
	assert.Positive(t, report.Results[1].Written)

	// Курсор сломанного правила не тронут: повторный прогон начнёт с того же места.
	rules.AssertNotCalled(t, "UpdateRuleCursor",
		mock.Anything, "rule-broken", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_PreviewWritesNothing(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	rule := activeDailyRule(date(2025, 6, 15))
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()

	svc := newService(rules, instances, nil)
	report, err := svc.Run(context.Background(), models.RunOptions{Preview: true, HorizonDays: 2})

	require.NoError(t, err)
	assert.True(t, report.Preview)
	assert.Equal(t, 0, report.WrittenTotal)
	require.Len(t, report.Results, 1)
	require.Len(t, report.Results[0].Occurrences, 3)
	assert.Equal(t, "2025-06-15", report.Results[0].Occurrences[0].PeriodKey)
	assert.Equal(t, "2025-06-16", report.Results[0].Occurrences[1].PeriodKey)
	assert.Equal(t, "2025-06-17", report.Results[0].Occurrences[2].PeriodKey)

	instances.AssertNotCalled(t, "UpsertInstance", mock.Anything, mock.Anything)
	rules.AssertNotCalled(t, "UpdateRuleCursor",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	rules.AssertNotCalled(t, "MarkRuleCanceled", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_IterationCapFlagsMisconfiguredRule(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	rule := activeDailyRule(date(2025, 6, 1))
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()
	instances.On("UpsertInstance", mock.Anything, mock.Anything).Return(true, nil)

	svc := newService(rules, instances, nil, WithIterationCap(5))
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 60})

	require.NoError(t, err)
	assert.Equal(t, 1, report.RulesFailed)
	assert.Contains(t, report.Results[0].Error, "iteration cap")

	// Испорченный курсор не сохраняется.
	rules.AssertNotCalled(t, "UpdateRuleCursor",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_ConcurrentControlOperationWins(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	rule := activeDailyRule(date(2025, 6, 15))
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()
	instances.On("UpsertInstance", mock.Anything, mock.Anything).Return(true, nil)

	// Ноль затронутых строк: skip-next успел изменить курсор во время прохода.
	rules.On("UpdateRuleCursor", mock.Anything, "rule-1",
		mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Once()

	svc := newService(rules, instances, nil)
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 1})

	require.NoError(t, err)
	assert.Equal(t, 0, report.RulesFailed)
	assert.Empty(t, report.Results[0].Error)
}

func TestRun_CursorBeforeStartDateIsRealigned(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	rule := activeDailyRule(date(2025, 6, 13))
	rule.StartDate = date(2025, 6, 15)
	rules.On("ListActiveRules", mock.Anything).Return([]*models.RecurringRule{rule}, nil).Once()

	instances.On("UpsertInstance", mock.Anything, mock.MatchedBy(func(inst models.RecurringInstance) bool {
		return !inst.DueDate.Before(rule.StartDate)
	})).Return(true, nil)

	rules.On("UpdateRuleCursor", mock.Anything, "rule-1",
		mock.Anything, mock.Anything, mock.Anything).Return(1, nil).Once()

	svc := newService(rules, instances, nil)
	report, err := svc.Run(context.Background(), models.RunOptions{HorizonDays: 1})

	require.NoError(t, err)
	assert.Equal(t, 2, report.WrittenTotal)
	instances.AssertExpectations(t)
}

func TestRun_ListActiveRulesError(t *testing.T) {
	rules := new(MockRuleRepository)
	instances := new(MockInstanceRepository)

	rules.On("ListActiveRules", mock.Anything).Return(nil, errors.New("db down")).Once()

	svc := newService(rules, instances, nil)
	_, err := svc.Run(context.Background(), models.RunOptions{})

	assert.Error(t, err)
}
