// Package services содержит бизнес-логику управления повторяющимися правилами:
// валидацию инвариантов на границе, кеширование чтений и атомарные операции
// смены состояния, проксируемые в хранилище.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

const dateLayout = "2006-01-02"

// RuleRepository определяет методы для работы с правилами в хранилище.
type RuleRepository interface {
	// CreateRule добавляет новое правило и возвращает его ID.
	CreateRule(ctx context.Context, rule models.RecurringRule) (string, error)
	// ReadRule возвращает правило по ID.
	ReadRule(ctx context.Context, id string) (*models.RecurringRule, error)
	// ListRules возвращает правила пользователя в заданной области видимости с пагинацией.
	ListRules(ctx context.Context, username string, scope models.RuleScope, familyID *string, limit, offset int) ([]*models.RecurringRule, error)
	// UpdateRuleFields частично обновляет правило.
	UpdateRuleFields(ctx context.Context, id string, upd models.RuleUpdate) (int, error)
	// DeleteRule удаляет правило по ID.
	DeleteRule(ctx context.Context, id string) (int, error)
	// PauseRule переводит активное правило в paused.
	PauseRule(ctx context.Context, id string) error
	// ResumeRule возвращает приостановленное правило в active.
	ResumeRule(ctx context.Context, id string) error
	// CancelAtPeriodEnd помечает активное правило флагом отмены после текущего цикла.
	CancelAtPeriodEnd(ctx context.Context, id string) error
	// SkipNextOccurrence продвигает курсор активного правила на один интервал.
	SkipNextOccurrence(ctx context.Context, id string) (time.Time, error)
	// ListInstances возвращает материализованные экземпляры правила.
	ListInstances(ctx context.Context, ruleID string) ([]*models.RecurringInstance, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// RuleService реализует бизнес-логику работы с правилами, включая кеширование.
type RuleService struct {
	repo  RuleRepository
	cache Cache
	log   *slog.Logger
}

// NewRuleService создает новый экземпляр RuleService.
func NewRuleService(repo RuleRepository, cache Cache, log *slog.Logger) *RuleService {
	return &RuleService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create создает новое правило для пользователя, кеширует его и возвращает ID.
// Инварианты: interval_count >= 1 и amount_cents > 0 проверены валидатором на
// границе HTTP; здесь проверяется упорядоченность дат.
func (s *RuleService) Create(ctx context.Context, username string, req models.DummyRule) (string, error) {
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return "", fmt.Errorf("invalid start date: %w", err)
	}

	nextRunDate := startDate
	if req.NextRunDate != "" {
		nextRunDate, err = time.Parse(dateLayout, req.NextRunDate)
		if err != nil {
			return "", fmt.Errorf("invalid next run date: %w", err)
		}
		if nextRunDate.Before(startDate) {
			return "", fmt.Errorf("next run date must not be earlier than start date")
		}
	}

	var endDate *time.Time
	if req.EndDate != "" {
		parsed, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return "", fmt.Errorf("invalid end date: %w", err)
		}
		if parsed.Before(startDate) {
			return "", fmt.Errorf("end date must not be earlier than start date")
		}
		endDate = &parsed
	}

	var trialEndDate *time.Time
	if req.TrialEndDate != "" {
		parsed, err := time.Parse(dateLayout, req.TrialEndDate)
		if err != nil {
			return "", fmt.Errorf("invalid trial end date: %w", err)
		}
		trialEndDate = &parsed
	}

	var familyID *string
	if req.Scope == string(models.ScopeFamily) {
		if req.FamilyID == "" {
			return "", fmt.Errorf("family scope requires family_id")
		}
		familyID = &req.FamilyID
	}

	rule := models.RecurringRule{
		ID:             uuid.NewString(),
		Scope:          models.RuleScope(req.Scope),
		Username:       username,
		FamilyID:       familyID,
		Payee:          req.Payee,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		IntervalUnit:   models.IntervalUnit(req.IntervalUnit),
		IntervalCount:  req.IntervalCount,
		StartDate:      startDate,
		EndDate:        endDate,
		NextRunDate:    nextRunDate,
		Status:         models.StatusActive,
		IsSubscription: req.IsSubscription,
		TrialEndDate:   trialEndDate,
		PaymentMethod:  req.PaymentMethod,
	}

	id, err := s.repo.CreateRule(ctx, rule)
	if err != nil {
		return "", err
	}

	s.log.Info("created new rule", slog.String("id", id))

	cacheKey := fmt.Sprintf("rule:%s", id)
	if err := s.cache.Set(cacheKey, rule, time.Hour); err != nil {
		s.log.Warn("failed to cache rule", slog.String("key", cacheKey), slog.Any("err", err))
	}

	return id, nil
}

// Read возвращает правило по ID, используя кеш или репозиторий.
func (s *RuleService) Read(ctx context.Context, id string) (*models.RecurringRule, error) {
	var result *models.RecurringRule
	cacheKey := fmt.Sprintf("rule:%s", id)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}
	result, err = s.repo.ReadRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if result != nil {
		if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", cacheKey),
				slog.Any("err", err))
		}
	}
	return result, nil
}

// List возвращает правила пользователя в заданной области видимости.
func (s *RuleService) List(ctx context.Context, username, scope, familyID string, limit, offset int) ([]*models.RecurringRule, error) {
	var familyIDPtr *string
	if familyID != "" {
		familyIDPtr = &familyID
	}
	if scope == string(models.ScopeFamily) && familyIDPtr == nil {
		return nil, fmt.Errorf("family scope requires family_id")
	}
	return s.repo.ListRules(ctx, username, models.RuleScope(scope), familyIDPtr, limit, offset)
}

// Update частично обновляет правило и инвалидирует кеш.
// Дата окончания проверяется против даты начала существующего правила.
func (s *RuleService) Update(ctx context.Context, id string, req models.DummyUpdateRule) (int, error) {
	upd := models.RuleUpdate{
		Payee:         req.Payee,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
	}

	if req.EndDate != nil || req.TrialEndDate != nil {
		rule, err := s.repo.ReadRule(ctx, id)
		if err != nil {
			return 0, err
		}
		if req.EndDate != nil {
			parsed, err := time.Parse(dateLayout, *req.EndDate)
			if err != nil {
				return 0, fmt.Errorf("invalid end date: %w", err)
			}
			if parsed.Before(rule.StartDate) {
				return 0, fmt.Errorf("end date must not be earlier than start date")
			}
			upd.EndDate = &parsed
		}
		if req.TrialEndDate != nil {
			parsed, err := time.Parse(dateLayout, *req.TrialEndDate)
			if err != nil {
				return 0, fmt.Errorf("invalid trial end date: %w", err)
			}
			upd.TrialEndDate = &parsed
		}
	}

	count, err := s.repo.UpdateRuleFields(ctx, id, upd)
	if err != nil {
		return 0, err
	}
	s.invalidate(id)
	return count, nil
}

// Remove удаляет правило по ID и инвалидирует кеш.
func (s *RuleService) Remove(ctx context.Context, id string) (int, error) {
	s.invalidate(id)
	return s.repo.DeleteRule(ctx, id)
}

// Pause приостанавливает активное правило. Курсор замораживается:
// пропущенные периоды не накапливаются и не пропускаются при возобновлении.
func (s *RuleService) Pause(ctx context.Context, id string) error {
	if err := s.repo.PauseRule(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	s.log.Info("rule paused", slog.String("id", id))
	return nil
}

// Resume возобновляет приостановленное правило.
func (s *RuleService) Resume(ctx context.Context, id string) error {
	if err := s.repo.ResumeRule(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	s.log.Info("rule resumed", slog.String("id", id))
	return nil
}

// CancelAtPeriodEnd помечает активное правило к отмене после текущего цикла.
func (s *RuleService) CancelAtPeriodEnd(ctx context.Context, id string) error {
	if err := s.repo.CancelAtPeriodEnd(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	s.log.Info("rule marked for cancellation at period end", slog.String("id", id))
	return nil
}

// SkipNext продвигает курсор активного правила на один интервал без
// создания экземпляра и возвращает новую дату.
func (s *RuleService) SkipNext(ctx context.Context, id string) (time.Time, error) {
	next, err := s.repo.SkipNextOccurrence(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	s.invalidate(id)
	s.log.Info("rule next occurrence skipped",
		slog.String("id", id), slog.String("next_run_date", next.Format(dateLayout)))
	return next, nil
}

// Instances возвращает материализованные экземпляры правила.
func (s *RuleService) Instances(ctx context.Context, ruleID string) ([]*models.RecurringInstance, error) {
	return s.repo.ListInstances(ctx, ruleID)
}

func (s *RuleService) invalidate(id string) {
	cacheKey := fmt.Sprintf("rule:%s", id)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
}
