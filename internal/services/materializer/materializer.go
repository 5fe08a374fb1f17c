// Package services реализует движок материализации: для каждого активного
// правила идёт вперёд от сохранённого курсора, создаёт по одному экземпляру
// на период внутри ограниченного горизонта, классифицирует их как posted или
// scheduled, учитывает триал и границу отмены и сохраняет новый курсор.
// Ошибки одного правила не прерывают пакет: каждое правило изолировано.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/recurrents-engine/internal/lib/calendar"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/metrics"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

const (
	// DefaultHorizonDays — горизонт просмотра вперёд по умолчанию.
	DefaultHorizonDays = 30
	// DefaultIterationCap — жёсткий предел итераций на правило. Защищает от
	// конфигураций с незавершающимся циклом, проскочивших мимо валидации.
	DefaultIterationCap = 366
	// DefaultMaxWorkers — количество правил, обрабатываемых параллельно.
	DefaultMaxWorkers = 4
)

// RuleRepository определяет доступ движка к правилам.
type RuleRepository interface {
	// ListActiveRules возвращает все правила в статусе active.
	ListActiveRules(ctx context.Context) ([]*models.RecurringRule, error)
	// UpdateRuleCursor оптимистично сохраняет курсор; ноль строк значит,
	// что правило изменила операция управления и запись отброшена.
	UpdateRuleCursor(ctx context.Context, id string, oldNext, newNext, lastRun time.Time) (int, error)
	// MarkRuleCanceled переводит правило в терминальный статус canceled.
	MarkRuleCanceled(ctx context.Context, id string, lastRun time.Time) (int, error)
}

// InstanceRepository определяет запись экземпляров.
type InstanceRepository interface {
	// UpsertInstance идемпотентно вставляет экземпляр по (rule_id, period_key).
	// Возвращает true, если строка была вставлена впервые.
	UpsertInstance(ctx context.Context, inst models.RecurringInstance) (bool, error)
}

// Publisher публикует события о наступивших экземплярах для внешнего
// пайплайна уведомлений.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// MaterializerService реализует пакетную материализацию правил.
type MaterializerService struct {
	rules     RuleRepository
	instances InstanceRepository
	publisher Publisher
	log       *slog.Logger

	horizonDays  int
	iterationCap int
	maxWorkers   int
	now          func() time.Time
}

// Option настраивает MaterializerService.
type Option func(*MaterializerService)

// WithHorizonDays задаёт горизонт просмотра по умолчанию.
func WithHorizonDays(days int) Option {
	return func(s *MaterializerService) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

// WithIterationCap задаёт предел итераций на правило.
func WithIterationCap(n int) Option {
	return func(s *MaterializerService) {
		if n > 0 {
			s.iterationCap = n
		}
	}
}

// WithMaxWorkers задаёт количество параллельно обрабатываемых правил.
func WithMaxWorkers(n int) Option {
	return func(s *MaterializerService) {
		if n > 0 {
			s.maxWorkers = n
		}
	}
}

// NewMaterializerService создает новый экземпляр MaterializerService.
// publisher может быть nil — тогда события не публикуются (например, в предпросмотре).
func NewMaterializerService(rules RuleRepository, instances InstanceRepository, publisher Publisher, log *slog.Logger, opts ...Option) *MaterializerService {
	s := &MaterializerService{
		rules:        rules,
		instances:    instances,
		publisher:    publisher,
		log:          log,
		horizonDays:  DefaultHorizonDays,
		iterationCap: DefaultIterationCap,
		maxWorkers:   DefaultMaxWorkers,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run выполняет один прогон движка по всем активным правилам.
// Правила независимы и обрабатываются пулом воркеров; ошибка одного правила
// попадает в отчёт, но не прерывает пакет. В режиме предпросмотра ничего
// не пишется, спрогнозированные периоды возвращаются в отчёте.
func (s *MaterializerService) Run(ctx context.Context, opts models.RunOptions) (*models.RunReport, error) {
	const op = "materializer.Run"
	metrics.RunsTotal.Inc()

	horizonDays := opts.HorizonDays
	if horizonDays <= 0 {
		horizonDays = s.horizonDays
	}
	today := s.today()

	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("starting materializer run",
		slog.Int("rules", len(rules)),
		slog.Int("horizon_days", horizonDays),
		slog.Bool("preview", opts.Preview))

	report := &models.RunReport{
		Preview:    opts.Preview,
		RulesTotal: len(rules),
		Results:    make([]models.RuleRunResult, len(rules)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)
	for i, rule := range rules {
		g.Go(func() error {
			res := s.materializeRule(gctx, rule, today, horizonDays, opts.Preview)
			mu.Lock()
			report.Results[i] = res
			mu.Unlock()
			return nil
		})
	}
	// Воркеры не возвращают ошибок: изоляция отказов на уровне правила.
	_ = g.Wait()

	for _, res := range report.Results {
		report.WrittenTotal += res.Written
		if res.Error != "" {
			report.RulesFailed++
		}
	}

	s.log.Info("materializer run finished",
		slog.Int("written", report.WrittenTotal),
		slog.Int("failed", report.RulesFailed))
	return report, nil
}

// materializeRule проходит одно правило от курсора до горизонта.
// Курсор сохраняется только после успешного прохода: повторный запуск после
// сбоя в середине безопасен, потому что upsert по (rule_id, period_key)
// регенерирует уже созданные периоды идемпотентно.
func (s *MaterializerService) materializeRule(ctx context.Context, rule *models.RecurringRule, today time.Time, horizonDays int, preview bool) models.RuleRunResult {
	res := models.RuleRunResult{RuleID: rule.ID}
	log := s.log.With(slog.String("rule_id", rule.ID))

	storedNext := rule.NextRunDate
	if storedNext.IsZero() {
		storedNext = rule.StartDate
	}
	cursor := storedNext
	limit := today.AddDate(0, 0, horizonDays)
	canceled := false
	capped := true

	for iterations := 0; iterations < s.iterationCap; iterations++ {
		if cursor.After(limit) {
			capped = false
			break
		}
		// Защита от рассинхронизированного курсора.
		if cursor.Before(rule.StartDate) {
			cursor = calendar.Advance(cursor, rule.IntervalUnit, rule.IntervalCount)
			continue
		}
		if rule.EndDate != nil && cursor.After(*rule.EndDate) {
			capped = false
			break
		}
		// Триал: период виден в расписании, но не выставляется.
		if rule.TrialEndDate != nil && !cursor.After(*rule.TrialEndDate) {
			cursor = calendar.Advance(cursor, rule.IntervalUnit, rule.IntervalCount)
			continue
		}

		status := models.InstanceScheduled
		if !cursor.After(today) {
			status = models.InstancePosted
		}
		inst := models.RecurringInstance{
			RuleID:      rule.ID,
			DueDate:     cursor,
			PeriodKey:   calendar.PeriodKey(cursor, rule.IntervalUnit),
			Status:      status,
			AmountCents: rule.AmountCents,
			Currency:    rule.Currency,
		}

		if preview {
			res.Occurrences = append(res.Occurrences, models.Occurrence{
				DueDate:   inst.DueDate,
				PeriodKey: inst.PeriodKey,
			})
		} else {
			created, err := s.instances.UpsertInstance(ctx, inst)
			if err != nil {
				metrics.RuleFailures.Inc()
				log.Error("failed to upsert instance", sl.Err(err),
					slog.String("period_key", inst.PeriodKey))
				res.Error = fmt.Sprintf("upsert instance %s: %v", inst.PeriodKey, err)
				return res
			}
			res.Written++
			metrics.InstancesUpserted.WithLabelValues(string(status)).Inc()
			if created && status == models.InstancePosted {
				s.publishPosted(log, inst)
			}
		}

		cursor = calendar.Advance(cursor, rule.IntervalUnit, rule.IntervalCount)

		// Отмена после текущего цикла: как только курсор ушёл в будущее,
		// правило больше не материализуется.
		if rule.CancelAtPeriodEnd && cursor.After(today) {
			canceled = true
			capped = false
			break
		}
	}

	if capped {
		metrics.RuleFailures.Inc()
		log.Error("iteration cap reached, rule is misconfigured",
			slog.Int("cap", s.iterationCap))
		res.Error = fmt.Sprintf("iteration cap %d reached", s.iterationCap)
		return res
	}

	if preview {
		return res
	}

	if canceled {
		if _, err := s.rules.MarkRuleCanceled(ctx, rule.ID, today); err != nil {
			metrics.RuleFailures.Inc()
			log.Error("failed to mark rule canceled", sl.Err(err))
			res.Error = fmt.Sprintf("mark canceled: %v", err)
			return res
		}
		res.Canceled = true
		log.Info("rule canceled at period end")
		return res
	}

	newNext := calendar.Advance(storedNext, rule.IntervalUnit, rule.IntervalCount)
	n, err := s.rules.UpdateRuleCursor(ctx, rule.ID, storedNext, newNext, today)
	if err != nil {
		metrics.RuleFailures.Inc()
		log.Error("failed to update rule cursor", sl.Err(err))
		res.Error = fmt.Sprintf("update cursor: %v", err)
		return res
	}
	if n == 0 {
		// Операция управления изменила правило во время прохода:
		// её запись выигрывает, курсор движка отбрасывается.
		log.Info("cursor changed concurrently, engine write discarded")
	}
	return res
}

func (s *MaterializerService) publishPosted(log *slog.Logger, inst models.RecurringInstance) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish("posted", inst); err != nil {
		log.Error("failed to publish posted instance", sl.Err(err),
			slog.String("period_key", inst.PeriodKey))
	}
}

func (s *MaterializerService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
