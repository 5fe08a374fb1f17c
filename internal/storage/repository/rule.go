package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/recurrents-engine/internal/lib/calendar"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

const ruleColumns = `id, scope, username, family_id, payee, amount_cents, currency,
	interval_unit, interval_count, start_date, end_date, next_run_date, last_run_date,
	status, is_subscription, trial_end_date, cancel_at_period_end, payment_method`

// CreateRule вставляет новое правило и возвращает его ID.
func (s *Storage) CreateRule(ctx context.Context, rule models.RecurringRule) (string, error) {
	const op = "storage.CreateRule"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO recurring_rules (id, scope, username, family_id, payee,
			      amount_cents, currency, interval_unit, interval_count, start_date,
			      end_date, next_run_date, status, is_subscription, trial_end_date,
			      cancel_at_period_end, payment_method)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		rule.ID, rule.Scope, rule.Username, rule.FamilyID, rule.Payee,
		rule.AmountCents, rule.Currency, rule.IntervalUnit, rule.IntervalCount, rule.StartDate,
		rule.EndDate, rule.NextRunDate, rule.Status, rule.IsSubscription, rule.TrialEndDate,
		rule.CancelAtPeriodEnd, rule.PaymentMethod).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadRule возвращает правило по его ID.
func (s *Storage) ReadRule(ctx context.Context, id string) (*models.RecurringRule, error) {
	const op = "storage.ReadRule"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE id = $1`
	rule, err := scanRule(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rule, nil
}

// ListRules возвращает правила, видимые пользователю: личные (family_id IS NULL)
// или семейные (по family_id), с пагинацией.
func (s *Storage) ListRules(ctx context.Context, username string, scope models.RuleScope, familyID *string, limit, offset int) ([]*models.RecurringRule, error) {
	const op = "storage.ListRules"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var rows *sql.Rows
	var err error
	if scope == models.ScopeFamily {
		query := `SELECT ` + ruleColumns + `
				  FROM recurring_rules
				  WHERE family_id = $1
				  ORDER BY created_at DESC
				  LIMIT $2 OFFSET $3`
		rows, err = s.DB.QueryContext(ctx, query, familyID, limit, offset)
	} else {
		query := `SELECT ` + ruleColumns + `
				  FROM recurring_rules
				  WHERE username = $1 AND family_id IS NULL
				  ORDER BY created_at DESC
				  LIMIT $2 OFFSET $3`
		rows, err = s.DB.QueryContext(ctx, query, username, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.RecurringRule
	for rows.Next() {
		item, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveRules возвращает все правила в статусе active, упорядоченные по ID.
func (s *Storage) ListActiveRules(ctx context.Context) ([]*models.RecurringRule, error) {
	const op = "storage.ListActiveRules"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + ruleColumns + `
			  FROM recurring_rules
			  WHERE status = 'active'
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.RecurringRule
	for rows.Next() {
		item, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateRuleFields частично обновляет правило: nil-поля не изменяются.
// Возвращает количество изменённых строк.
func (s *Storage) UpdateRuleFields(ctx context.Context, id string, upd models.RuleUpdate) (int, error) {
	const op = "storage.UpdateRuleFields"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE recurring_rules
			  SET payee = COALESCE($2, payee),
			      amount_cents = COALESCE($3, amount_cents),
			      currency = COALESCE($4, currency),
			      end_date = COALESCE($5, end_date),
			      trial_end_date = COALESCE($6, trial_end_date),
			      payment_method = COALESCE($7, payment_method)
			  WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id,
		upd.Payee, upd.AmountCents, upd.Currency, upd.EndDate, upd.TrialEndDate, upd.PaymentMethod)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// DeleteRule удаляет правило по ID (вместе с экземплярами по каскаду)
// и возвращает количество удалённых строк.
func (s *Storage) DeleteRule(ctx context.Context, id string) (int, error) {
	const op = "storage.DeleteRule"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM recurring_rules WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// PauseRule переводит активное правило в paused. Курсор не меняется:
// после resume правило продолжает с того же места.
func (s *Storage) PauseRule(ctx context.Context, id string) error {
	return s.transition(ctx, "storage.PauseRule", id,
		`UPDATE recurring_rules SET status = 'paused' WHERE id = $1 AND status = 'active'`)
}

// ResumeRule возвращает приостановленное правило в active.
func (s *Storage) ResumeRule(ctx context.Context, id string) error {
	return s.transition(ctx, "storage.ResumeRule", id,
		`UPDATE recurring_rules SET status = 'active' WHERE id = $1 AND status = 'paused'`)
}

// CancelAtPeriodEnd помечает активное правило флагом отмены после текущего цикла.
// Статус меняет движок, когда курсор уходит за границу цикла.
func (s *Storage) CancelAtPeriodEnd(ctx context.Context, id string) error {
	return s.transition(ctx, "storage.CancelAtPeriodEnd", id,
		`UPDATE recurring_rules SET cancel_at_period_end = true WHERE id = $1 AND status = 'active'`)
}

// transition выполняет охраняемый UPDATE одной строки. Ноль затронутых строк
// означает либо отсутствие правила, либо неподходящий исходный статус.
func (s *Storage) transition(ctx context.Context, op, id, query string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var status string
	err = s.DB.QueryRowContext(ctx, `SELECT status FROM recurring_rules WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrRuleNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: rule is %s: %w", op, status, ErrInvalidState)
}

// SkipNextOccurrence атомарно продвигает курсор активного правила на один интервал,
// не создавая экземпляр пропущенного периода и не меняя last_run_date.
// Возвращает новое значение next_run_date.
func (s *Storage) SkipNextOccurrence(ctx context.Context, id string) (time.Time, error) {
	const op = "storage.SkipNextOccurrence"
	select {
	case <-ctx.Done():
		return time.Time{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	var unit models.IntervalUnit
	var count int
	var next time.Time
	query := `SELECT status, interval_unit, interval_count, next_run_date
			  FROM recurring_rules
			  WHERE id = $1
			  FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, id).Scan(&status, &unit, &count, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrRuleNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if status != string(models.StatusActive) {
		return time.Time{}, fmt.Errorf("%s: rule is %s: %w", op, status, ErrInvalidState)
	}

	newNext := calendar.Advance(next.UTC(), unit, count)
	_, err = tx.ExecContext(ctx, `UPDATE recurring_rules SET next_run_date = $2 WHERE id = $1`, id, newNext)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return newNext, nil
}

// UpdateRuleCursor сохраняет курсор после прогона движка. Запись оптимистичная:
// строка меняется только если правило всё ещё active и курсор равен прочитанному
// в начале прогона значению. Ноль затронутых строк значит, что операция управления
// успела изменить правило, и запись движка отбрасывается.
func (s *Storage) UpdateRuleCursor(ctx context.Context, id string, oldNext, newNext, lastRun time.Time) (int, error) {
	const op = "storage.UpdateRuleCursor"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE recurring_rules
			  SET next_run_date = $2, last_run_date = $3
			  WHERE id = $1 AND status = 'active' AND next_run_date = $4`
	result, err := s.DB.ExecContext(ctx, query, id, newNext, lastRun, oldNext)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// MarkRuleCanceled переводит правило в терминальный статус canceled
// и фиксирует дату последнего прогона.
func (s *Storage) MarkRuleCanceled(ctx context.Context, id string, lastRun time.Time) (int, error) {
	const op = "storage.MarkRuleCanceled"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE recurring_rules
			  SET status = 'canceled', last_run_date = $2
			  WHERE id = $1 AND status = 'active'`
	result, err := s.DB.ExecContext(ctx, query, id, lastRun)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// rowScanner покрывает *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.RecurringRule, error) {
	var rule models.RecurringRule
	var familyID, payee, paymentMethod sql.NullString
	var endDate, lastRunDate, trialEndDate sql.NullTime

	err := row.Scan(&rule.ID, &rule.Scope, &rule.Username, &familyID, &payee,
		&rule.AmountCents, &rule.Currency, &rule.IntervalUnit, &rule.IntervalCount,
		&rule.StartDate, &endDate, &rule.NextRunDate, &lastRunDate,
		&rule.Status, &rule.IsSubscription, &trialEndDate,
		&rule.CancelAtPeriodEnd, &paymentMethod)
	if err != nil {
		return nil, err
	}

	if familyID.Valid {
		rule.FamilyID = &familyID.String
	}
	if payee.Valid {
		rule.Payee = payee.String
	}
	if paymentMethod.Valid {
		rule.PaymentMethod = paymentMethod.String
	}
	if endDate.Valid {
		t := endDate.Time.UTC()
		rule.EndDate = &t
	}
	if lastRunDate.Valid {
		t := lastRunDate.Time.UTC()
		rule.LastRunDate = &t
	}
	if trialEndDate.Valid {
		t := trialEndDate.Time.UTC()
		rule.TrialEndDate = &t
	}
	rule.StartDate = rule.StartDate.UTC()
	rule.NextRunDate = rule.NextRunDate.UTC()
	return &rule, nil
}
