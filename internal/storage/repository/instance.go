package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// UpsertInstance идемпотентно вставляет экземпляр по ключу (rule_id, period_key).
// Повторная материализация того же периода обновляет статус и дату существующей
// строки вместо создания дубликата. Возвращает true, если строка была вставлена
// впервые (xmax = 0 только у свежевставленной строки).
func (s *Storage) UpsertInstance(ctx context.Context, inst models.RecurringInstance) (bool, error) {
	const op = "storage.UpsertInstance"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO recurring_instances (rule_id, due_date, period_key, status, amount_cents, currency)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (rule_id, period_key)
			  DO UPDATE SET status = EXCLUDED.status, due_date = EXCLUDED.due_date
			  RETURNING (xmax = 0)`
	var inserted bool
	err := s.DB.QueryRowContext(ctx, query,
		inst.RuleID, inst.DueDate, inst.PeriodKey, inst.Status, inst.AmountCents, inst.Currency).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return inserted, nil
}

// ListInstances возвращает экземпляры правила, упорядоченные по дате.
func (s *Storage) ListInstances(ctx context.Context, ruleID string) ([]*models.RecurringInstance, error) {
	const op = "storage.ListInstances"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT rule_id, due_date, period_key, status, amount_cents, currency
			  FROM recurring_instances
			  WHERE rule_id = $1
			  ORDER BY due_date`
	rows, err := s.DB.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.RecurringInstance
	for rows.Next() {
		var item models.RecurringInstance
		if err := rows.Scan(&item.RuleID, &item.DueDate, &item.PeriodKey,
			&item.Status, &item.AmountCents, &item.Currency); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.DueDate = item.DueDate.UTC()
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
