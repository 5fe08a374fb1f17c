package models

import "time"

// InstanceStatus — статус материализованного экземпляра.
type InstanceStatus string

const (
	// InstanceScheduled — экземпляр запланирован на будущую дату.
	InstanceScheduled InstanceStatus = "scheduled"
	// InstancePosted — срок экземпляра уже наступил.
	InstancePosted InstanceStatus = "posted"
)

// RecurringInstance представляет один материализованный период правила.
// Пара (RuleID, PeriodKey) уникальна: повторная материализация того же периода
// не создаёт дубликат. Сумма и валюта денормализованы из правила на момент генерации.
type RecurringInstance struct {
	RuleID      string         `json:"rule_id"`      // Идентификатор правила-владельца
	DueDate     time.Time      `json:"due_date"`     // Календарная дата периода
	PeriodKey   string         `json:"period_key"`   // Канонический ключ периода
	Status      InstanceStatus `json:"status"`       // posted или scheduled
	AmountCents int            `json:"amount_cents"` // Сумма на момент генерации
	Currency    string         `json:"currency"`     // Валюта на момент генерации
}
