package models

import "time"

// Occurrence — одна спрогнозированная дата правила с её ключом периода.
type Occurrence struct {
	DueDate   time.Time `json:"due_date"`   // Календарная дата периода
	PeriodKey string    `json:"period_key"` // Канонический ключ периода
}

// RunOptions — параметры запуска движка материализации.
type RunOptions struct {
	Preview     bool // Режим предпросмотра: ничего не пишется в хранилище
	HorizonDays int  // Горизонт просмотра в днях (0 — значение по умолчанию)
}

// DummyRunOptions используется для приёма параметров запуска из JSON-запроса.
type DummyRunOptions struct {
	Preview     bool `json:"preview,omitempty"`                                  // Режим предпросмотра
	HorizonDays int  `json:"horizon_days,omitempty" validate:"omitempty,gte=1,lte=365"` // Горизонт в днях
}

// DummyPreview используется для приёма конфигурации расписания
// в запросе предпросмотра ближайших периодов.
type DummyPreview struct {
	NextRunDate   string `json:"next_run_date" validate:"required,datetime=2006-01-02"`    // Дата ближайшего периода
	IntervalUnit  string `json:"interval_unit" validate:"required,oneof=day week month year"` // Единица интервала
	IntervalCount int    `json:"interval_count" validate:"required,gte=1"`                 // Количество единиц в шаге
	Count         int    `json:"count,omitempty" validate:"omitempty,gte=1,lte=36"`        // Сколько периодов вернуть
}

// RuleRunResult — результат материализации одного правила.
type RuleRunResult struct {
	RuleID      string       `json:"rule_id"`               // Идентификатор правила
	Written     int          `json:"written"`               // Количество upsert-ов экземпляров
	Canceled    bool         `json:"canceled,omitempty"`    // Правило переведено в canceled на этом прогоне
	Occurrences []Occurrence `json:"occurrences,omitempty"` // Спрогнозированные периоды (только preview)
	Error       string       `json:"error,omitempty"`       // Текст ошибки, если правило не обработано
}

// RunReport — сводка по прогону движка: количество обработанных правил,
// записанных экземпляров и пер-правиловые результаты, включая ошибки.
type RunReport struct {
	Preview      bool            `json:"preview"`       // Прогон был в режиме предпросмотра
	RulesTotal   int             `json:"rules_total"`   // Всего активных правил
	RulesFailed  int             `json:"rules_failed"`  // Правил завершилось с ошибкой
	WrittenTotal int             `json:"written_total"` // Всего upsert-ов экземпляров
	Results      []RuleRunResult `json:"results"`       // Результаты по каждому правилу
}
