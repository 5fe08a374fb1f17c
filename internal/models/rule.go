// Package models содержит доменные структуры повторяющихся правил и их экземпляров,
// а также вспомогательные типы для приёма данных из внешних источников (например, JSON-запросы).
package models

import "time"

// RuleStatus — статус жизненного цикла правила.
type RuleStatus string

const (
	// StatusActive — правило активно и материализуется движком.
	StatusActive RuleStatus = "active"
	// StatusPaused — правило приостановлено, курсор заморожен.
	StatusPaused RuleStatus = "paused"
	// StatusCanceled — правило отменено, терминальное состояние.
	StatusCanceled RuleStatus = "canceled"
)

// IntervalUnit — единица интервала повторения.
type IntervalUnit string

const (
	// UnitDay — повторение по дням.
	UnitDay IntervalUnit = "day"
	// UnitWeek — повторение по неделям.
	UnitWeek IntervalUnit = "week"
	// UnitMonth — повторение по месяцам.
	UnitMonth IntervalUnit = "month"
	// UnitYear — повторение по годам.
	UnitYear IntervalUnit = "year"
)

// RuleScope — область видимости правила: личное или семейное.
type RuleScope string

const (
	// ScopePersonal — личное правило пользователя.
	ScopePersonal RuleScope = "personal"
	// ScopeFamily — правило, общее для семьи.
	ScopeFamily RuleScope = "family"
)

// RecurringRule представляет собой основную модель повторяющегося обязательства,
// используемую в бизнес-логике и хранилище.
// Все даты хранятся в формате time.Time (полночь UTC), опциональные поля — указатели:
// nil означает отсутствие значения (правило бессрочное, триала нет и т.д.).
type RecurringRule struct {
	ID                string       // Идентификатор правила (uuid)
	Scope             RuleScope    // Область видимости: personal или family
	Username          string       // Имя пользователя-владельца
	FamilyID          *string      // Идентификатор семьи (nil для личных правил)
	Payee             string       // Получатель платежа (отображаемое имя)
	AmountCents       int          // Сумма в минорных единицах валюты
	Currency          string       // Код валюты ISO 4217
	IntervalUnit      IntervalUnit // Единица интервала
	IntervalCount     int          // Количество единиц интервала ("каждые N")
	StartDate         time.Time    // Дата начала действия правила
	EndDate           *time.Time   // Дата окончания (nil — бессрочно)
	NextRunDate       time.Time    // Курсор: дата следующего не материализованного периода
	LastRunDate       *time.Time   // Дата последнего прогона движка по правилу
	Status            RuleStatus   // Статус жизненного цикла
	IsSubscription    bool         // Признак подписки
	TrialEndDate      *time.Time   // Дата окончания триала (периоды до неё включительно не выставляются)
	CancelAtPeriodEnd bool         // Флаг отмены после текущего цикла
	PaymentMethod     string       // Метка способа оплаты
}

// DummyRule используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в RecurringRule.
// Даты приходят в виде строк формата 2006-01-02, чтобы их можно было валидировать и парсить вручную.
type DummyRule struct {
	Scope          string `json:"scope" validate:"required,oneof=personal family"`                       // Область видимости
	FamilyID       string `json:"family_id,omitempty" validate:"omitempty,uuid"`                         // Идентификатор семьи
	Payee          string `json:"payee,omitempty"`                                                       // Получатель платежа
	AmountCents    int    `json:"amount_cents" validate:"required,gt=0"`                                 // Сумма (>0)
	Currency       string `json:"currency" validate:"required,len=3"`                                    // Код валюты ISO 4217
	IntervalUnit   string `json:"interval_unit" validate:"required,oneof=day week month year"`           // Единица интервала
	IntervalCount  int    `json:"interval_count" validate:"required,gte=1"`                              // Количество единиц (>=1)
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`                    // Дата начала
	EndDate        string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`           // Дата окончания
	NextRunDate    string `json:"next_run_date,omitempty" validate:"omitempty,datetime=2006-01-02"`      // Курсор (по умолчанию = start_date)
	IsSubscription bool   `json:"is_subscription,omitempty"`                                             // Признак подписки
	TrialEndDate   string `json:"trial_end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`     // Дата окончания триала
	PaymentMethod  string `json:"payment_method,omitempty"`                                              // Метка способа оплаты
}

// DummyUpdateRule используется для частичного обновления правила из JSON-запроса.
// Поля-указатели: nil означает "не менять".
type DummyUpdateRule struct {
	Payee         *string `json:"payee,omitempty"`                                                   // Получатель платежа
	AmountCents   *int    `json:"amount_cents,omitempty" validate:"omitempty,gt=0"`                  // Сумма (>0)
	Currency      *string `json:"currency,omitempty" validate:"omitempty,len=3"`                     // Код валюты
	EndDate       *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`       // Дата окончания
	TrialEndDate  *string `json:"trial_end_date,omitempty" validate:"omitempty,datetime=2006-01-02"` // Дата окончания триала
	PaymentMethod *string `json:"payment_method,omitempty"`                                          // Метка способа оплаты
}

// RuleUpdate — частичное обновление правила для слоя хранилища.
// Даты уже распарсены, nil-поля не изменяются.
type RuleUpdate struct {
	Payee         *string
	AmountCents   *int
	Currency      *string
	EndDate       *time.Time
	TrialEndDate  *time.Time
	PaymentMethod *string
}
