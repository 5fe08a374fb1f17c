// Package services содержит калькулятор предпросмотра: проекцию ближайших N
// периодов кандидата правила без обращения к хранилищу. Использует ту же
// календарную арифметику и ключи периодов, что и движок материализации,
// поэтому предпросмотр никогда не расходится с материализованным результатом.
package services

import (
	"log/slog"
	"time"

	"github.com/magabrotheeeer/recurrents-engine/internal/lib/calendar"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// DefaultCount — количество периодов в предпросмотре по умолчанию.
const DefaultCount = 3

// PreviewService считает ближайшие периоды по конфигурации расписания.
type PreviewService struct {
	log *slog.Logger
}

// NewPreviewService создает новый экземпляр PreviewService.
func NewPreviewService(log *slog.Logger) *PreviewService {
	return &PreviewService{log: log}
}

// Occurrences возвращает n ближайших периодов, начиная с next,
// с шагом count единиц unit.
func (s *PreviewService) Occurrences(next time.Time, unit models.IntervalUnit, count, n int) []models.Occurrence {
	if n <= 0 {
		n = DefaultCount
	}

	occurrences := make([]models.Occurrence, 0, n)
	cursor := next
	for range n {
		occurrences = append(occurrences, models.Occurrence{
			DueDate:   cursor,
			PeriodKey: calendar.PeriodKey(cursor, unit),
		})
		cursor = calendar.Advance(cursor, unit, count)
	}
	return occurrences
}
