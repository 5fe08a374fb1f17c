package calendar

import (
	"testing"
	"time"

	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonthsSafe_TableTests(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{
			name: "jan 31 plus one month clamps to feb 29 on leap year",
			in:   date(2024, 1, 31),
			n:    1,
			want: date(2024, 2, 29),
		},
		{
			name: "jan 31 plus one month clamps to feb 28 off leap year",
			in:   date(2025, 1, 31),
			n:    1,
			want: date(2025, 2, 28),
		},
		{
			name: "jan 31 plus two months returns to the 31st",
			in:   date(2025, 1, 31),
			n:    2,
			want: date(2025, 3, 31),
		},
		{
			name: "mid month day is untouched",
			in:   date(2025, 4, 15),
			n:    3,
			want: date(2025, 7, 15),
		},
		{
			name: "may 31 plus one month clamps to jun 30",
			in:   date(2025, 5, 31),
			n:    1,
			want: date(2025, 6, 30),
		},
		{
			name: "year boundary",
			in:   date(2024, 12, 31),
			n:    2,
			want: date(2025, 2, 28),
		},
		{
			name: "negative months",
			in:   date(2025, 3, 31),
			n:    -1,
			want: date(2025, 2, 28),
		},
		{
			name: "twelve months as a year",
			in:   date(2024, 2, 29),
			n:    12,
			want: date(2025, 2, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMonthsSafe(tt.in, tt.n); !got.Equal(tt.want) {
				t.Errorf("AddMonthsSafe(%v, %d) = %v, want %v", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

// Прижатый результат переносится дальше: 2024-01-31 -> 2024-02-29 -> 2024-03-29.
func TestAdvance_ClampCarriesForward(t *testing.T) {
	cursor := date(2024, 1, 31)

	cursor = Advance(cursor, models.UnitMonth, 1)
	if want := date(2024, 2, 29); !cursor.Equal(want) {
		t.Fatalf("first advance = %v, want %v", cursor, want)
	}

	cursor = Advance(cursor, models.UnitMonth, 1)
	if want := date(2024, 3, 29); !cursor.Equal(want) {
		t.Fatalf("second advance = %v, want %v", cursor, want)
	}
}

func TestAdvance_TableTests(t *testing.T) {
	tests := []struct {
		name  string
		in    time.Time
		unit  models.IntervalUnit
		count int
		want  time.Time
	}{
		{
			name:  "one day",
			in:    date(2025, 1, 1),
			unit:  models.UnitDay,
			count: 1,
			want:  date(2025, 1, 2),
		},
		{
			name:  "ten days across month boundary",
			in:    date(2025, 1, 25),
			unit:  models.UnitDay,
			count: 10,
			want:  date(2025, 2, 4),
		},
		{
			name:  "two weeks",
			in:    date(2025, 8, 12),
			unit:  models.UnitWeek,
			count: 2,
			want:  date(2025, 8, 26),
		},
		{
			name:  "three months",
			in:    date(2025, 1, 31),
			unit:  models.UnitMonth,
			count: 3,
			want:  date(2025, 4, 30),
		},
		{
			name:  "one year from feb 29 clamps to feb 28",
			in:    date(2024, 2, 29),
			unit:  models.UnitYear,
			count: 1,
			want:  date(2025, 2, 28),
		},
		{
			name:  "four years from feb 29 lands on feb 29 again",
			in:    date(2024, 2, 29),
			unit:  models.UnitYear,
			count: 4,
			want:  date(2028, 2, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Advance(tt.in, tt.unit, tt.count); !got.Equal(tt.want) {
				t.Errorf("Advance(%v, %s, %d) = %v, want %v", tt.in, tt.unit, tt.count, got, tt.want)
			}
		})
	}
}

// Каждая дата в длинной месячной цепочке должна оставаться валидной,
// а день не должен уползать вперёд за исходный якорь.
func TestAdvance_MonthlyChainStaysValid(t *testing.T) {
	for _, anchor := range []int{29, 30, 31} {
		cursor := date(2025, 1, anchor)
		for range 48 {
			cursor = Advance(cursor, models.UnitMonth, 1)
			if cursor.Day() > anchor {
				t.Fatalf("anchor %d: day drifted forward to %v", anchor, cursor)
			}
		}
	}
}

func TestPeriodKey_TableTests(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		unit models.IntervalUnit
		want string
	}{
		{
			name: "day key is the iso date",
			in:   date(2025, 1, 1),
			unit: models.UnitDay,
			want: "2025-01-01",
		},
		{
			name: "week key for a tuesday",
			in:   date(2025, 8, 12),
			unit: models.UnitWeek,
			want: "2025-W33",
		},
		{
			name: "sunday belongs to the week started the previous monday",
			in:   date(2025, 8, 17),
			unit: models.UnitWeek,
			want: "2025-W33",
		},
		{
			name: "monday opens a new week",
			in:   date(2025, 8, 18),
			unit: models.UnitWeek,
			want: "2025-W34",
		},
		{
			name: "month key",
			in:   date(2025, 3, 31),
			unit: models.UnitMonth,
			want: "2025-03",
		},
		{
			name: "year key",
			in:   date(2025, 12, 31),
			unit: models.UnitYear,
			want: "2025",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodKey(tt.in, tt.unit); got != tt.want {
				t.Errorf("PeriodKey(%v, %s) = %q, want %q", tt.in, tt.unit, got, tt.want)
			}
		})
	}
}

// Первые три дневных ключа от 2025-01-01.
func TestPeriodKey_DailySequence(t *testing.T) {
	cursor := date(2025, 1, 1)
	want := []string{"2025-01-01", "2025-01-02", "2025-01-03"}
	for i, w := range want {
		if got := PeriodKey(cursor, models.UnitDay); got != w {
			t.Errorf("key %d = %q, want %q", i, got, w)
		}
		cursor = Advance(cursor, models.UnitDay, 1)
	}
}
