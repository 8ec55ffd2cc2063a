package service

import (
	"testing"
	"time"

	"todo-chat/models"

	"pgregory.net/rapid"
)

func drawBase(t *rapid.T) time.Time {
	year := rapid.IntRange(2020, 2040).Draw(t, "year")
	month := rapid.IntRange(1, 12).Draw(t, "month")
	day := rapid.IntRange(1, daysInMonth(year, time.Month(month))).Draw(t, "day")
	hour := rapid.IntRange(0, 23).Draw(t, "hour")
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
}

func TestNextDueDateAlwaysAdvances(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := drawBase(t)
		task := models.Task{
			RecurrencePattern: rapid.SampledFrom([]string{
				models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMonthly,
			}).Draw(t, "pattern"),
			RecurrenceInterval: rapid.IntRange(1, 12).Draw(t, "interval"),
			DueDate:            &base,
		}
		if task.RecurrencePattern == models.RecurrenceWeekly && rapid.Bool().Draw(t, "has_dow") {
			task.RecurrenceDayOfWeek = intPtr(rapid.IntRange(0, 6).Draw(t, "dow"))
		}
		if task.RecurrencePattern == models.RecurrenceMonthly && rapid.Bool().Draw(t, "has_dom") {
			task.RecurrenceDayOfMonth = intPtr(rapid.IntRange(1, 31).Draw(t, "dom"))
		}

		next := NextDueDate(&task, testTime())
		if !next.After(base) {
			t.Fatalf("next due %v is not after base %v for %+v", next, base, task)
		}
	})
}

func TestNextDueDateWeeklyLandsOnTarget(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := drawBase(t)
		target := rapid.IntRange(0, 6).Draw(t, "dow")
		interval := rapid.IntRange(1, 8).Draw(t, "interval")
		task := models.Task{
			RecurrencePattern:   models.RecurrenceWeekly,
			RecurrenceInterval:  interval,
			RecurrenceDayOfWeek: &target,
			DueDate:             &base,
		}

		next := NextDueDate(&task, testTime())
		if got := mondayIndexed(next.Weekday()); got != target {
			t.Fatalf("next due weekday = %d, want %d", got, target)
		}
		if gap := next.Sub(base); gap > time.Duration(interval)*7*24*time.Hour {
			t.Fatalf("next due %v is more than %d weeks after base %v", next, interval, base)
		}
	})
}

func TestNextDueDateMonthlyRespectsTargetDay(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := drawBase(t)
		target := rapid.IntRange(1, 31).Draw(t, "dom")
		task := models.Task{
			RecurrencePattern:    models.RecurrenceMonthly,
			RecurrenceInterval:   rapid.IntRange(1, 12).Draw(t, "interval"),
			RecurrenceDayOfMonth: &target,
			DueDate:              &base,
		}

		next := NextDueDate(&task, testTime())
		last := daysInMonth(next.Year(), next.Month())
		want := target
		if want > last {
			want = last
		}
		if next.Day() != want {
			t.Fatalf("next due day = %d, want %d (month has %d days)", next.Day(), want, last)
		}
	})
}
