// Package schedule проверяет размещение постов в календаре.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
)

// DateLayout - формат календарной даты в API и дайджесте.
const DateLayout = "2006-01-02"

// Validator отклоняет даты раньше сегодняшнего дня.
// Все даты приводятся к началу суток в одной канонической зоне,
// чтобы результат не зависел от зоны вызывающего около полуночи.
type Validator struct {
	loc *time.Location
	now func() time.Time
}

// NewValidator создает валидатор. nil loc означает UTC, nil now - time.Now.
func NewValidator(loc *time.Location, now func() time.Time) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{loc: loc, now: now}
}

// Location возвращает каноническую зону.
func (v *Validator) Location() *time.Location { return v.loc }

// Now возвращает текущий момент в канонической зоне.
func (v *Validator) Now() time.Time { return v.now().In(v.loc) }

// Today возвращает начало текущих суток.
func (v *Validator) Today() time.Time { return StartOfDay(v.now(), v.loc) }

// Validate возвращает ValidationError, если target раньше сегодняшнего дня.
// Сегодняшняя дата допустима.
func (v *Validator) Validate(target time.Time) error {
	day := StartOfDay(target, v.loc)
	if day.Before(v.Today()) {
		return domain.NewValidationError("publishDate",
			"cannot schedule into the past (%s is before %s)",
			day.Format(DateLayout), v.Today().Format(DateLayout))
	}
	return nil
}

// ParseDate разбирает "YYYY-MM-DD" как начало суток в канонической зоне.
func (v *Validator) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), v.loc)
	if err != nil {
		return time.Time{}, domain.NewValidationError("publishDate", "invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// AddDays сдвигает момент на n календарных дней в канонической зоне.
func (v *Validator) AddDays(t time.Time, n int) time.Time {
	return t.In(v.loc).AddDate(0, 0, n)
}

// StartOfDay возвращает полночь календарного дня t в зоне loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NormalizeClock проверяет время "HH:MM" и возвращает его в каноническом виде.
// Пустая строка заменяется на fallback.
func NormalizeClock(s, fallback string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = fallback
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", domain.NewValidationError("publishTime", "invalid time %q, want HH:MM", s)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()), nil
}
