// Package variance сравнивает фактическое распределение опубликованных постов
// по категориям с целевыми долями активного набора.
package variance

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
)

// DisabledPrefix помечает отключенную категорию в ее имени.
const DisabledPrefix = "[DISABLED]"

// Window - окно расчета в днях. WindowAll - за все время.
type Window int

const (
	WindowAll   Window = 0
	WindowWeek  Window = 7
	WindowMonth Window = 30
	WindowQtr   Window = 90
)

// ParseWindow разбирает "7d", "30d", "90d" или "all".
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return WindowAll, nil
	case "7", "7d":
		return WindowWeek, nil
	case "30", "30d":
		return WindowMonth, nil
	case "90", "90d":
		return WindowQtr, nil
	}
	return 0, domain.NewValidationError("window", "unsupported window %q, want 7d, 30d, 90d or all", s)
}

func (w Window) String() string {
	if w == WindowAll {
		return "all"
	}
	return fmt.Sprintf("%dd", int(w))
}

// Row - строка отчета по одной категории. Проценты округлены до целых.
type Row struct {
	Pillar   domain.Pillar `json:"pillar"`
	Target   int           `json:"target"`
	Actual   int           `json:"actual"`
	Count    int           `json:"count"`
	Variance int           `json:"variance"`
}

// Report - результат расчета.
type Report struct {
	Window Window `json:"window"`
	Rows   []Row  `json:"rows"`
	Total  int    `json:"total"`
	// InsufficientData - в окне нет опубликованных постов, фактические доли равны 0.
	InsufficientData bool `json:"insufficientData"`
}

// Strategic сообщает, участвует ли категория в расчете.
func Strategic(p domain.Pillar) bool {
	return p.Active && !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(p.Name)), DisabledPrefix)
}

// Compute строит отчет. Функция чистая: входные данные не меняются.
// targets индексируются ключом domain.TargetKey(activeSetID, pillarID).
func Compute(posts []*domain.Post, pillars []domain.Pillar, targets map[string]float64, activeSetID string, window Window, now time.Time) Report {
	var cutoff time.Time
	if window != WindowAll {
		cutoff = now.AddDate(0, 0, -int(window))
	}

	published := make([]*domain.Post, 0, len(posts))
	for _, p := range posts {
		if p == nil || !p.CountsAsPublished() {
			continue
		}
		if window != WindowAll && (p.PublishDate == nil || p.PublishDate.Before(cutoff)) {
			continue
		}
		published = append(published, p)
	}

	report := Report{
		Window:           window,
		Rows:             make([]Row, 0, len(pillars)),
		Total:            len(published),
		InsufficientData: len(published) == 0,
	}
	for _, pillar := range pillars {
		if !Strategic(pillar) {
			continue
		}
		count := 0
		for _, p := range published {
			// Старые посты хранят имя категории, новые - id
			if p.DefinitivePillar == pillar.ID || p.DefinitivePillar == pillar.Name {
				count++
			}
		}
		actual := 0
		if report.Total > 0 {
			actual = round(100 * float64(count) / float64(report.Total))
		}
		target := round(targets[domain.TargetKey(activeSetID, pillar.ID)])
		report.Rows = append(report.Rows, Row{
			Pillar:   pillar,
			Target:   target,
			Actual:   actual,
			Count:    count,
			Variance: target - actual,
		})
	}
	return report
}

// TargetMap индексирует цели по составному ключу.
func TargetMap(targets []*domain.PillarTarget) map[string]float64 {
	m := make(map[string]float64, len(targets))
	for _, t := range targets {
		m[t.Key()] = t.TargetPercentage
	}
	return m
}

func round(v float64) int {
	return int(math.Round(v))
}
