// Package strategy хранит наборы целевых долей категорий и настройки,
// от которых зависит отчет о расхождении.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/UkralStul/content-alchemy/internal/variance"
	"github.com/google/uuid"
)

// BalancedTotal - сумма целей сбалансированного набора.
const BalancedTotal = 100

// Balance - сводка целей набора. Несбалансированный набор допустим,
// это подсказка для редактора, а не ошибка.
type Balance struct {
	SetID    string  `json:"setId"`
	Total    float64 `json:"total"`
	Balanced bool    `json:"balanced"`
}

// SettingsPatch - частичное обновление настроек. nil поля не меняются.
type SettingsPatch struct {
	RepurposeCycle      *int
	RepurposeSnoozeDays *int
	StaleIdeaDays       *int
	DigestRecipients    []string
	Lanes               []domain.LaneVisibility
}

// Service управляет наборами, целями, категориями и настройками.
type Service struct {
	store     storage.Storage
	validator *schedule.Validator
	logger    *slog.Logger
}

// New создает Service.
func New(store storage.Storage, validator *schedule.Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, validator: validator, logger: logger}
}

// Sets возвращает все наборы по имени.
func (s *Service) Sets(ctx context.Context) ([]*domain.AllocationSet, error) {
	return s.store.ListAllocationSets(ctx)
}

// Targets возвращает цели набора.
func (s *Service) Targets(ctx context.Context, setID string) ([]*domain.PillarTarget, error) {
	if _, err := s.store.GetAllocationSet(ctx, setID); err != nil {
		return nil, err
	}
	return s.store.ListPillarTargets(ctx, setID)
}

// CreateSet создает набор. Первый набор сразу становится активным.
func (s *Service) CreateSet(ctx context.Context, name string) (set *domain.AllocationSet, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "set name is required")
	}
	err = s.store.RunInTx(ctx, func(tx storage.Tx) error {
		sets, err := tx.ListAllocationSets(ctx)
		if err != nil {
			return err
		}
		for _, other := range sets {
			if strings.EqualFold(other.Name, name) {
				return domain.NewValidationError("name", "set %q already exists", name)
			}
		}
		set = &domain.AllocationSet{ID: uuid.NewString(), Name: name, IsActive: len(sets) == 0}
		return tx.SaveAllocationSet(ctx, set)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("allocation set created", "set_id", set.ID, "name", set.Name)
	return set, nil
}

// Activate делает набор единственным активным.
func (s *Service) Activate(ctx context.Context, setID string) (*domain.AllocationSet, error) {
	var active *domain.AllocationSet
	err := s.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetAllocationSet(ctx, setID); err != nil {
			return err
		}
		sets, err := tx.ListAllocationSets(ctx)
		if err != nil {
			return err
		}
		for _, set := range sets {
			want := set.ID == setID
			if want {
				active = set
			}
			if set.IsActive == want {
				continue
			}
			set.IsActive = want
			if err := tx.SaveAllocationSet(ctx, set); err != nil {
				return fmt.Errorf("save set %s: %w", set.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("allocation set activated", "set_id", setID)
	return active, nil
}

// Active возвращает активный набор или nil, если наборов нет.
func (s *Service) Active(ctx context.Context) (*domain.AllocationSet, error) {
	sets, err := s.store.ListAllocationSets(ctx)
	if err != nil {
		return nil, err
	}
	for _, set := range sets {
		if set.IsActive {
			return set, nil
		}
	}
	return nil, nil
}

// SetTarget записывает целевую долю категории, ограничивая ее [0, 150].
func (s *Service) SetTarget(ctx context.Context, setID, pillarRef string, pct float64) (target *domain.PillarTarget, err error) {
	if math.IsNaN(pct) {
		return nil, domain.NewValidationError("targetPercentage", "target must be a number")
	}
	err = s.store.RunInTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetAllocationSet(ctx, setID); err != nil {
			return err
		}
		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		target = &domain.PillarTarget{
			AllocationSetID:  setID,
			PillarID:         settings.PillarID(strings.TrimSpace(pillarRef)),
			TargetPercentage: domain.ClampTarget(pct),
		}
		if target.PillarID == "" {
			return domain.NewValidationError("pillarId", "pillar is required")
		}
		return tx.SavePillarTarget(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// Validate суммирует цели набора.
func (s *Service) Validate(ctx context.Context, setID string) (*Balance, error) {
	targets, err := s.Targets(ctx, setID)
	if err != nil {
		return nil, err
	}
	b := &Balance{SetID: setID}
	for _, t := range targets {
		b.Total += t.TargetPercentage
	}
	b.Balanced = math.Abs(b.Total-BalancedTotal) < 1e-9
	return b, nil
}

// Variance строит отчет о расхождении для активного набора.
// Без активного набора все цели считаются нулевыми.
func (s *Service) Variance(ctx context.Context, window variance.Window) (*variance.Report, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	active, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	activeID := ""
	targets := map[string]float64{}
	if active != nil {
		activeID = active.ID
		list, err := s.store.ListPillarTargets(ctx, active.ID)
		if err != nil {
			return nil, err
		}
		targets = variance.TargetMap(list)
	}

	posts, err := s.store.ListPosts(ctx, storage.PostFilter{
		Statuses: []domain.PostStatus{domain.PostPublished, domain.PostArchived},
	})
	if err != nil {
		return nil, err
	}
	report := variance.Compute(posts, settings.Pillars, targets, activeID, window, s.validator.Now())
	return &report, nil
}

// Settings возвращает глобальные настройки.
func (s *Service) Settings(ctx context.Context) (*domain.Settings, error) {
	return s.store.GetSettings(ctx)
}

// UpdateSettings применяет patch к настройкам.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (*domain.Settings, error) {
	positive := func(field string, v *int) error {
		if v != nil && *v < 1 {
			return domain.NewValidationError(field, "must be at least 1, got %d", *v)
		}
		return nil
	}
	if err := positive("repurposeCycle", patch.RepurposeCycle); err != nil {
		return nil, err
	}
	if err := positive("repurposeSnoozeDays", patch.RepurposeSnoozeDays); err != nil {
		return nil, err
	}
	if err := positive("staleIdeaDays", patch.StaleIdeaDays); err != nil {
		return nil, err
	}
	for _, lane := range patch.Lanes {
		if !lane.Platform.Valid() {
			return nil, domain.NewValidationError("lanes", "unsupported platform %q", lane.Platform)
		}
	}

	return s.updateSettings(ctx, func(st *domain.Settings) error {
		if patch.RepurposeCycle != nil {
			st.RepurposeCycle = *patch.RepurposeCycle
		}
		if patch.RepurposeSnoozeDays != nil {
			st.RepurposeSnoozeDays = *patch.RepurposeSnoozeDays
		}
		if patch.StaleIdeaDays != nil {
			st.StaleIdeaDays = *patch.StaleIdeaDays
		}
		if patch.DigestRecipients != nil {
			st.DigestRecipients = append(st.DigestRecipients[:0:0], patch.DigestRecipients...)
		}
		for _, lane := range patch.Lanes {
			setLane(st, lane)
		}
		return nil
	})
}

func setLane(st *domain.Settings, lane domain.LaneVisibility) {
	for i := range st.Lanes {
		if st.Lanes[i].Platform == lane.Platform {
			st.Lanes[i].Visible = lane.Visible
			return
		}
	}
	st.Lanes = append(st.Lanes, lane)
}

// SavePillar добавляет категорию или обновляет ее по id.
func (s *Service) SavePillar(ctx context.Context, p domain.Pillar) (*domain.Settings, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, domain.NewValidationError("name", "pillar name is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.updateSettings(ctx, func(st *domain.Settings) error {
		for i := range st.Pillars {
			if st.Pillars[i].ID != p.ID && strings.EqualFold(st.Pillars[i].Name, p.Name) {
				return domain.NewValidationError("name", "pillar %q already exists", p.Name)
			}
		}
		for i := range st.Pillars {
			if st.Pillars[i].ID == p.ID {
				st.Pillars[i] = p
				return nil
			}
		}
		st.Pillars = append(st.Pillars, p)
		return nil
	})
}

// DisablePillar выключает категорию. Категория остается в настройках,
// чтобы старые посты сохраняли ссылку, но выпадает из отчета.
func (s *Service) DisablePillar(ctx context.Context, id string) (*domain.Settings, error) {
	return s.updateSettings(ctx, func(st *domain.Settings) error {
		for i := range st.Pillars {
			if st.Pillars[i].ID == id {
				st.Pillars[i].Active = false
				return nil
			}
		}
		return domain.NotFound("pillar", id)
	})
}

func (s *Service) updateSettings(ctx context.Context, fn func(st *domain.Settings) error) (settings *domain.Settings, err error) {
	err = s.store.RunInTx(ctx, func(tx storage.Tx) error {
		st, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		settings = st
		return tx.SaveSettings(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}
