package main

import (
	"context"
	"fmt"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/ideas"
	"github.com/UkralStul/content-alchemy/internal/lifecycle"
)

// fillWithMockData заполняет пустое хранилище демонстрационными данными
// через те же сервисы, что обслуживают API.
func fillWithMockData(ctx context.Context, a *app) error {
	// 1. Категории и стратегия
	pillars := []domain.Pillar{
		{ID: "p-edu", Name: "Education", Color: "#2563eb", Active: true},
		{ID: "p-story", Name: "Stories", Color: "#f59e0b", Active: true},
		{ID: "p-promo", Name: "Promotion", Color: "#dc2626", Active: true},
	}
	for _, p := range pillars {
		if _, err := a.strategy.SavePillar(ctx, p); err != nil {
			return fmt.Errorf("fillWithMockData: failed to save pillar %s: %w", p.ID, err)
		}
	}
	set, err := a.strategy.CreateSet(ctx, "Growth")
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create allocation set: %w", err)
	}
	for pillar, pct := range map[string]float64{"p-edu": 50, "p-story": 30, "p-promo": 20} {
		if _, err := a.strategy.SetTarget(ctx, set.ID, pillar, pct); err != nil {
			return fmt.Errorf("fillWithMockData: failed to set target %s: %w", pillar, err)
		}
	}

	// 2. Идея с двумя постами
	idea, err := a.ideas.Create(ctx, ideas.Input{
		Title:   "Onboarding lessons",
		Concept: "What new users get wrong in their first week.",
		Pillar:  "p-edu",
		Resources: []ideas.ResourceInput{
			{Label: "cover", URI: "https://cdn.example.com/onboarding/cover.png"},
		},
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create idea: %w", err)
	}
	first, err := a.posts.CreateForIdea(ctx, idea.ID, lifecycle.PostInput{
		Platform:         domain.PlatformLinkedIn,
		PostTitle:        "Five onboarding mistakes",
		Content:          "A carousel walking through the common mistakes.",
		DefinitivePillar: "p-edu",
		IsEvergreen:      true,
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create post 1: %w", err)
	}
	today := a.validator.Today()
	if _, err := a.posts.Schedule(ctx, first.ID, today, "09:00"); err != nil {
		return fmt.Errorf("fillWithMockData: failed to schedule post 1: %w", err)
	}

	if _, err := a.posts.CreateForIdea(ctx, idea.ID, lifecycle.PostInput{
		Platform:         domain.PlatformTwitter,
		PostTitle:        "Onboarding thread",
		DefinitivePillar: "Education",
	}); err != nil {
		return fmt.Errorf("fillWithMockData: failed to create post 2: %w", err)
	}

	// 3. Пост прямого ввода в календаре
	direct, err := a.posts.CreateDirect(ctx, lifecycle.PostInput{
		Platform:         domain.PlatformInstagram,
		PostTitle:        "Behind the scenes",
		DefinitivePillar: "p-story",
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create direct post: %w", err)
	}
	if _, err := a.posts.Schedule(ctx, direct.ID, a.validator.AddDays(today, 2), "18:30"); err != nil {
		return fmt.Errorf("fillWithMockData: failed to schedule direct post: %w", err)
	}

	a.logger.Info("mock data filled",
		"idea_id", idea.ID,
		"idea_number", idea.IdeaNumber,
		"direct_post_id", direct.ID,
		"direct_entry_sequence", *direct.DirectEntrySequence)
	return nil
}
