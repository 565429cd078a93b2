package main

import (
	"context"
	"testing"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/UkralStul/content-alchemy/internal/variance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillWithMockData(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "ALCHEMY_STORAGE"} {
		t.Setenv(k, "")
	}
	configPath, storageType = "", ""

	a, err := newApp()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fillWithMockData(ctx, a))

	posts, err := a.store.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	scheduled, err := a.store.ListPosts(ctx, storage.PostFilter{Statuses: []domain.PostStatus{domain.PostScheduled}})
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)
	for _, p := range posts {
		if p.PostTitle == "Onboarding thread" {
			assert.Equal(t, "p-edu", p.DefinitivePillar, "pillar names are stored as ids")
			assert.Equal(t, 2, p.Sequence)
		}
	}

	set, err := a.strategy.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, set)
	balance, err := a.strategy.Validate(ctx, set.ID)
	require.NoError(t, err)
	assert.True(t, balance.Balanced)

	report, err := a.strategy.Variance(ctx, variance.WindowAll)
	require.NoError(t, err)
	assert.True(t, report.InsufficientData)
	assert.Len(t, report.Rows, 3)
}
