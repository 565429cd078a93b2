package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("schedule: %w", NewValidationError("publishDate", "cannot schedule into the past (%s)", "2026-10-01"))
	assert.True(t, IsValidation(err))
	assert.Equal(t, "schedule: publishDate: cannot schedule into the past (2026-10-01)", err.Error())

	assert.False(t, IsValidation(errors.New("boom")))
	assert.Equal(t, "bare", (&ValidationError{Message: "bare"}).Error())
}

func TestNotFound(t *testing.T) {
	err := NotFound("post", "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "post with id abc: not found", err.Error())
}

func TestInvalidTransition(t *testing.T) {
	err := InvalidTransition("archive", PostDraft)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "status: cannot archive a draft post", err.Error())
}
