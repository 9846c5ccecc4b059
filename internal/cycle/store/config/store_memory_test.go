package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educaid/internal/cycle/models"
)

func TestLoadBeforeAnyCycle(t *testing.T) {
	s := NewMemory()
	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestSaveAndLoadCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	deadline := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, &models.CycleConfig{
		Status:            models.StatusActive,
		AcademicYear:      "2025-2026",
		Semester:          models.SemesterFirst,
		UploadsEnabled:    true,
		DocumentsDeadline: &deadline,
	}))

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.Configured())

	// Mutating the loaded copy must not leak into the store.
	cfg.Status = models.StatusFinalized
	*cfg.DocumentsDeadline = deadline.AddDate(0, 1, 0)

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, again.Status)
	assert.Equal(t, deadline, *again.DocumentsDeadline)
}

func TestSetStatus(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SetStatus(ctx, models.StatusActive))
	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, models.StatusActive, cfg.Status)
	assert.False(t, cfg.Configured())
}
