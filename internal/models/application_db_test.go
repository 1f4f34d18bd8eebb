package models_test

import (
	"testing"

	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageEligibleOnLoad(t *testing.T) {
	db := testutil.NewDB(t)
	stagiaire := testutil.User(t, db, models.RoleStagiaire, "s@arte.local")
	app := testutil.Application(t, db, &stagiaire)

	var got models.Application
	require.NoError(t, db.Preload("Stage").First(&got, app.ID).Error)
	assert.False(t, got.StageEligible, "pending")

	require.NoError(t, db.Model(&app).Update("status", models.ApplicationStatusApproved).Error)
	require.NoError(t, db.Preload("Stage").First(&got, app.ID).Error)
	assert.True(t, got.StageEligible, "approved without stage")

	stage := testutil.Stage(t, db, stagiaire, nil)
	require.NoError(t, db.Model(&stage).Update("application_id", app.ID).Error)

	got = models.Application{}
	require.NoError(t, db.Preload("Stage").First(&got, app.ID).Error)
	assert.False(t, got.StageEligible, "preloaded stage")

	got = models.Application{}
	require.NoError(t, db.First(&got, app.ID).Error)
	assert.False(t, got.StageEligible, "stage not preloaded")

	var st models.Stage
	require.NoError(t, db.Preload("Application").First(&st, stage.ID).Error)
	require.NotNil(t, st.Application)
	assert.False(t, st.Application.StageEligible, "nested under its stage")

	// a soft-deleted stage frees the application
	require.NoError(t, db.Delete(&stage).Error)
	got = models.Application{}
	require.NoError(t, db.Preload("Stage").First(&got, app.ID).Error)
	assert.True(t, got.StageEligible)

	again := testutil.Stage(t, db, stagiaire, nil)
	assert.NoError(t, db.Model(&again).Update("application_id", app.ID).Error)
}
