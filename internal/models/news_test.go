package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/herewego/transfer-admin/internal/models"
)

func TestNewChangeClassifies(t *testing.T) {
	item := &models.NewsItem{ID: "a"}

	created, err := models.NewChange("a", nil, item)
	require.NoError(t, err)
	require.Equal(t, models.Created, created.Kind)

	updated, err := models.NewChange("a", item, item)
	require.NoError(t, err)
	require.Equal(t, models.Updated, updated.Kind)

	deleted, err := models.NewChange("a", item, nil)
	require.NoError(t, err)
	require.Equal(t, models.Deleted, deleted.Kind)

	_, err = models.NewChange("a", nil, nil)
	require.ErrorIs(t, err, models.ErrEmptyChange)
}

func TestMilestoneHelpers(t *testing.T) {
	official := models.NewsItem{MilestoneStatus: 5}
	require.Equal(t, 5, official.Stage())
	require.False(t, official.Canceled())
	require.Equal(t, "Official", official.MilestoneLabel())

	canceled := models.NewsItem{MilestoneStatus: -3}
	require.Equal(t, 3, canceled.Stage())
	require.True(t, canceled.Canceled())
	require.Equal(t, "Medical", canceled.MilestoneLabel())

	require.Equal(t, "", models.NewsItem{}.MilestoneLabel())
	require.Equal(t, "", models.NewsItem{MilestoneStatus: 9}.MilestoneLabel())
}
