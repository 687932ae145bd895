package reports_test

import (
	"testing"
	"time"

	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/reports"
	"github.com/hugh/go-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	now := time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC)

	start, end, err := reports.Window("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), end)

	start, end, err = reports.Window("2024-02-29", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = reports.Window("yesterday", now)
	assert.ErrorIs(t, err, reports.ErrInvalidDay)
}

func TestGenerateDaily(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := reports.NewService(db, testutil.DiscardLogger())

	day := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	before := day.Add(-36 * time.Hour)

	owner := testutil.CreateTestUser(t, db, "owner")
	p := testutil.CreateTestProject(t, db, nil, owner, "Geo")
	pl := testutil.CreateTestPlaylist(t, db, p.ID, "Rivers", 0)
	a1 := testutil.CreateTestActivity(t, db, pl.ID, "Nile", 0)
	a2 := testutil.CreateTestActivity(t, db, pl.ID, "Amazon", 1)
	old := testutil.CreateTestUser(t, db, "old")

	for _, m := range []interface{}{owner, p, pl, a1, a2} {
		require.NoError(t, db.Model(m).Update("created_at", day).Error)
	}
	require.NoError(t, db.Model(old).Update("created_at", before).Error)
	require.NoError(t, db.Delete(a2).Error)

	report, err := svc.GenerateDaily(ctx, "2024-05-01", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", report.Day)
	assert.Equal(t, int64(1), report.NewUsers)
	assert.Equal(t, int64(1), report.NewProjects)
	assert.Equal(t, int64(1), report.NewPlaylists)
	assert.Equal(t, int64(2), report.NewActivities)
	assert.Equal(t, int64(0), report.Publications)

	t.Run("redelivery overwrites instead of adding", func(t *testing.T) {
		require.NoError(t, db.Model(old).Update("created_at", day).Error)

		again, err := svc.GenerateDaily(ctx, "", time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, report.ID, again.ID)
		assert.Equal(t, int64(2), again.NewUsers)

		var rows int64
		db.Model(&models.DailyUsageReport{}).Count(&rows)
		assert.Equal(t, int64(1), rows)
	})
}
