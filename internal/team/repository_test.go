package team_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/team"
	"github.com/hugh/go-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createTeam(t *testing.T, db *gorm.DB, name string) *models.Team {
	t.Helper()
	tm := &models.Team{Name: name}
	require.NoError(t, db.Create(tm).Error)
	return tm
}

func countTriples(t *testing.T, db *gorm.DB, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.TeamProjectUser{}).Where(where, args...).Count(&n).Error)
	return n
}

func TestRepository_SetTeamProjectUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := team.NewRepository(db)
	ctx := testutil.TestContext(t)

	u1 := testutil.CreateTestUser(t, db, "u1")
	u2 := testutil.CreateTestUser(t, db, "u2")
	p1 := testutil.CreateTestProject(t, db, nil, u1, "p1")
	p2 := testutil.CreateTestProject(t, db, nil, u1, "p2")
	tm := createTeam(t, db, "Team")

	t.Run("inserts cartesian product", func(t *testing.T) {
		err := repo.SetTeamProjectUser(ctx, tm, []uuid.UUID{p1.ID, p2.ID}, []uuid.UUID{u1.ID, u2.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(4), countTriples(t, db, "team_id = ?", tm.ID))
	})

	t.Run("is idempotent", func(t *testing.T) {
		require.NoError(t, repo.SetTeamProjectUser(ctx, tm, []uuid.UUID{p1.ID}, []uuid.UUID{u1.ID}))
		require.NoError(t, repo.SetTeamProjectUser(ctx, tm, []uuid.UUID{p1.ID}, []uuid.UUID{u1.ID}))
		assert.Equal(t, int64(1), countTriples(t, db, "team_id = ? AND project_id = ? AND user_id = ?", tm.ID, p1.ID, u1.ID))
		assert.Equal(t, int64(4), countTriples(t, db, "team_id = ?", tm.ID))
	})

	t.Run("empty lists are a no-op", func(t *testing.T) {
		require.NoError(t, repo.SetTeamProjectUser(ctx, tm, nil, []uuid.UUID{u1.ID}))
		require.NoError(t, repo.SetTeamProjectUser(ctx, tm, []uuid.UUID{p1.ID}, nil))
		assert.Equal(t, int64(4), countTriples(t, db, "team_id = ?", tm.ID))
	})

	t.Run("requires a persisted team", func(t *testing.T) {
		err := repo.SetTeamProjectUser(ctx, &models.Team{Name: "unsaved"}, []uuid.UUID{p1.ID}, []uuid.UUID{u1.ID})
		assert.ErrorIs(t, err, team.ErrTeamNotPersisted)
		err = repo.SetTeamProjectUser(ctx, nil, []uuid.UUID{p1.ID}, []uuid.UUID{u1.ID})
		assert.ErrorIs(t, err, team.ErrTeamNotPersisted)
	})
}

func TestRepository_RemoveScopes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := team.NewRepository(db)
	ctx := testutil.TestContext(t)

	u1 := testutil.CreateTestUser(t, db, "u1")
	u2 := testutil.CreateTestUser(t, db, "u2")
	p1 := testutil.CreateTestProject(t, db, nil, u1, "p1")
	p2 := testutil.CreateTestProject(t, db, nil, u1, "p2")
	t1 := createTeam(t, db, "T1")
	t2 := createTeam(t, db, "T2")

	all := func(tm *models.Team) {
		require.NoError(t, repo.SetTeamProjectUser(ctx, tm, []uuid.UUID{p1.ID, p2.ID}, []uuid.UUID{u1.ID, u2.ID}))
	}
	all(t1)
	all(t2)

	t.Run("remove user touches only that user in that team", func(t *testing.T) {
		require.NoError(t, repo.RemoveTeamProjectUser(ctx, t1.ID, u2.ID))
		assert.Equal(t, int64(0), countTriples(t, db, "team_id = ? AND user_id = ?", t1.ID, u2.ID))
		assert.Equal(t, int64(2), countTriples(t, db, "team_id = ? AND user_id = ?", t1.ID, u1.ID))
		assert.Equal(t, int64(4), countTriples(t, db, "team_id = ?", t2.ID))
	})

	t.Run("remove project touches only that project in that team", func(t *testing.T) {
		require.NoError(t, repo.RemoveTeamUserProject(ctx, t2.ID, p1.ID))
		assert.Equal(t, int64(0), countTriples(t, db, "team_id = ? AND project_id = ?", t2.ID, p1.ID))
		assert.Equal(t, int64(2), countTriples(t, db, "team_id = ? AND project_id = ?", t2.ID, p2.ID))
		assert.Equal(t, int64(1), countTriples(t, db, "team_id = ? AND project_id = ?", t1.ID, p1.ID))
	})
}

func TestRepository_GetTeamDetail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := team.NewRepository(db)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db, "owner")
	member := testutil.CreateTestUser(t, db, "member")
	p1 := testutil.CreateTestProject(t, db, nil, owner, "Alpha")
	p2 := testutil.CreateTestProject(t, db, nil, owner, "Beta")
	tm := createTeam(t, db, "Team")

	require.NoError(t, db.Create(&models.TeamUser{TeamID: tm.ID, UserID: owner.ID, Role: models.TeamRoleOwner}).Error)
	require.NoError(t, db.Create(&models.TeamUser{TeamID: tm.ID, UserID: member.ID, Role: models.TeamRoleCollaborator}).Error)
	require.NoError(t, db.Create(&[]models.TeamProject{{TeamID: tm.ID, ProjectID: p1.ID}, {TeamID: tm.ID, ProjectID: p2.ID}}).Error)
	require.NoError(t, repo.SetTeamProjectUser(ctx, tm, []uuid.UUID{p1.ID, p2.ID}, []uuid.UUID{owner.ID}))
	require.NoError(t, repo.SetTeamProjectUser(ctx, tm, []uuid.UUID{p1.ID}, []uuid.UUID{member.ID}))

	detail, err := repo.GetTeamDetail(ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, detail.OwnerID)
	require.Len(t, detail.Projects, 2)
	require.Len(t, detail.Users, 2)

	usersByProject := map[uuid.UUID]int{}
	for _, p := range detail.Projects {
		usersByProject[p.ID] = len(p.Users)
	}
	assert.Equal(t, 2, usersByProject[p1.ID])
	assert.Equal(t, 1, usersByProject[p2.ID])

	projectsByUser := map[uuid.UUID]int{}
	for _, u := range detail.Users {
		projectsByUser[u.ID] = len(u.Projects)
	}
	assert.Equal(t, 2, projectsByUser[owner.ID])
	assert.Equal(t, 1, projectsByUser[member.ID])

	_, err = repo.GetTeamDetail(ctx, uuid.New())
	assert.ErrorIs(t, err, team.ErrNotFound)
}
