package team_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/tasks"
	"github.com/hugh/go-studio/internal/team"
	"github.com/hugh/go-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingInvites struct {
	mu       sync.Mutex
	payloads []tasks.TeamInvitePayload
}

func (r *recordingInvites) TeamInvite(_ context.Context, p tasks.TeamInvitePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return nil
}

type fixture struct {
	db      *gorm.DB
	svc     *team.Service
	invites *recordingInvites
	u1      *models.User
	u2      *models.User
	u3      *models.User
	p10     *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	invites := &recordingInvites{}
	f := &fixture{
		db:      db,
		svc:     team.NewService(db, policy.NewEvaluator(db), invites, testutil.DiscardLogger()),
		invites: invites,
		u1:      testutil.CreateTestUser(t, db, "u1"),
		u2:      testutil.CreateTestUser(t, db, "u2"),
		u3:      testutil.CreateTestUser(t, db, "u3"),
	}
	f.p10 = testutil.CreateTestProject(t, db, nil, f.u1, "p10")
	return f
}

func (f *fixture) snapshot(t *testing.T, teamID uuid.UUID) (members, projects, triples int64) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.TeamUser{}).Where("team_id = ?", teamID).Count(&members).Error)
	require.NoError(t, f.db.Model(&models.TeamProject{}).Where("team_id = ?", teamID).Count(&projects).Error)
	require.NoError(t, f.db.Model(&models.TeamProjectUser{}).Where("team_id = ?", teamID).Count(&triples).Error)
	return
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	detail, err := f.svc.Create(ctx, f.u1.ID, team.CreateInput{
		Name:       "Biology",
		UserIDs:    []uuid.UUID{f.u2.ID, f.u3.ID},
		ProjectIDs: []uuid.UUID{f.p10.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, f.u1.ID, detail.OwnerID)

	var pivots []models.TeamUser
	require.NoError(t, f.db.Where("team_id = ?", detail.ID).Find(&pivots).Error)
	roles := map[uuid.UUID]string{}
	for _, p := range pivots {
		roles[p.UserID] = p.Role
		if p.Role == models.TeamRoleCollaborator {
			assert.Len(t, p.Token, 40)
		}
	}
	assert.Equal(t, map[uuid.UUID]string{
		f.u1.ID: models.TeamRoleOwner,
		f.u2.ID: models.TeamRoleCollaborator,
		f.u3.ID: models.TeamRoleCollaborator,
	}, roles)

	var triples []models.TeamProjectUser
	require.NoError(t, f.db.Where("team_id = ?", detail.ID).Find(&triples).Error)
	got := map[uuid.UUID]bool{}
	for _, tr := range triples {
		assert.Equal(t, f.p10.ID, tr.ProjectID)
		got[tr.UserID] = true
	}
	assert.Equal(t, map[uuid.UUID]bool{f.u1.ID: true, f.u2.ID: true, f.u3.ID: true}, got)

	require.Len(t, f.invites.payloads, 2)
	for _, p := range f.invites.payloads {
		assert.Equal(t, detail.ID, p.TeamID)
		assert.Equal(t, f.u1.ID, p.InvitedBy)
	}

	t.Run("unknown user creates nothing", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.u1.ID, team.CreateInput{Name: "Bad", UserIDs: []uuid.UUID{uuid.New()}})
		assert.ErrorIs(t, err, team.ErrUserNotFound)
		var n int64
		require.NoError(t, f.db.Model(&models.Team{}).Where("name = ?", "Bad").Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("cannot attach another user's project", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, f.db, "outsider")
		_, err := f.svc.Create(ctx, outsider.ID, team.CreateInput{Name: "Steal", ProjectIDs: []uuid.UUID{f.p10.ID}})
		assert.ErrorIs(t, err, policy.ErrForbidden)
	})
}

func TestService_NonOwnerForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	detail, err := f.svc.Create(ctx, f.u1.ID, team.CreateInput{
		Name:       "Chemistry",
		UserIDs:    []uuid.UUID{f.u2.ID, f.u3.ID},
		ProjectIDs: []uuid.UUID{f.p10.ID},
	})
	require.NoError(t, err)
	before := [3]int64{}
	before[0], before[1], before[2] = f.snapshot(t, detail.ID)

	p11 := testutil.CreateTestProject(t, f.db, nil, f.u2, "p11")

	err = f.svc.RemoveMember(ctx, f.u2.ID, detail.ID, f.u3.ID)
	assert.ErrorIs(t, err, policy.ErrForbidden)

	_, err = f.svc.AddProjects(ctx, f.u2.ID, detail.ID, []uuid.UUID{p11.ID})
	assert.ErrorIs(t, err, policy.ErrForbidden)

	_, err = f.svc.AddMembers(ctx, f.u3.ID, detail.ID, []uuid.UUID{f.u2.ID})
	assert.ErrorIs(t, err, policy.ErrForbidden)

	assert.ErrorIs(t, f.svc.RemoveProject(ctx, f.u3.ID, detail.ID, f.p10.ID), policy.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.u2.ID, detail.ID), policy.ErrForbidden)

	after := [3]int64{}
	after[0], after[1], after[2] = f.snapshot(t, detail.ID)
	assert.Equal(t, before, after)

	t.Run("members may view", func(t *testing.T) {
		got, err := f.svc.Get(ctx, f.u3.ID, detail.ID)
		require.NoError(t, err)
		assert.Equal(t, detail.ID, got.ID)
	})

	t.Run("outsiders may not view", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, f.db, "outsider")
		_, err := f.svc.Get(ctx, outsider.ID, detail.ID)
		assert.ErrorIs(t, err, policy.ErrForbidden)
	})

	t.Run("missing team is not found", func(t *testing.T) {
		err := f.svc.RemoveMember(ctx, f.u1.ID, uuid.New(), f.u2.ID)
		assert.ErrorIs(t, err, team.ErrNotFound)
	})
}

func TestService_MembersAndProjects(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	detail, err := f.svc.Create(ctx, f.u1.ID, team.CreateInput{
		Name:       "Physics",
		UserIDs:    []uuid.UUID{f.u2.ID},
		ProjectIDs: []uuid.UUID{f.p10.ID},
	})
	require.NoError(t, err)

	t.Run("add members shares existing projects", func(t *testing.T) {
		_, err := f.svc.AddMembers(ctx, f.u1.ID, detail.ID, []uuid.UUID{f.u2.ID, f.u3.ID})
		require.NoError(t, err)
		members, _, triples := f.snapshot(t, detail.ID)
		assert.Equal(t, int64(3), members)
		assert.Equal(t, int64(3), triples)
		assert.Len(t, f.invites.payloads, 2, "existing member is not re-invited")
	})

	t.Run("add projects shares with every member", func(t *testing.T) {
		p12 := testutil.CreateTestProject(t, f.db, nil, f.u1, "p12")
		got, err := f.svc.AddProjects(ctx, f.u1.ID, detail.ID, []uuid.UUID{p12.ID})
		require.NoError(t, err)
		assert.Len(t, got.Projects, 2)
		_, projects, triples := f.snapshot(t, detail.ID)
		assert.Equal(t, int64(2), projects)
		assert.Equal(t, int64(6), triples)
	})

	t.Run("remove member drops only that user's associations", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveMember(ctx, f.u1.ID, detail.ID, f.u3.ID))
		members, _, triples := f.snapshot(t, detail.ID)
		assert.Equal(t, int64(2), members)
		assert.Equal(t, int64(4), triples)
		assert.ErrorIs(t, f.svc.RemoveMember(ctx, f.u1.ID, detail.ID, f.u3.ID), team.ErrNotMember)
	})

	t.Run("owner cannot be removed", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.RemoveMember(ctx, f.u1.ID, detail.ID, f.u1.ID), team.ErrCannotRemoveOwner)
	})

	t.Run("remove project keeps the project", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveProject(ctx, f.u1.ID, detail.ID, f.p10.ID))
		_, projects, triples := f.snapshot(t, detail.ID)
		assert.Equal(t, int64(1), projects)
		assert.Equal(t, int64(2), triples)

		var p models.Project
		assert.NoError(t, f.db.First(&p, "id = ?", f.p10.ID).Error)
		assert.ErrorIs(t, f.svc.RemoveProject(ctx, f.u1.ID, detail.ID, f.p10.ID), team.ErrProjectNotInTeam)
	})

	t.Run("list and owner", func(t *testing.T) {
		teams, err := f.svc.ListForUser(ctx, f.u2.ID)
		require.NoError(t, err)
		require.Len(t, teams, 1)

		owner, err := f.svc.Owner(ctx, detail.ID)
		require.NoError(t, err)
		assert.Equal(t, f.u1.ID, owner)
	})

	t.Run("update and delete", func(t *testing.T) {
		name := "Quantum Physics"
		got, err := f.svc.Update(ctx, f.u1.ID, detail.ID, team.UpdateInput{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, got.Name)

		require.NoError(t, f.svc.Delete(ctx, f.u1.ID, detail.ID))
		members, projects, triples := f.snapshot(t, detail.ID)
		assert.Zero(t, members+projects+triples)

		var users int64
		require.NoError(t, f.db.Model(&models.User{}).Where("id IN ?", []uuid.UUID{f.u1.ID, f.u2.ID}).Count(&users).Error)
		assert.Equal(t, int64(2), users)
	})
}

// reassignedOwner reports a different owner than the stored pivots while
// authorizing through the real evaluator.
type reassignedOwner struct {
	*policy.Evaluator
	owner uuid.UUID
}

func (r reassignedOwner) TeamOwner(context.Context, uuid.UUID) (uuid.UUID, error) {
	return r.owner, nil
}

func TestService_OwnerComesFromPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	detail, err := f.svc.Create(ctx, f.u1.ID, team.CreateInput{Name: "Chemistry", UserIDs: []uuid.UUID{f.u2.ID}})
	require.NoError(t, err)

	svc := team.NewService(f.db, reassignedOwner{Evaluator: policy.NewEvaluator(f.db), owner: f.u2.ID}, f.invites, testutil.DiscardLogger())

	owner, err := svc.Owner(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, f.u2.ID, owner)

	assert.ErrorIs(t, svc.RemoveMember(ctx, f.u1.ID, detail.ID, f.u2.ID), team.ErrCannotRemoveOwner)
	members, _, _ := f.snapshot(t, detail.ID)
	assert.Equal(t, int64(2), members)
}
