//go:build integration

// Package integration exercises the persistence stack against a real
// Postgres instance started through testcontainers. Run with:
//
//	go test -tags integration ./test/integration/...
package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
	persistence "github.com/yambati03/touille/internal/infrastructure/persistence/gorm"
	"github.com/yambati03/touille/internal/infrastructure/persistence/postgres"
	"github.com/yambati03/touille/test/testutils"
)

type PersistenceSuite struct {
	suite.Suite
	db      *testutils.TestDatabase
	factory *testutils.Factory
	ctx     context.Context
}

func TestPersistenceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed suite in short mode")
	}
	suite.Run(t, new(PersistenceSuite))
}

func (s *PersistenceSuite) SetupSuite() {
	s.db = testutils.SetupTestDatabase(s.T())
	s.db.Migrate()
	s.ctx = context.Background()
}

func (s *PersistenceSuite) SetupTest() {
	s.db.TruncateAll()
	s.factory = testutils.NewFactory(1)
}

func (s *PersistenceSuite) TestRecipeRoundTrip() {
	repo := persistence.NewRecipeRepository(s.db.Gorm)
	rec := s.factory.Recipe("")

	require.NoError(s.T(), repo.Upsert(s.ctx, rec))

	found, err := repo.FindByID(s.ctx, rec.ID())
	require.NoError(s.T(), err)
	require.Equal(s.T(), rec.URL(), found.URL())
	require.Equal(s.T(), recipe.AnonymousUserID, found.UserID())
	require.Equal(s.T(), rec.Transcript(), found.Transcript())
	require.Equal(s.T(), rec.Document().Title, found.Document().Title)
	require.Len(s.T(), found.Document().Ingredients, len(rec.Document().Ingredients))

	byURL, err := repo.FindByURL(s.ctx, rec.URL(), recipe.AnonymousUserID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), rec.ID(), byURL.ID())
}

func (s *PersistenceSuite) TestRecipeUpsertKeepsIdentity() {
	repo := persistence.NewRecipeRepository(s.db.Gorm)
	url := s.factory.VideoURL()

	first, err := testutils.NewRecipeBuilder().WithURL(url).WithUser("chef-1").Build()
	require.NoError(s.T(), err)
	require.NoError(s.T(), repo.Upsert(s.ctx, first))

	second, err := testutils.NewRecipeBuilder().
		WithURL(url).
		WithUser("chef-1").
		WithTitle("Corrected Title").
		Build()
	require.NoError(s.T(), err)
	require.NoError(s.T(), repo.Upsert(s.ctx, second))

	found, err := repo.FindByURL(s.ctx, url, "chef-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), first.ID(), found.ID(), "reprocessing must keep the original id")
	require.WithinDuration(s.T(), first.CreatedAt(), found.CreatedAt(), time.Second)
	require.Equal(s.T(), "Corrected Title", found.Document().Title)

	_, total, err := repo.FindByUserID(s.ctx, "chef-1", 0, 10)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, total, "upsert must not duplicate the row")
}

func (s *PersistenceSuite) TestRecipeListPagination() {
	repo := persistence.NewRecipeRepository(s.db.Gorm)
	for i := 0; i < 5; i++ {
		require.NoError(s.T(), repo.Upsert(s.ctx, s.factory.Recipe("chef-2")))
	}

	page, total, err := repo.FindByUserID(s.ctx, "chef-2", 0, 3)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, total)
	require.Len(s.T(), page, 3)
	for i := 1; i < len(page); i++ {
		require.False(s.T(), page[i].CreatedAt().After(page[i-1].CreatedAt()), "pages must be newest first")
	}

	rest, total, err := repo.FindByUserID(s.ctx, "chef-2", 3, 3)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, total)
	require.Len(s.T(), rest, 2)
}

func (s *PersistenceSuite) TestRecipeDeleteOwnership() {
	repo := persistence.NewRecipeRepository(s.db.Gorm)
	rec := s.factory.Recipe("owner")
	require.NoError(s.T(), repo.Upsert(s.ctx, rec))

	err := repo.Delete(s.ctx, rec.ID(), "someone-else")
	require.ErrorIs(s.T(), err, recipe.ErrRecipeNotFound, "foreign rows must be invisible to delete")

	require.NoError(s.T(), repo.Delete(s.ctx, rec.ID(), "owner"))

	_, err = repo.FindByID(s.ctx, rec.ID())
	require.ErrorIs(s.T(), err, recipe.ErrRecipeNotFound)

	err = repo.Delete(s.ctx, rec.ID(), "owner")
	require.ErrorIs(s.T(), err, recipe.ErrRecipeNotFound)
}

func (s *PersistenceSuite) TestUserAndSessionFlow() {
	users := persistence.NewUserRepository(s.db.Gorm)
	sessions := persistence.NewSessionRepository(s.db.Gorm)

	u, password := s.factory.RegisteredUser()
	require.NoError(s.T(), users.Create(s.ctx, u))

	exists, err := users.ExistsByEmail(s.ctx, u.Email())
	require.NoError(s.T(), err)
	require.True(s.T(), exists)

	found, err := users.FindByEmail(s.ctx, u.Email())
	require.NoError(s.T(), err)
	require.NoError(s.T(), found.CheckPassword(password))

	sess := s.factory.Session(u.ID())
	require.NoError(s.T(), sessions.Create(s.ctx, sess))

	live, err := sessions.FindByToken(s.ctx, sess.Token())
	require.NoError(s.T(), err)
	require.Equal(s.T(), u.ID(), live.UserID())

	expired := user.ReconstructSession(
		"expired-session",
		u.ID(),
		"expired-token",
		time.Now().UTC().Add(-time.Hour),
		"127.0.0.1",
		"test",
		time.Now().UTC().Add(-2*time.Hour),
		time.Now().UTC().Add(-2*time.Hour),
	)
	require.NoError(s.T(), sessions.Create(s.ctx, expired))

	purged, err := sessions.DeleteExpired(s.ctx)
	require.NoError(s.T(), err)
	require.EqualValues(s.T(), 1, purged)

	_, err = sessions.FindByToken(s.ctx, "expired-token")
	require.ErrorIs(s.T(), err, user.ErrSessionNotFound)

	_, err = sessions.FindByToken(s.ctx, sess.Token())
	require.NoError(s.T(), err, "live sessions must survive the purge")
}

func (s *PersistenceSuite) TestSettingsUpsert() {
	repo := persistence.NewSettingsRepository(s.db.Gorm)

	missing, err := repo.Find(s.ctx, "nobody")
	require.NoError(s.T(), err)
	require.Nil(s.T(), missing, "absent settings are a nil record, not an error")

	prefs := s.factory.Settings("chef-3")
	require.NoError(s.T(), repo.Upsert(s.ctx, prefs))

	found, err := repo.Find(s.ctx, "chef-3")
	require.NoError(s.T(), err)
	require.Equal(s.T(), prefs.SpiceTolerance(), found.SpiceTolerance())

	updated, err := user.NewSettings("chef-3", nil, 5, nil)
	require.NoError(s.T(), err)
	require.NoError(s.T(), repo.Upsert(s.ctx, updated))

	found, err = repo.Find(s.ctx, "chef-3")
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, found.SpiceTolerance())
	require.Nil(s.T(), found.DietaryRestrictions())
}

func (s *PersistenceSuite) TestStatsRepository() {
	users := persistence.NewUserRepository(s.db.Gorm)
	recipes := persistence.NewRecipeRepository(s.db.Gorm)

	alice := s.factory.User()
	bob := s.factory.User()
	require.NoError(s.T(), users.Create(s.ctx, alice))
	require.NoError(s.T(), users.Create(s.ctx, bob))

	require.NoError(s.T(), recipes.Upsert(s.ctx, s.factory.Recipe(alice.ID())))
	require.NoError(s.T(), recipes.Upsert(s.ctx, s.factory.Recipe(alice.ID())))
	require.NoError(s.T(), recipes.Upsert(s.ctx, s.factory.Recipe(bob.ID())))

	pool, err := pgxpool.New(s.ctx, s.db.DSN)
	require.NoError(s.T(), err)
	defer pool.Close()

	stats := postgres.NewStatsRepository(pool)

	recipeCount, err := stats.CountRecipes(s.ctx)
	require.NoError(s.T(), err)
	require.EqualValues(s.T(), 3, recipeCount)

	userCount, err := stats.CountUsers(s.ctx)
	require.NoError(s.T(), err)
	require.EqualValues(s.T(), 2, userCount)

	perUser, err := stats.RecipesPerUser(s.ctx, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), perUser, 2)
	require.Equal(s.T(), alice.ID(), perUser[0].UserID)
	require.EqualValues(s.T(), 2, perUser[0].Count)

	recent, err := stats.RecentRecipes(s.ctx, time.Now().Add(-time.Hour))
	require.NoError(s.T(), err)
	require.EqualValues(s.T(), 3, recent)
}
