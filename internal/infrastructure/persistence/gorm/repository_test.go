package gorm_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
	persistence "github.com/yambati03/touille/internal/infrastructure/persistence/gorm"
)

// RepositoryTestSuite exercises the GORM repositories against an
// in-memory database.
type RepositoryTestSuite struct {
	suite.Suite
	db  *gormlib.DB
	ctx context.Context
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := gormlib.Open(sqlite.Open(":memory:"), &gormlib.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	require.NoError(s.T(), db.AutoMigrate(
		&persistence.RecipeModel{},
		&persistence.UserModel{},
		&persistence.SessionModel{},
		&persistence.AccountModel{},
		&persistence.VerificationModel{},
		&persistence.UserSettingsModel{},
	))

	s.db = db
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) newRecipe(url, userID, transcript string) *recipe.Recipe {
	doc := recipe.Document{
		Title:       "Garlic Noodles",
		Ingredients: []recipe.Ingredient{{Name: "garlic"}},
		Steps:       []recipe.Step{{Order: 1, Instruction: "Mince the garlic"}},
	}
	rec, err := recipe.NewRecipe(url, userID, transcript, nil, doc)
	require.NoError(s.T(), err)
	return rec
}

func (s *RepositoryTestSuite) TestRecipeUpsertReplacesExistingRow() {
	repo := persistence.NewRecipeRepository(s.db)

	// Arrange
	first := s.newRecipe("https://www.tiktok.com/@cook/video/1", "user-1", "first transcript")
	require.NoError(s.T(), repo.Upsert(s.ctx, first))

	// Act
	second := s.newRecipe("https://www.tiktok.com/@cook/video/1", "user-1", "second transcript")
	require.NoError(s.T(), repo.Upsert(s.ctx, second))

	// Assert
	var count int64
	require.NoError(s.T(), s.db.Model(&persistence.RecipeModel{}).Count(&count).Error)
	s.Equal(int64(1), count, "reprocessing the same url should not add a row")

	stored, err := repo.FindByURL(s.ctx, first.URL(), "user-1")
	require.NoError(s.T(), err)
	s.Equal("second transcript", stored.Transcript())
	s.Equal(first.ID(), stored.ID(), "the original row id survives replacement")
}

func (s *RepositoryTestSuite) TestRecipeRowsArePerUser() {
	repo := persistence.NewRecipeRepository(s.db)

	// Arrange
	require.NoError(s.T(), repo.Upsert(s.ctx, s.newRecipe("https://www.tiktok.com/@cook/video/1", "user-1", "t1")))
	require.NoError(s.T(), repo.Upsert(s.ctx, s.newRecipe("https://www.tiktok.com/@cook/video/1", "user-2", "t2")))
	require.NoError(s.T(), repo.Upsert(s.ctx, s.newRecipe("https://www.tiktok.com/@cook/video/2", "user-1", "t3")))

	// Act
	recipes, total, err := repo.FindByUserID(s.ctx, "user-1", 0, 10)

	// Assert
	require.NoError(s.T(), err)
	s.Equal(2, total)
	s.Len(recipes, 2)
}

func (s *RepositoryTestSuite) TestRecipeListNewestFirst() {
	repo := persistence.NewRecipeRepository(s.db)

	// Arrange
	old := recipe.Reconstruct(uuid.New(), "https://www.tiktok.com/@cook/video/1", "user-1",
		"old", nil, recipe.Document{Title: "Old"}, time.Now().Add(-2*time.Hour))
	fresh := recipe.Reconstruct(uuid.New(), "https://www.tiktok.com/@cook/video/2", "user-1",
		"fresh", nil, recipe.Document{Title: "Fresh"}, time.Now())
	require.NoError(s.T(), repo.Upsert(s.ctx, old))
	require.NoError(s.T(), repo.Upsert(s.ctx, fresh))

	// Act
	recipes, _, err := repo.FindByUserID(s.ctx, "user-1", 0, 10)

	// Assert
	require.NoError(s.T(), err)
	require.Len(s.T(), recipes, 2)
	s.Equal("Fresh", recipes[0].Document().Title)
}

func (s *RepositoryTestSuite) TestRecipeDeleteChecksOwnership() {
	repo := persistence.NewRecipeRepository(s.db)

	// Arrange
	rec := s.newRecipe("https://www.tiktok.com/@cook/video/1", "user-1", "t")
	require.NoError(s.T(), repo.Upsert(s.ctx, rec))

	// Act & Assert
	err := repo.Delete(s.ctx, rec.ID(), "someone-else")
	s.ErrorIs(err, recipe.ErrRecipeNotFound)

	s.NoError(repo.Delete(s.ctx, rec.ID(), "user-1"))
	_, err = repo.FindByID(s.ctx, rec.ID())
	s.ErrorIs(err, recipe.ErrRecipeNotFound)
}

func (s *RepositoryTestSuite) TestUserRoundTrip() {
	repo := persistence.NewUserRepository(s.db)

	// Arrange
	u, err := user.NewUser("Maya Chen", "maya@example.com", "plentystrong")
	require.NoError(s.T(), err)

	// Act
	require.NoError(s.T(), repo.Create(s.ctx, u))
	loaded, err := repo.FindByEmail(s.ctx, "MAYA@example.com")

	// Assert
	require.NoError(s.T(), err)
	s.Equal(u.ID(), loaded.ID())
	s.NoError(loaded.CheckPassword("plentystrong"), "the credential hash survives storage")

	exists, err := repo.ExistsByEmail(s.ctx, "maya@example.com")
	require.NoError(s.T(), err)
	s.True(exists)
}

func (s *RepositoryTestSuite) TestUserDuplicateEmail() {
	repo := persistence.NewUserRepository(s.db)

	// Arrange
	first, err := user.NewUser("Maya Chen", "maya@example.com", "plentystrong")
	require.NoError(s.T(), err)
	require.NoError(s.T(), repo.Create(s.ctx, first))

	// Act
	second, err := user.NewUser("Other Maya", "maya@example.com", "alsostrong")
	require.NoError(s.T(), err)
	err = repo.Create(s.ctx, second)

	// Assert
	s.ErrorIs(err, user.ErrEmailAlreadyExists)
}

func (s *RepositoryTestSuite) TestSessionLifecycle() {
	repo := persistence.NewSessionRepository(s.db)

	// Arrange
	sess, err := user.NewSession("user-1", time.Hour, "10.0.0.1", "touille-web")
	require.NoError(s.T(), err)
	require.NoError(s.T(), repo.Create(s.ctx, sess))

	// Act
	loaded, err := repo.FindByToken(s.ctx, sess.Token())

	// Assert
	require.NoError(s.T(), err)
	s.Equal("user-1", loaded.UserID())

	s.NoError(repo.Delete(s.ctx, sess.Token()))
	_, err = repo.FindByToken(s.ctx, sess.Token())
	s.ErrorIs(err, user.ErrSessionNotFound)
}

func (s *RepositoryTestSuite) TestExpiredSessionsAreRejectedAndSwept() {
	repo := persistence.NewSessionRepository(s.db)

	// Arrange
	expired := user.ReconstructSession(uuid.NewString(), "user-1", "stale-token",
		time.Now().Add(-time.Minute), "", "", time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))
	require.NoError(s.T(), repo.Create(s.ctx, expired))

	// Act & Assert
	_, err := repo.FindByToken(s.ctx, "stale-token")
	s.ErrorIs(err, user.ErrSessionExpired)

	removed, err := repo.DeleteExpired(s.ctx)
	require.NoError(s.T(), err)
	s.Equal(int64(1), removed)
}

func (s *RepositoryTestSuite) TestSettingsUpsert() {
	repo := persistence.NewSettingsRepository(s.db)

	// Arrange
	missing, err := repo.Find(s.ctx, "user-1")
	require.NoError(s.T(), err)
	s.Nil(missing, "a user without saved settings has no row")

	veg := "vegetarian"
	settings, err := user.NewSettings("user-1", &veg, 4, nil)
	require.NoError(s.T(), err)

	// Act
	require.NoError(s.T(), repo.Upsert(s.ctx, settings))

	spicy, err := user.NewSettings("user-1", nil, 5, nil)
	require.NoError(s.T(), err)
	require.NoError(s.T(), repo.Upsert(s.ctx, spicy))

	// Assert
	stored, err := repo.Find(s.ctx, "user-1")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), stored)
	s.Equal(5, stored.SpiceTolerance())
	s.Nil(stored.DietaryRestrictions())
}

func (s *RepositoryTestSuite) TestVerificationTokensAreSingleUse() {
	repo := persistence.NewVerificationRepository(s.db)

	// Arrange
	require.NoError(s.T(), repo.Save(s.ctx, "maya@example.com", "token-1", time.Now().Add(time.Hour)))

	// Act & Assert
	ok, err := repo.Consume(s.ctx, "maya@example.com", "token-1")
	require.NoError(s.T(), err)
	s.True(ok)

	ok, err = repo.Consume(s.ctx, "maya@example.com", "token-1")
	require.NoError(s.T(), err)
	s.False(ok, "a consumed token must not verify twice")
}

func (s *RepositoryTestSuite) TestVerificationReplacesOlderTokens() {
	repo := persistence.NewVerificationRepository(s.db)

	// Arrange
	require.NoError(s.T(), repo.Save(s.ctx, "maya@example.com", "token-1", time.Now().Add(time.Hour)))
	require.NoError(s.T(), repo.Save(s.ctx, "maya@example.com", "token-2", time.Now().Add(time.Hour)))

	// Act & Assert
	ok, err := repo.Consume(s.ctx, "maya@example.com", "token-1")
	require.NoError(s.T(), err)
	s.False(ok, "resending invalidates the earlier link")

	ok, err = repo.Consume(s.ctx, "maya@example.com", "token-2")
	require.NoError(s.T(), err)
	s.True(ok)
}
