package gormstore

import (
	"context"
	"testing"
	"time"

	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.store, err = New(db)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	_ = s.store.Close()
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) TestGetMissing() {
	got, err := s.store.Get(s.ctx, 7)
	s.NoError(err)
	s.Nil(got)
}

func (s *StoreSuite) TestRoundTrip() {
	sess := session.New(7, common.LanguageRussian)
	s.Require().NoError(sess.AppendIngredients("картофель, лук"))
	s.Require().NoError(sess.SetCategories([]common.Category{common.CategorySoup, common.CategoryMain}))
	s.Require().NoError(sess.OpenCategory(common.CategorySoup, []common.Dish{
		{Name: "Борщ", DisplayName: "Борщ", Description: "Суп"},
	}, "abcd1234"))
	_, err := sess.SelectDish("abcd1234", 0)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Upsert(s.ctx, sess))
	s.EqualValues(1, sess.Revision)

	got, err := s.store.Get(s.ctx, 7)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(session.PhaseRecipeShown, got.Phase)
	s.Equal(sess.RecipeID, got.RecipeID)
	s.Equal("Борщ", got.CurrentDish)
	s.Equal([]common.Category{common.CategorySoup, common.CategoryMain}, got.Categories)
	s.Require().Len(got.CandidateDishes, 1)
	s.Equal("Борщ", got.CandidateDishes[0].Name)
	s.Equal("abcd1234", got.DishListID)
	s.EqualValues(1, got.Revision)

	got.HardReset()
	s.Require().NoError(s.store.Upsert(s.ctx, got))
	again, err := s.store.Get(s.ctx, 7)
	s.Require().NoError(err)
	s.EqualValues(2, again.Revision)
	s.Empty(again.CandidateDishes)
	s.Equal(session.PhaseEmpty, again.Phase)
}

func (s *StoreSuite) TestRevisionIsMonotonic() {
	first := session.New(9, common.LanguageEnglish)
	s.Require().NoError(s.store.Upsert(s.ctx, first))
	s.Require().NoError(s.store.Upsert(s.ctx, first))

	stale := session.New(9, common.LanguageEnglish)
	s.Require().NoError(s.store.Upsert(s.ctx, stale))
	s.EqualValues(3, stale.Revision)
}

func (s *StoreSuite) TestDeleteAndReap() {
	old := session.New(1, common.LanguageRussian)
	s.Require().NoError(s.store.Upsert(s.ctx, old))
	s.Require().NoError(s.store.db.Model(&SessionModel{}).
		Where("user_id = ?", 1).
		Update("updated_at", time.Now().UTC().Add(-72*time.Hour)).Error)

	fresh := session.New(2, common.LanguageRussian)
	s.Require().NoError(s.store.Upsert(s.ctx, fresh))

	n, err := s.store.Reap(s.ctx, time.Now().UTC().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.EqualValues(1, n)

	s.Require().NoError(s.store.Delete(s.ctx, 2))
	got, err := s.store.Get(s.ctx, 2)
	s.NoError(err)
	s.Nil(got)
	s.True(s.store.HealthCheck(s.ctx))
}

func (s *StoreSuite) TestHistory() {
	p := session.Profile{UserID: 5, Username: "cook", FullName: "Home Cook", Language: "en"}
	s.Require().NoError(s.store.TouchUser(s.ctx, p))
	s.Require().NoError(s.store.TouchUser(s.ctx, p))

	var user UserModel
	s.Require().NoError(s.store.db.First(&user, "id = ?", 5).Error)
	s.EqualValues(2, user.InteractionCount)
	s.Equal("cook", user.Username)

	s.Require().NoError(s.store.SaveRecipe(s.ctx, session.ArchivedRecipe{UserID: 5, Dish: "Omelette", Text: "..."}))
	s.Require().NoError(s.store.SaveRecipe(s.ctx, session.ArchivedRecipe{UserID: 5, Dish: "Pancakes", Text: "..."}))
	recent, err := s.store.RecentRecipes(s.ctx, 5, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal("Pancakes", recent[0].Dish)
	s.False(recent[0].CreatedAt.IsZero())
}

func TestJSONColumnScan(t *testing.T) {
	var j JSONColumn
	require.NoError(t, j.Scan(`["soup"]`))
	assert.Equal(t, `["soup"]`, string(j))
	require.NoError(t, j.Scan(nil))
	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, "null", v)
	assert.Error(t, j.Scan(42))
}

// 確保 Store 滿足介面
var (
	_ session.Store   = (*Store)(nil)
	_ session.History = (*Store)(nil)
)
