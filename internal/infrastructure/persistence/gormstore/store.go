package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kitchen-bot/internal/core/session"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store GORM 會話儲存
type Store struct {
	db *gorm.DB
}

// New 建立儲存並執行遷移
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&SessionModel{}, &UserModel{}, &RecipeModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Get 取得會話
func (s *Store) Get(ctx context.Context, userID int64) (*session.Session, error) {
	var m SessionModel
	err := s.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", userID, err)
	}
	return fromModel(&m)
}

// Upsert 寫入整筆會話；Revision 取儲存值與傳入值較大者再遞增
func (s *Store) Upsert(ctx context.Context, sess *session.Session) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		err := tx.Model(&SessionModel{}).
			Select("revision").
			Where("user_id = ?", sess.UserID).
			Scan(&current).Error
		if err != nil {
			return fmt.Errorf("read revision: %w", err)
		}
		if current > sess.Revision {
			sess.Revision = current
		}
		session.Touch(sess)

		m, err := toModel(sess)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).Create(m).Error
	})
}

// Delete 刪除會話
func (s *Store) Delete(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Delete(&SessionModel{}, "user_id = ?", userID).Error
}

// HealthCheck 檢查資料庫連線
func (s *Store) HealthCheck(ctx context.Context) bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx) == nil
}

// Reap 刪除過期會話
func (s *Store) Reap(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", olderThan).Delete(&SessionModel{})
	return res.RowsAffected, res.Error
}

// TouchUser 建立或更新使用者並累計互動次數
func (s *Store) TouchUser(ctx context.Context, p session.Profile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := UserModel{ID: p.UserID}
		if err := tx.Where(UserModel{ID: p.UserID}).FirstOrCreate(&user).Error; err != nil {
			return fmt.Errorf("touch user %d: %w", p.UserID, err)
		}
		return tx.Model(&user).Updates(map[string]interface{}{
			"username":          p.Username,
			"full_name":         p.FullName,
			"language":          p.Language,
			"interaction_count": gorm.Expr("interaction_count + ?", 1),
		}).Error
	})
}

// SaveRecipe 保存已交付的食譜
func (s *Store) SaveRecipe(ctx context.Context, r session.ArchivedRecipe) error {
	return s.db.WithContext(ctx).Create(&RecipeModel{
		UserID:      r.UserID,
		Dish:        r.Dish,
		Ingredients: r.Ingredients,
		Language:    r.Language,
		Text:        r.Text,
	}).Error
}

// RecentRecipes 使用者最近的食譜
func (s *Store) RecentRecipes(ctx context.Context, userID int64, limit int) ([]session.ArchivedRecipe, error) {
	var rows []RecipeModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]session.ArchivedRecipe, 0, len(rows))
	for _, r := range rows {
		out = append(out, session.ArchivedRecipe{
			UserID:      r.UserID,
			Dish:        r.Dish,
			Ingredients: r.Ingredients,
			Language:    r.Language,
			Text:        r.Text,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

// Close 關閉連線
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
