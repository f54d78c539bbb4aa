// Package gormstore 以 GORM（PostgreSQL / SQLite）保存會話、使用者與食譜歷史
package gormstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/pkg/common"
)

// SessionModel 會話資料表
type SessionModel struct {
	UserID          int64      `gorm:"primaryKey;autoIncrement:false"`
	IngredientText  string     `gorm:"type:text"`
	Phase           string     `gorm:"type:varchar(32);not null"`
	Categories      JSONColumn `gorm:"type:text"`
	CandidateDishes JSONColumn `gorm:"type:text"`
	DishListID      string     `gorm:"type:varchar(16)"`
	CurrentCategory string     `gorm:"type:varchar(16)"`
	CurrentDish     string     `gorm:"type:text"`
	RecipeID        string     `gorm:"type:varchar(16)"`
	Language        string     `gorm:"type:varchar(8)"`
	Revision        int64      `gorm:"not null;default:0"`
	CreatedAt       time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime:false;index"`
}

// TableName 資料表名稱
func (SessionModel) TableName() string { return "sessions" }

// UserModel 使用者資料表
type UserModel struct {
	ID               int64  `gorm:"primaryKey;autoIncrement:false"`
	Username         string `gorm:"type:varchar(255)"`
	FullName         string `gorm:"type:varchar(255)"`
	Language         string `gorm:"type:varchar(8)"`
	InteractionCount int64  `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName 資料表名稱
func (UserModel) TableName() string { return "users" }

// RecipeModel 已交付食譜
type RecipeModel struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      int64  `gorm:"index;not null"`
	Dish        string `gorm:"type:varchar(255);not null"`
	Ingredients string `gorm:"type:text"`
	Language    string `gorm:"type:varchar(8)"`
	Text        string `gorm:"type:text"`
	CreatedAt   time.Time
}

// TableName 資料表名稱
func (RecipeModel) TableName() string { return "recipes" }

// JSONColumn 以 JSON 文字保存的欄位
type JSONColumn []byte

// Scan implements the sql.Scanner interface
func (j *JSONColumn) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONColumn(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONColumn", value)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (j JSONColumn) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

func toModel(s *session.Session) (*SessionModel, error) {
	categories, err := json.Marshal(s.Categories)
	if err != nil {
		return nil, fmt.Errorf("marshal categories: %w", err)
	}
	dishes, err := json.Marshal(s.CandidateDishes)
	if err != nil {
		return nil, fmt.Errorf("marshal dishes: %w", err)
	}
	return &SessionModel{
		UserID:          s.UserID,
		IngredientText:  s.IngredientText,
		Phase:           string(s.Phase),
		Categories:      categories,
		CandidateDishes: dishes,
		DishListID:      s.DishListID,
		CurrentCategory: string(s.CurrentCategory),
		CurrentDish:     s.CurrentDish,
		RecipeID:        s.RecipeID,
		Language:        string(s.Language),
		Revision:        s.Revision,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}, nil
}

func fromModel(m *SessionModel) (*session.Session, error) {
	s := &session.Session{
		UserID:          m.UserID,
		IngredientText:  m.IngredientText,
		Phase:           session.Phase(m.Phase),
		DishListID:      m.DishListID,
		CurrentCategory: common.Category(m.CurrentCategory),
		CurrentDish:     m.CurrentDish,
		RecipeID:        m.RecipeID,
		Language:        common.Language(m.Language),
		Revision:        m.Revision,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if len(m.Categories) > 0 {
		if err := common.ParseJSONBytes(m.Categories, &s.Categories); err != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
	}
	if len(m.CandidateDishes) > 0 {
		if err := common.ParseJSONBytes(m.CandidateDishes, &s.CandidateDishes); err != nil {
			return nil, fmt.Errorf("decode dishes: %w", err)
		}
	}
	return s, nil
}
