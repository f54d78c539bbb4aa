package session

import (
	"context"
	"sync"
	"time"
)

// Store 會話儲存；每次 Upsert 以完整紀錄覆寫（last-write-wins）
type Store interface {
	// Get 不存在時回傳 (nil, nil)
	Get(ctx context.Context, userID int64) (*Session, error)
	// Upsert 寫入會話並遞增 Revision、更新 UpdatedAt
	Upsert(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
	HealthCheck(ctx context.Context) bool
	// Reap 刪除 UpdatedAt 早於 olderThan 的會話
	Reap(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// Profile 使用者資料，由支援的後端記錄
type Profile struct {
	UserID   int64
	Username string
	FullName string
	Language string
}

// ArchivedRecipe 已交付的食譜
type ArchivedRecipe struct {
	UserID      int64     `json:"user_id"`
	Dish        string    `json:"dish"`
	Ingredients string    `json:"ingredients"`
	Language    string    `json:"language"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// History 可選能力：記錄使用者與食譜歷史
type History interface {
	TouchUser(ctx context.Context, p Profile) error
	SaveRecipe(ctx context.Context, r ArchivedRecipe) error
}

// RecipeArchive 可選能力：查詢已保存的食譜，新的在前
type RecipeArchive interface {
	RecentRecipes(ctx context.Context, userID int64, limit int) ([]ArchivedRecipe, error)
}

// Touch 寫入前遞增版本並更新時間，所有後端共用
func Touch(s *Session) {
	s.Revision++
	s.UpdatedAt = time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
}

// MemoryStore 行程內的會話儲存
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore 建立記憶體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Upsert(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.sessions[s.UserID]; ok && prev.Revision > s.Revision {
		s.Revision = prev.Revision
	}
	Touch(s)
	m.sessions[s.UserID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *MemoryStore) HealthCheck(ctx context.Context) bool {
	return true
}

func (m *MemoryStore) Reap(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(olderThan) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
