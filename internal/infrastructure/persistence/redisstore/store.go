// Package redisstore 以 Redis 保存會話，過期交由 key TTL 處理
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "kitchen:session:"

// Store Redis 會話儲存
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New 建立儲存；ttl 為 0 時不設定過期
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// Get 取得會話
func (s *Store) Get(ctx context.Context, userID int64) (*session.Session, error) {
	data, err := s.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", userID, err)
	}
	var sess session.Session
	if err := common.ParseJSONBytes(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", userID, err)
	}
	return &sess, nil
}

// Upsert 寫入整筆會話並重設 TTL
func (s *Store) Upsert(ctx context.Context, sess *session.Session) error {
	k := key(sess.UserID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		if data, err := tx.Get(ctx, k).Bytes(); err == nil {
			var prev session.Session
			if json.Unmarshal(data, &prev) == nil && prev.Revision > sess.Revision {
				sess.Revision = prev.Revision
			}
		} else if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read session %d: %w", sess.UserID, err)
		}

		session.Touch(sess)
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session %d: %w", sess.UserID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		return err
	}, k)
}

// Delete 刪除會話
func (s *Store) Delete(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, key(userID)).Err()
}

// HealthCheck 檢查 Redis 連線
func (s *Store) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// Reap 由 TTL 負責，不需主動清理
func (s *Store) Reap(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

// Close 關閉連線
func (s *Store) Close() error {
	return s.client.Close()
}
