package dialogue

import (
	"strconv"
	"sync"
	"time"
)

// DefaultDedupWindow 重複按鈕的判定時間
const DefaultDedupWindow = 2 * time.Second

// Deduper 丟棄同一使用者在短時間內重複送出的相同按鈕
type Deduper struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	done   chan struct{}
	once   sync.Once
}

// NewDeduper 建立 Deduper 並啟動清理協程
func NewDeduper(window time.Duration) *Deduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	d := &Deduper{
		window: window,
		seen:   make(map[string]time.Time),
		done:   make(chan struct{}),
	}
	go d.cleanupLoop()
	return d
}

// Duplicate 在視窗內已見過相同指紋時回傳 true，否則記錄並回傳 false。
// 指紋由使用者、按鈕所在訊息與 payload 組成
func (d *Deduper) Duplicate(userID int64, messageID int, payload string) bool {
	fingerprint := strconv.FormatInt(userID, 10) + ":" + strconv.Itoa(messageID) + ":" + payload
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.seen[fingerprint]; ok && now.Sub(last) <= d.window {
		return true
	}
	d.seen[fingerprint] = now
	return false
}

func (d *Deduper) cleanupLoop() {
	ticker := time.NewTicker(10 * d.window)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case now := <-ticker.C:
			d.mu.Lock()
			for k, t := range d.seen {
				if now.Sub(t) > d.window {
					delete(d.seen, k)
				}
			}
			d.mu.Unlock()
		}
	}
}

// Close 停止清理協程
func (d *Deduper) Close() {
	d.once.Do(func() { close(d.done) })
}
