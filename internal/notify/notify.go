// Package notify 管理短暂显示、到期自动消失的提示信息
package notify

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DefaultTTL 提示默认显示时长
const DefaultTTL = 5 * time.Second

// Level 提示级别
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// String 返回级别名称
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Notification 一条提示
type Notification struct {
	ID        string
	Level     Level
	Text      string
	CreatedAt time.Time
	seq       uint64
}

// Center 提示中心，并发安全
type Center struct {
	cache *cache.Cache
	ttl   time.Duration
	seq   atomic.Uint64
}

// NewCenter 创建提示中心，ttl<=0 时使用默认值
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Push 添加提示
func (c *Center) Push(level Level, text string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Text:      text,
		CreatedAt: time.Now(),
		seq:       c.seq.Add(1),
	}
	c.cache.Set(n.ID, n, cache.DefaultExpiration)
	return n
}

// Info 添加普通提示
func (c *Center) Info(text string) Notification { return c.Push(LevelInfo, text) }

// Success 添加成功提示
func (c *Center) Success(text string) Notification { return c.Push(LevelSuccess, text) }

// Error 添加错误提示
func (c *Center) Error(text string) Notification { return c.Push(LevelError, text) }

// Active 返回未过期的提示，按添加顺序
func (c *Center) Active() []Notification {
	items := c.cache.Items()
	out := make([]Notification, 0, len(items))
	for _, item := range items {
		if n, ok := item.Object.(Notification); ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Drain 返回并移除所有未过期提示
func (c *Center) Drain() []Notification {
	out := c.Active()
	for _, n := range out {
		c.cache.Delete(n.ID)
	}
	return out
}

// Dismiss 手动关闭提示
func (c *Center) Dismiss(id string) {
	c.cache.Delete(id)
}
