// Package session 管理登录 token 与当前用户
package session

import (
	"errors"
	"fmt"
	"sync"

	"docchat-cli/internal/config"
	"docchat-cli/internal/model"
)

// ErrStale 认证结果所属的代数已被登出或新的认证取代
var ErrStale = errors.New("会话已变更，丢弃过期的认证结果")

// State 会话状态
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Rejected
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot 会话状态快照
type Snapshot struct {
	State     State
	User      *model.User
	LastError string // Rejected 时的错误信息
	Epoch     uint64
}

// Store 会话存储
// 只有 Authenticate 和 Clear 会写入持久化 token
type Store struct {
	mu      sync.RWMutex
	tokens  config.TokenStore
	token   string
	user    *model.User
	state   State
	lastErr string
	epoch   uint64
}

// NewStore 创建会话存储，不会读取持久化 token
func NewStore(tokens config.TokenStore) *Store {
	return &Store{tokens: tokens}
}

// Token 当前内存中的 token，实现 api.TokenSource
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// PersistedToken 读取上次保存的 token
func (s *Store) PersistedToken() string {
	return s.tokens.Load()
}

// Epoch 当前会话代数，每次开始认证或清除时递增
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Snapshot 返回当前状态
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	var user *model.User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return Snapshot{State: s.state, User: user, LastError: s.lastErr, Epoch: s.epoch}
}

// IsAuthenticated 是否已登录
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == Authenticated
}

// BeginAuth 开始登录/注册，返回本次认证对应的代数
func (s *Store) BeginAuth() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.token = ""
	s.user = nil
	s.lastErr = ""
	s.state = Authenticating
	return s.epoch
}

// Restore 使用持久化 token 进入认证中状态，用户信息待校验
func (s *Store) Restore(token string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.token = token
	s.user = nil
	s.lastErr = ""
	s.state = Authenticating
	return s.epoch
}

// Authenticate 保存 token 与用户，token 和用户缺一不可
// epoch 必须仍是 BeginAuth 返回的代数，否则返回 ErrStale 且不写入任何状态
func (s *Store) Authenticate(epoch uint64, token string, user *model.User) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return s.snapshotLocked(), ErrStale
	}
	if token == "" || user == nil {
		return s.snapshotLocked(), errors.New("登录响应缺少 token 或用户信息")
	}
	if err := s.tokens.Save(token); err != nil {
		return s.snapshotLocked(), fmt.Errorf("保存登录信息失败: %w", err)
	}
	u := *user
	s.token = token
	s.user = &u
	s.lastErr = ""
	s.state = Authenticated
	return s.snapshotLocked(), nil
}

// Validate 恢复会话时确认 token 有效，epoch 为 Restore 返回的代数
func (s *Store) Validate(epoch uint64, user *model.User) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return s.snapshotLocked(), ErrStale
	}
	if user == nil {
		return s.snapshotLocked(), errors.New("用户信息为空")
	}
	if s.token == "" {
		return s.snapshotLocked(), errors.New("当前没有待校验的 token")
	}
	u := *user
	s.user = &u
	s.state = Authenticated
	return s.snapshotLocked(), nil
}

// Abandon 恢复会话未能完成（如网络不可达），回到未登录状态
// 持久化 token 保留，下次启动仍可恢复；epoch 不匹配时不做任何修改
func (s *Store) Abandon(epoch uint64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return s.snapshotLocked(), false
	}
	s.token = ""
	s.user = nil
	s.lastErr = ""
	s.state = Anonymous
	return s.snapshotLocked(), true
}

// Reject 认证失败，持久化 token 不变
func (s *Store) Reject(message string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.lastErr = message
	s.state = Rejected
	return s.snapshotLocked()
}

// Clear 无条件清除 token、用户与持久化 token
// 持久化写入失败时仍会清空内存状态，并返回该错误
func (s *Store) Clear() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.token = ""
	s.user = nil
	s.lastErr = ""
	s.state = Anonymous
	err := s.tokens.Clear()
	if err != nil {
		err = fmt.Errorf("清除本地凭证失败: %w", err)
	}
	return s.snapshotLocked(), err
}
