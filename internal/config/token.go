package config

import (
	"sync"

	"github.com/spf13/viper"
)

// tokenKey 持久化 token 在配置文件中的唯一键
const tokenKey = "auth.token"

// TokenStore 会话 token 的持久化存储
type TokenStore interface {
	Load() string
	Save(token string) error
	Clear() error
}

// ViperTokenStore 将 token 写入配置文件
type ViperTokenStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// Load 读取已保存的 token
func (s *ViperTokenStore) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(tokenKey)
}

// Save 保存 token
func (s *ViperTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(tokenKey, token)
	return persist(s.path, tokenKey, token)
}

// Clear 清除 token
func (s *ViperTokenStore) Clear() error {
	return s.Save("")
}

// MemoryTokenStore 内存实现，用于测试
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore 创建内存 token 存储
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

// Load 读取 token
func (s *MemoryTokenStore) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Save 保存 token
func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear 清除 token
func (s *MemoryTokenStore) Clear() error {
	return s.Save("")
}
