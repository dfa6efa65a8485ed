// Package model 定义客户端与文档问答服务交互的数据结构
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// User 当前登录用户
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Thread 会话列表中的一项
type Thread struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	HasDocument  bool      `json:"-"`            // 服务端列表不返回，由客户端维护
	LastMessage  *string   `json:"last_message"` // 最后一条用户消息的摘要
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ThreadDetail 会话详情（GET /threads/{id}/）
type ThreadDetail struct {
	Thread
	Messages  []Message  `json:"messages"`
	Documents []Document `json:"documents"`
}

// UnmarshalJSON 解析详情并根据文档列表推导 HasDocument
func (d *ThreadDetail) UnmarshalJSON(data []byte) error {
	type alias ThreadDetail
	var tmp alias
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	tmp.HasDocument = len(tmp.Documents) > 0
	if tmp.Messages == nil {
		tmp.Messages = []Message{}
	}
	*d = ThreadDetail(tmp)
	return nil
}

// Document 已上传到会话的文档
type Document struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	FileType   string    `json:"file_type"`
	Processed  bool      `json:"processed"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Source 回答引用的文档片段
type Source struct {
	Content string `json:"content"`
}

// Message 会话中的一条消息，创建后不可变
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagePair 发送消息接口的返回
type MessagePair struct {
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
}

// UploadResult 上传文档接口的返回，仅用于触发刷新
type UploadResult struct {
	Document         *Document `json:"document,omitempty"`
	UpdatedMessageID *int64    `json:"updated_message_id"`
	ThreadTitle      *string   `json:"thread_title"`
}

// AuthResult 登录/注册接口的返回
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Role 消息角色，取值封闭
type Role int

const (
	RoleUser Role = iota + 1
	RoleAssistant
	RoleSystem
)

// ParseRole 将服务端角色字符串转换为 Role
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	case "system":
		return RoleSystem, nil
	}
	return 0, fmt.Errorf("未知的消息角色: %q", s)
}

// String 返回协议中的角色字符串
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleSystem:
		return "system"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Label 显示名称
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "你"
	case RoleAssistant:
		return "助手"
	case RoleSystem:
		return "系统"
	}
	return "未知"
}

// Icon 显示图标
func (r Role) Icon() string {
	switch r {
	case RoleUser:
		return "👤"
	case RoleAssistant:
		return "🤖"
	case RoleSystem:
		return "⚙️"
	}
	return "?"
}

// MarshalJSON 编码为角色字符串
func (r Role) MarshalJSON() ([]byte, error) {
	if r < RoleUser || r > RoleSystem {
		return nil, fmt.Errorf("无效的消息角色: %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON 从角色字符串解码，未知角色返回错误
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}
