// Package thread 保存会话列表、当前会话及其消息
package thread

import (
	"fmt"
	"sync"

	"docchat-cli/internal/model"
)

// PaneState 消息面板状态
type PaneState int

const (
	PaneEmpty   PaneState = iota // 未选择会话
	PaneLoading                  // 已发起选择，消息尚未返回
	PaneReady                    // 消息已加载（可能为空）
)

// String 返回状态名称
func (p PaneState) String() string {
	switch p {
	case PaneEmpty:
		return "empty"
	case PaneLoading:
		return "loading"
	case PaneReady:
		return "ready"
	}
	return fmt.Sprintf("PaneState(%d)", int(p))
}

// Snapshot 某一时刻的完整状态，切片均为副本
type Snapshot struct {
	Threads     []model.Thread
	Selected    *model.Thread // nil 表示未选择
	PendingID   int64         // 正在加载的会话，0 表示无
	Pane        PaneState
	Messages    []model.Message // 只属于 Selected
	HasDocument bool
	Draft       string
}

type selection struct {
	thread   model.Thread
	messages []model.Message
}

// Store 会话存储
// 所有修改方法都返回修改后的快照
type Store struct {
	mu        sync.RWMutex
	threads   []model.Thread
	selected  *selection
	pendingID int64
	selectSeq uint64
	gen       uint64 // 每次 Reset 加一
	draft     string
}

// NewStore 创建空存储
func NewStore() *Store {
	return &Store{threads: []model.Thread{}}
}

// Snapshot 返回当前状态
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Threads:   append([]model.Thread(nil), s.threads...),
		PendingID: s.pendingID,
		Draft:     s.draft,
		Messages:  []model.Message{},
	}
	if snap.Threads == nil {
		snap.Threads = []model.Thread{}
	}
	if s.selected != nil {
		t := s.selected.thread
		snap.Selected = &t
		snap.HasDocument = t.HasDocument
		snap.Messages = append(snap.Messages, s.selected.messages...)
	}

	switch {
	case s.pendingID != 0:
		snap.Pane = PaneLoading
	case s.selected != nil:
		snap.Pane = PaneReady
	default:
		snap.Pane = PaneEmpty
	}
	return snap
}

// SelectedID 当前会话 id，未选择时返回 0
func (s *Store) SelectedID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return 0
	}
	return s.selected.thread.ID
}

// SelectSeq 当前选择序号
func (s *Store) SelectSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectSeq
}

// Generation 当前代数，Reset 之后变化
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// ReplaceThreadsAt 仅当 gen 仍是当前代数时替换列表
// 请求期间发生过 Reset（登出、重新登录）时返回 false，列表保持不变
func (s *Store) ReplaceThreadsAt(gen uint64, list []model.Thread) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return s.snapshotLocked(), false
	}
	s.replaceLocked(list)
	return s.snapshotLocked(), true
}

// ReplaceThreads 用服务端列表替换本地列表，保持服务端顺序
// 服务端列表不含文档标记，沿用本地已知值
func (s *Store) ReplaceThreads(list []model.Thread) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(list)
	return s.snapshotLocked()
}

func (s *Store) replaceLocked(list []model.Thread) {
	known := make(map[int64]bool, len(s.threads))
	for _, t := range s.threads {
		known[t.ID] = t.HasDocument
	}

	next := make([]model.Thread, len(list))
	for i, t := range list {
		t.HasDocument = t.HasDocument || known[t.ID]
		if s.selected != nil && s.selected.thread.ID == t.ID {
			t.HasDocument = t.HasDocument || s.selected.thread.HasDocument
			s.selected.thread.Title = t.Title
			s.selected.thread.MessageCount = t.MessageCount
			s.selected.thread.LastMessage = t.LastMessage
			s.selected.thread.UpdatedAt = t.UpdatedAt
		}
		next[i] = t
	}
	s.threads = next
}

// PrependThread 新建会话后放到列表最前并选中，消息与文档标记清空
// 同时使正在进行的选择失效
func (s *Store) PrependThread(t model.Thread) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.HasDocument = false
	next := make([]model.Thread, 0, len(s.threads)+1)
	next = append(next, t)
	for _, existing := range s.threads {
		if existing.ID != t.ID {
			next = append(next, existing)
		}
	}
	s.threads = next
	s.selected = &selection{thread: t, messages: []model.Message{}}
	s.pendingID = 0
	s.selectSeq++
	return s.snapshotLocked()
}

// BeginSelect 开始选择会话，返回本次选择的序号
func (s *Store) BeginSelect(id int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectSeq++
	s.pendingID = id
	return s.selectSeq
}

// CommitSelect 选择成功，一次性替换当前会话、消息与文档标记
// 序号已过期时不做修改并返回 false
func (s *Store) CommitSelect(seq uint64, detail *model.ThreadDetail) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.selectSeq || detail == nil || detail.ID != s.pendingID {
		return s.snapshotLocked(), false
	}
	s.pendingID = 0
	s.applyDetailLocked(detail)
	return s.snapshotLocked(), true
}

// AbortSelect 选择失败，保留之前的会话
func (s *Store) AbortSelect(seq uint64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.selectSeq {
		return s.snapshotLocked(), false
	}
	s.pendingID = 0
	return s.snapshotLocked(), true
}

// ReloadSelected 用服务端详情替换当前会话的消息（不是追加）
// 当前会话已不是 detail.ID 时返回 false
func (s *Store) ReloadSelected(detail *model.ThreadDetail) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if detail == nil || s.selected == nil || s.selected.thread.ID != detail.ID {
		return s.snapshotLocked(), false
	}
	hasDoc := s.selected.thread.HasDocument
	s.applyDetailLocked(detail)
	if hasDoc {
		s.selected.thread.HasDocument = true
		s.updateEntryLocked(detail.ID, func(t *model.Thread) { t.HasDocument = true })
	}
	return s.snapshotLocked(), true
}

func (s *Store) applyDetailLocked(detail *model.ThreadDetail) {
	msgs := append([]model.Message{}, detail.Messages...)
	s.selected = &selection{thread: detail.Thread, messages: msgs}
	s.updateEntryLocked(detail.ID, func(t *model.Thread) {
		t.Title = detail.Title
		t.HasDocument = detail.HasDocument
		t.MessageCount = len(msgs)
	})
}

func (s *Store) updateEntryLocked(id int64, fn func(t *model.Thread)) {
	for i := range s.threads {
		if s.threads[i].ID == id {
			fn(&s.threads[i])
			return
		}
	}
}

// RemoveThread 删除确认后移除会话
// 删除的是当前会话时清空选择、消息与文档标记；是正在加载的会话时取消该次选择
func (s *Store) RemoveThread(id int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		if t.ID != id {
			next = append(next, t)
		}
	}
	s.threads = next

	if s.selected != nil && s.selected.thread.ID == id {
		s.selected = nil
	}
	if s.pendingID == id {
		s.pendingID = 0
		s.selectSeq++
	}
	return s.snapshotLocked()
}

// AppendMessages 追加消息到当前会话，当前会话不是 threadID 时返回 false
func (s *Store) AppendMessages(threadID int64, msgs ...model.Message) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil || s.selected.thread.ID != threadID {
		return s.snapshotLocked(), false
	}
	s.selected.messages = append(s.selected.messages, msgs...)
	s.selected.thread.MessageCount = len(s.selected.messages)
	s.updateEntryLocked(threadID, func(t *model.Thread) { t.MessageCount = len(s.selected.messages) })
	return s.snapshotLocked(), true
}

// MarkDocument 标记会话已上传文档
func (s *Store) MarkDocument(threadID int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil && s.selected.thread.ID == threadID {
		s.selected.thread.HasDocument = true
	}
	s.updateEntryLocked(threadID, func(t *model.Thread) { t.HasDocument = true })
	return s.snapshotLocked()
}

// RenameThread 更新会话标题（当前会话与列表项）
func (s *Store) RenameThread(threadID int64, title string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil && s.selected.thread.ID == threadID {
		s.selected.thread.Title = title
	}
	s.updateEntryLocked(threadID, func(t *model.Thread) { t.Title = title })
	return s.snapshotLocked()
}

// SetDraft 设置输入框内容
func (s *Store) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Draft 输入框内容
func (s *Store) Draft() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// ClearDraft 清空输入框
func (s *Store) ClearDraft() {
	s.SetDraft("")
}

// Reset 清空全部状态，并使正在进行的选择失效
func (s *Store) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = []model.Thread{}
	s.selected = nil
	s.pendingID = 0
	s.selectSeq++
	s.gen++
	s.draft = ""
	return s.snapshotLocked()
}
