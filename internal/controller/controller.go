// Package controller 协调会话存储、会话列表与 API 客户端
// 所有状态只在服务端确认后修改；过期响应被丢弃
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"docchat-cli/internal/api"
	"docchat-cli/internal/model"
	"docchat-cli/internal/notify"
	"docchat-cli/internal/session"
	"docchat-cli/internal/thread"
)

// ErrNoSavedSession 没有可恢复的登录信息
var ErrNoSavedSession = errors.New("没有保存的登录信息")

// allowedExtensions 服务端支持的文档类型
var allowedExtensions = map[string]bool{"pdf": true, "docx": true, "txt": true}

// Backend 控制器依赖的远程接口，*api.Client 实现了它
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*model.AuthResult, error)
	Register(ctx context.Context, req api.RegisterRequest) (*model.AuthResult, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.User, error)
	ListThreads(ctx context.Context) ([]model.Thread, error)
	CreateThread(ctx context.Context) (*model.Thread, error)
	GetThread(ctx context.Context, id int64) (*model.ThreadDetail, error)
	DeleteThread(ctx context.Context, id int64) error
	SendMessage(ctx context.Context, id int64, text string) (*model.MessagePair, error)
	UploadDocument(ctx context.Context, id int64, form *api.FormData) (*model.UploadResult, error)
}

// Controller 同步控制器
type Controller struct {
	api     Backend
	session *session.Store
	threads *thread.Store
	notes   *notify.Center
	logger  *zap.Logger

	mu           sync.Mutex
	selectCancel context.CancelFunc
	selectSeq    uint64
	listeners    []func(Event)
}

// New 创建控制器
func New(backend Backend, sess *session.Store, threads *thread.Store, notes *notify.Center, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		api:     backend,
		session: sess,
		threads: threads,
		notes:   notes,
		logger:  logger,
	}
}

// OnEvent 注册事件回调
func (c *Controller) OnEvent(handler func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, handler)
}

func (c *Controller) emit(ev Event) Event {
	c.mu.Lock()
	listeners := append([]func(Event){}, c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
	return ev
}

func (c *Controller) succeed(op Op, threadID int64) Event {
	return c.emit(Event{Op: op, Outcome: OutcomeSuccess, ThreadID: threadID})
}

// fail 推送错误提示并返回失败事件
func (c *Controller) fail(op Op, threadID int64, err error) Event {
	c.notes.Error(api.UserMessage(err))
	c.logger.Info("操作失败", zap.String("op", string(op)), zap.Int64("thread_id", threadID), zap.Error(err))
	return c.emit(Event{Op: op, Outcome: OutcomeFailure, ThreadID: threadID, Err: err})
}

// failSilently 不推送提示的失败
func (c *Controller) failSilently(op Op, err error) Event {
	return c.emit(Event{Op: op, Outcome: OutcomeFailure, Err: err})
}

func (c *Controller) stale(op Op, threadID int64) Event {
	c.logger.Debug("丢弃过期响应", zap.String("op", string(op)), zap.Int64("thread_id", threadID))
	return c.emit(Event{Op: op, Outcome: OutcomeStale, ThreadID: threadID})
}

// --- 会话 ---

// Login 登录，成功后刷新会话列表
func (c *Controller) Login(ctx context.Context, username, password string) Event {
	req := api.LoginRequest{Username: username, Password: password}
	if err := req.Validate(); err != nil {
		return c.fail(OpLogin, 0, err)
	}
	return c.authenticate(ctx, OpLogin, func(ctx context.Context) (*model.AuthResult, error) {
		return c.api.Login(ctx, req)
	})
}

// Register 注册，成功后直接进入登录状态
func (c *Controller) Register(ctx context.Context, username, email, password string) Event {
	req := api.RegisterRequest{Username: username, Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return c.fail(OpRegister, 0, err)
	}
	return c.authenticate(ctx, OpRegister, func(ctx context.Context) (*model.AuthResult, error) {
		return c.api.Register(ctx, req)
	})
}

func (c *Controller) authenticate(ctx context.Context, op Op, call func(context.Context) (*model.AuthResult, error)) Event {
	c.threads.Reset()
	c.cancelSelection()
	epoch := c.session.BeginAuth()

	res, err := call(ctx)
	if c.session.Epoch() != epoch {
		return c.stale(op, 0)
	}
	if err != nil {
		c.session.Reject(api.UserMessage(err))
		return c.fail(op, 0, err)
	}

	var user *model.User
	var token string
	if res != nil {
		user, token = res.User, res.Token
	}
	snap, err := c.session.Authenticate(epoch, token, user)
	if errors.Is(err, session.ErrStale) {
		return c.stale(op, 0)
	}
	if err != nil {
		c.session.Reject(err.Error())
		return c.fail(op, 0, err)
	}

	c.notes.Success(fmt.Sprintf("欢迎，%s", snap.User.Username))
	ev := c.succeed(op, 0)
	c.ListThreads(ctx)
	return ev
}

// Logout 登出，本地状态总是被清除
// 服务端注销失败只记录日志
func (c *Controller) Logout(ctx context.Context) Event {
	if c.session.Token() != "" {
		if err := c.api.Logout(ctx); err != nil {
			c.logger.Info("服务端登出失败，继续清除本地状态", zap.Error(err))
		}
	}

	if _, err := c.session.Clear(); err != nil {
		c.logger.Error("清除本地凭证失败", zap.Error(err))
	}
	c.threads.Reset()
	c.cancelSelection()
	return c.succeed(OpLogout, 0)
}

// RestoreSession 启动时使用保存的 token 恢复会话，失败不推送提示
// 只有服务端拒绝 token（401/403）时才清除持久化 token；
// 网络错误、超时或服务端错误只回到未登录状态，token 留待下次恢复
func (c *Controller) RestoreSession(ctx context.Context) Event {
	token := c.session.PersistedToken()
	if token == "" {
		return c.failSilently(OpRestore, ErrNoSavedSession)
	}

	epoch := c.session.Restore(token)
	user, err := c.api.CurrentUser(ctx)
	if c.session.Epoch() != epoch {
		return c.stale(OpRestore, 0)
	}
	if err != nil && api.IsUnauthorized(err) {
		c.logger.Info("保存的登录信息已失效", zap.Error(err))
		c.clearLocal()
		return c.failSilently(OpRestore, err)
	}
	if err != nil {
		c.logger.Info("暂时无法验证保存的登录信息", zap.Error(err))
		if _, ok := c.session.Abandon(epoch); !ok {
			return c.stale(OpRestore, 0)
		}
		return c.failSilently(OpRestore, err)
	}
	if _, err := c.session.Validate(epoch, user); err != nil {
		if errors.Is(err, session.ErrStale) {
			return c.stale(OpRestore, 0)
		}
		c.clearLocal()
		return c.failSilently(OpRestore, err)
	}

	ev := c.succeed(OpRestore, 0)
	c.ListThreads(ctx)
	return ev
}

func (c *Controller) clearLocal() {
	if _, err := c.session.Clear(); err != nil {
		c.logger.Error("清除本地凭证失败", zap.Error(err))
	}
	c.threads.Reset()
	c.cancelSelection()
}

// --- 会话列表 ---

// ListThreads 用服务端列表替换本地列表
func (c *Controller) ListThreads(ctx context.Context) Event {
	epoch := c.session.Epoch()
	gen := c.threads.Generation()
	list, err := c.api.ListThreads(ctx)
	if c.session.Epoch() != epoch {
		return c.stale(OpListThreads, 0)
	}
	if err != nil {
		return c.fail(OpListThreads, 0, err)
	}
	if _, ok := c.threads.ReplaceThreadsAt(gen, list); !ok {
		return c.stale(OpListThreads, 0)
	}
	return c.succeed(OpListThreads, 0)
}

// refreshQuietly 刷新列表，失败只记录日志
func (c *Controller) refreshQuietly(ctx context.Context) {
	epoch := c.session.Epoch()
	gen := c.threads.Generation()
	list, err := c.api.ListThreads(ctx)
	if c.session.Epoch() != epoch {
		return
	}
	if err != nil {
		c.logger.Info("刷新会话列表失败", zap.Error(err))
		return
	}
	c.threads.ReplaceThreadsAt(gen, list)
}

// CreateThread 新建会话并选中
func (c *Controller) CreateThread(ctx context.Context) Event {
	epoch := c.session.Epoch()
	t, err := c.api.CreateThread(ctx)
	if c.session.Epoch() != epoch {
		return c.stale(OpCreateThread, 0)
	}
	if err != nil {
		return c.fail(OpCreateThread, 0, err)
	}

	c.threads.PrependThread(*t)
	c.cancelSelection()
	return c.succeed(OpCreateThread, t.ID)
}

// SelectThread 加载会话详情并替换当前会话
// 更新的选择会取消之前仍在进行的请求
func (c *Controller) SelectThread(ctx context.Context, id int64) Event {
	if id <= 0 {
		return c.fail(OpSelectThread, id, api.NewValidationError("thread", "无效的会话 ID"))
	}

	epoch := c.session.Epoch()
	seq := c.threads.BeginSelect(id)
	selCtx, cancel := context.WithCancel(ctx)
	c.swapSelection(seq, cancel)
	defer c.releaseSelection(seq, cancel)

	detail, err := c.api.GetThread(selCtx, id)
	if c.session.Epoch() != epoch || c.threads.SelectSeq() != seq {
		return c.stale(OpSelectThread, id)
	}
	if err != nil {
		if _, ok := c.threads.AbortSelect(seq); !ok {
			return c.stale(OpSelectThread, id)
		}
		return c.fail(OpSelectThread, id, err)
	}

	if _, ok := c.threads.CommitSelect(seq, detail); !ok {
		return c.stale(OpSelectThread, id)
	}
	return c.succeed(OpSelectThread, id)
}

// swapSelection 记录当前选择的 cancel，取消上一个
func (c *Controller) swapSelection(seq uint64, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.selectSeq {
		// 已有更新的选择
		cancel()
		return
	}
	if c.selectCancel != nil {
		c.selectCancel()
	}
	c.selectCancel = cancel
	c.selectSeq = seq
}

func (c *Controller) releaseSelection(seq uint64, cancel context.CancelFunc) {
	c.mu.Lock()
	if c.selectSeq == seq {
		c.selectCancel = nil
	}
	c.mu.Unlock()
	cancel()
}

// cancelSelection 取消进行中的选择请求
func (c *Controller) cancelSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectCancel != nil {
		c.selectCancel()
		c.selectCancel = nil
	}
}

// DeleteThread 删除会话，服务端确认后才从列表移除
func (c *Controller) DeleteThread(ctx context.Context, id int64) Event {
	if id <= 0 {
		return c.fail(OpDeleteThread, id, api.NewValidationError("thread", "无效的会话 ID"))
	}

	epoch := c.session.Epoch()
	err := c.api.DeleteThread(ctx, id)
	if c.session.Epoch() != epoch {
		return c.stale(OpDeleteThread, id)
	}
	if err != nil {
		return c.fail(OpDeleteThread, id, err)
	}

	wasPending := c.threads.Snapshot().PendingID == id
	c.threads.RemoveThread(id)
	if wasPending {
		c.cancelSelection()
	}
	c.notes.Success("会话已删除")
	return c.succeed(OpDeleteThread, id)
}

// requireSelected 校验 threadID 为当前会话
func (c *Controller) requireSelected(threadID int64) error {
	selected := c.threads.SelectedID()
	if selected == 0 {
		return api.NewValidationError("thread", "请先选择一个会话")
	}
	if threadID != selected {
		return api.NewValidationError("thread", "只能操作当前选中的会话")
	}
	return nil
}

// SendMessage 发送问题，成功后按顺序追加用户消息和助手回答
// 失败时保留输入框内容；无论成败都会刷新会话列表
func (c *Controller) SendMessage(ctx context.Context, threadID int64, text string) Event {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return c.fail(OpSendMessage, threadID, api.NewValidationError("message", "消息不能为空"))
	}
	if err := c.requireSelected(threadID); err != nil {
		return c.fail(OpSendMessage, threadID, err)
	}

	epoch := c.session.Epoch()
	pair, err := c.api.SendMessage(ctx, threadID, trimmed)
	if c.session.Epoch() != epoch {
		return c.stale(OpSendMessage, threadID)
	}
	defer c.refreshQuietly(ctx)

	if err != nil {
		return c.fail(OpSendMessage, threadID, err)
	}
	if _, ok := c.threads.AppendMessages(threadID, pair.UserMessage, pair.AssistantMessage); !ok {
		return c.stale(OpSendMessage, threadID)
	}
	c.threads.ClearDraft()
	return c.succeed(OpSendMessage, threadID)
}

// UploadDocument 上传文档到当前会话
func (c *Controller) UploadDocument(ctx context.Context, threadID int64, path string) Event {
	if err := c.requireSelected(threadID); err != nil {
		return c.fail(OpUploadDocument, threadID, err)
	}
	if err := checkUploadFile(path); err != nil {
		return c.fail(OpUploadDocument, threadID, err)
	}
	form, err := api.NewFileForm("file", path)
	if err != nil {
		return c.fail(OpUploadDocument, threadID, err)
	}

	epoch := c.session.Epoch()
	res, err := c.api.UploadDocument(ctx, threadID, form)
	if c.session.Epoch() != epoch {
		return c.stale(OpUploadDocument, threadID)
	}
	if err != nil {
		return c.fail(OpUploadDocument, threadID, err)
	}

	c.threads.MarkDocument(threadID)
	if res.UpdatedMessageID != nil {
		c.reloadThread(ctx, threadID)
	}
	if res.ThreadTitle != nil && *res.ThreadTitle != "" {
		c.threads.RenameThread(threadID, *res.ThreadTitle)
	}

	c.notes.Success(fmt.Sprintf("文档 %s 上传成功", filepath.Base(path)))
	return c.succeed(OpUploadDocument, threadID)
}

// reloadThread 重新拉取会话消息，失败不影响上传结果
func (c *Controller) reloadThread(ctx context.Context, threadID int64) {
	epoch := c.session.Epoch()
	detail, err := c.api.GetThread(ctx, threadID)
	if c.session.Epoch() != epoch {
		return
	}
	if err != nil {
		c.logger.Info("上传后刷新会话失败", zap.Int64("thread_id", threadID), zap.Error(err))
		return
	}
	if _, ok := c.threads.ReloadSelected(detail); !ok {
		c.logger.Debug("当前会话已切换，忽略刷新结果", zap.Int64("thread_id", threadID))
	}
}

// checkUploadFile 发出请求前校验文件
func checkUploadFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return api.NewValidationError("file", "请选择要上传的文件")
	}
	info, err := os.Stat(path)
	if err != nil {
		return api.NewValidationError("file", fmt.Sprintf("无法读取文件: %s", path))
	}
	if info.IsDir() {
		return api.NewValidationError("file", "不能上传目录")
	}
	if info.Size() == 0 {
		return api.NewValidationError("file", "文件为空")
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !allowedExtensions[ext] {
		return api.NewValidationError("file", "不支持的文件类型，请上传 PDF、DOCX 或 TXT 文件")
	}
	return nil
}
