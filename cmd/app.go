package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"docchat-cli/internal/api"
	"docchat-cli/internal/config"
	"docchat-cli/internal/controller"
	"docchat-cli/internal/logger"
	"docchat-cli/internal/notify"
	"docchat-cli/internal/session"
	"docchat-cli/internal/thread"
)

// app 一次命令执行所需的全部组件
type app struct {
	loader  *config.Loader
	cfg     *config.Config
	log     *zap.Logger
	session *session.Store
	threads *thread.Store
	notes   *notify.Center
	ctrl    *controller.Controller
}

// newApp 加载配置并组装客户端、存储与控制器
func newApp() (*app, error) {
	loader, cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("初始化配置失败: %w", err)
	}

	if serverURL != "" {
		if err := loader.SetServerURL(serverURL); err != nil {
			return nil, fmt.Errorf("保存服务器地址失败: %w", err)
		}
		if cfg, err = loader.Config(); err != nil {
			return nil, err
		}
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	sess := session.NewStore(loader.TokenStore())
	client := api.NewClient(api.Options{
		BaseURL: cfg.Server.URL,
		Timeout: cfg.Server.Timeout,
		Retry: api.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		Logger: log.Named("api"),
	}, sess)

	threads := thread.NewStore()
	notes := notify.NewCenter(cfg.Notify.TTL)
	ctrl := controller.New(client, sess, threads, notes, log.Named("controller"))

	return &app{
		loader:  loader,
		cfg:     cfg,
		log:     log,
		session: sess,
		threads: threads,
		notes:   notes,
		ctrl:    ctrl,
	}, nil
}

// mustApp 组装失败时直接退出
func mustApp() *app {
	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	return a
}

// close 刷新日志
func (a *app) close() {
	_ = a.log.Sync()
}

// requireLogin 恢复已保存的会话，未登录时退出
func (a *app) requireLogin(ctx context.Context) {
	ev := a.ctrl.RestoreSession(ctx)
	if !ev.OK() {
		if ev.Err != nil && !errors.Is(ev.Err, controller.ErrNoSavedSession) && !api.IsUnauthorized(ev.Err) {
			fmt.Fprintf(os.Stderr, "✗ 无法验证登录信息: %s\n", api.UserMessage(ev.Err))
		} else {
			fmt.Fprintln(os.Stderr, "✗ 当前未登录或登录已过期，请先运行 'docchat login'")
		}
		a.close()
		os.Exit(1)
	}
	// 恢复成功时的列表刷新提示不需要显示
	a.notes.Drain()
}

// check 操作失败时打印提示并退出
func (a *app) check(ev controller.Event) {
	printNotifications(a.notes.Drain())
	if ev.Outcome == controller.OutcomeFailure {
		a.close()
		os.Exit(1)
	}
}
