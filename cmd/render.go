package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"docchat-cli/internal/model"
	"docchat-cli/internal/notify"
	"docchat-cli/internal/session"
	"docchat-cli/internal/thread"
)

var (
	dim     = color.New(color.Faint)
	bold    = color.New(color.Bold)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
)

// roleColor 每个角色的显示颜色
func roleColor(r model.Role) *color.Color {
	switch r {
	case model.RoleUser:
		return color.New(color.FgCyan, color.Bold)
	case model.RoleAssistant:
		return color.New(color.FgGreen, color.Bold)
	case model.RoleSystem:
		return color.New(color.FgYellow)
	}
	return color.New(color.Reset)
}

func printNotifications(notes []notify.Notification) {
	for _, n := range notes {
		switch n.Level {
		case notify.LevelSuccess:
			success.Printf("✓ %s\n", n.Text)
		case notify.LevelError:
			failure.Printf("✗ %s\n", n.Text)
		case notify.LevelInfo:
			fmt.Printf("ℹ %s\n", n.Text)
		}
	}
}

func printThreads(snap thread.Snapshot) {
	if len(snap.Threads) == 0 {
		dim.Println("（暂无会话，使用 /new 或 'docchat new' 创建）")
		return
	}
	for _, t := range snap.Threads {
		marker := "  "
		if snap.Selected != nil && snap.Selected.ID == t.ID {
			marker = "▶ "
		}
		doc := ""
		if t.HasDocument {
			doc = " 📄"
		}
		fmt.Printf("%s#%-5d %s%s ", marker, t.ID, t.Title, doc)
		dim.Printf("(%d 条消息)\n", t.MessageCount)
		if t.LastMessage != nil && *t.LastMessage != "" {
			dim.Printf("         %s\n", *t.LastMessage)
		}
	}
}

func printMessage(m model.Message) {
	c := roleColor(m.Role)
	c.Printf("%s %s\n", m.Role.Icon(), m.Role.Label())
	fmt.Println(strings.TrimRight(m.Content, "\n"))
	for i, src := range m.Sources {
		dim.Printf("  [%d] %s\n", i+1, truncate(src.Content, 160))
	}
	fmt.Println()
}

func printPane(snap thread.Snapshot) {
	switch snap.Pane {
	case thread.PaneEmpty:
		dim.Println("（未选择会话）")
	case thread.PaneLoading:
		dim.Printf("（正在加载会话 #%d…）\n", snap.PendingID)
	case thread.PaneReady:
		doc := ""
		if snap.HasDocument {
			doc = " 📄"
		}
		bold.Printf("── #%d %s%s ──\n", snap.Selected.ID, snap.Selected.Title, doc)
		if len(snap.Messages) == 0 {
			dim.Println("（暂无消息）")
		}
		for _, m := range snap.Messages {
			printMessage(m)
		}
	}
}

func printSession(snap session.Snapshot) {
	switch snap.State {
	case session.Authenticated:
		fmt.Printf("║  登录状态: ✓ 已登录 (%s)\n", snap.User.Username)
	case session.Authenticating:
		fmt.Println("║  登录状态: … 认证中")
	case session.Rejected:
		fmt.Printf("║  登录状态: ✗ 登录失败 (%s)\n", snap.LastError)
	case session.Anonymous:
		fmt.Println("║  登录状态: ✗ 未登录")
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
