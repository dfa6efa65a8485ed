// Package cmd 实现 CLI 命令
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	serverURL string
	configDir string

	// 所有交互读取共用一个缓冲，避免互相吞掉输入
	stdin = bufio.NewReader(os.Stdin)
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "DocChat - 基于文档的问答聊天客户端",
	Long: `DocChat CLI 客户端

登录后可以创建会话、上传文档（pdf / docx / txt），并针对文档内容提问。

直接运行即可进入交互式聊天，程序会引导你完成登录。`,
	Run: runInteractive,
}

// Execute 执行根命令
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "服务器地址 (默认: http://localhost:8000/api)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "配置目录 (默认: ~/.docchat)")
}

// runInteractive 交互式聊天主流程
func runInteractive(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := mustApp()
	defer a.close()

	printBanner()
	in := stdin

	if ev := a.ctrl.RestoreSession(ctx); ev.OK() {
		fmt.Printf("检测到已保存的登录信息，欢迎回来 %s\n\n", a.session.Snapshot().User.Username)
	} else {
		for !a.session.IsAuthenticated() {
			if !interactiveLogin(ctx, a, in) {
				return
			}
		}
	}
	printNotifications(a.notes.Drain())

	printThreads(a.threads.Snapshot())
	printHelp()

	for {
		prompt := "docchat> "
		if snap := a.threads.Snapshot(); snap.Selected != nil {
			prompt = fmt.Sprintf("docchat #%d> ", snap.Selected.ID)
		}
		fmt.Print(prompt)

		line, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			fmt.Println()
			return
		}
		if ctx.Err() != nil {
			return
		}

		line, ok := nextInput(line, a.threads.Draft())
		if !ok {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			chat(ctx, a, line)
			continue
		}
		if quit := runSlash(ctx, a, line); quit {
			fmt.Println("👋 再见！")
			return
		}
	}
}

func printBanner() {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║              📚 DocChat CLI 客户端              ║")
	fmt.Println("║                                                ║")
	fmt.Println("║         上传文档，然后直接向它提问              ║")
	fmt.Println("╚════════════════════════════════════════════════╝")
	fmt.Println()
}

func printHelp() {
	fmt.Println()
	dim.Println("命令：/list 列出会话  /new 新建会话  /open <id> 打开会话  /delete <id> 删除会话")
	dim.Println("      /upload <文件> 上传文档  /logout 登出  /help 帮助  /quit 退出")
	dim.Println("其他输入会作为问题发送到当前会话")
	fmt.Println()
}

// interactiveLogin 询问用户名密码并登录，返回 false 表示用户放弃
func interactiveLogin(ctx context.Context, a *app, in *bufio.Reader) bool {
	fmt.Println("🔐 开始登录（直接回车退出）")
	fmt.Println("─────────────────────────────────")

	username, ok := promptLine(in, "请输入用户名: ")
	if !ok || username == "" {
		return false
	}
	password, err := promptPassword(in, "请输入密码: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 读取密码失败: %v\n", err)
		return false
	}

	fmt.Println()
	a.ctrl.Login(ctx, username, password)
	printNotifications(a.notes.Drain())
	fmt.Println()
	return ctx.Err() == nil
}

// chat 把输入作为问题发送到当前会话
func chat(ctx context.Context, a *app, text string) {
	snap := a.threads.Snapshot()
	if snap.Selected == nil {
		failure.Println("✗ 请先用 /new 新建会话或 /open <id> 打开会话")
		return
	}

	a.threads.SetDraft(text)
	dim.Println("🤔 思考中...")
	ev := a.ctrl.SendMessage(ctx, snap.Selected.ID, a.threads.Draft())
	printNotifications(a.notes.Drain())
	if !ev.OK() {
		if draft := a.threads.Draft(); draft != "" {
			dim.Printf("（问题已保留：%s，直接回车重新发送）\n", truncate(draft, 40))
		}
		return
	}

	after := a.threads.Snapshot()
	if n := len(after.Messages); n > 0 {
		printMessage(after.Messages[n-1])
	}
}

// runSlash 执行斜杠命令，返回 true 表示退出
func runSlash(ctx context.Context, a *app, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		printHelp()
	case "/list":
		a.ctrl.ListThreads(ctx)
		printNotifications(a.notes.Drain())
		printThreads(a.threads.Snapshot())
	case "/new":
		if a.ctrl.CreateThread(ctx).OK() {
			fmt.Printf("✓ 已创建会话 #%d\n", a.threads.SelectedID())
		}
		printNotifications(a.notes.Drain())
	case "/open":
		id, ok := parseID(arg)
		if !ok {
			failure.Println("✗ 用法: /open <id>")
			return false
		}
		ev := a.ctrl.SelectThread(ctx, id)
		printNotifications(a.notes.Drain())
		if ev.OK() {
			printPane(a.threads.Snapshot())
		}
	case "/delete":
		id, ok := parseID(arg)
		if !ok {
			failure.Println("✗ 用法: /delete <id>")
			return false
		}
		if !askYesNo(fmt.Sprintf("确定删除会话 #%d 吗？", id)) {
			return false
		}
		a.ctrl.DeleteThread(ctx, id)
		printNotifications(a.notes.Drain())
	case "/upload":
		if arg == "" {
			failure.Println("✗ 用法: /upload <文件路径>")
			return false
		}
		id := a.threads.SelectedID()
		dim.Println("📤 上传中...")
		ev := a.ctrl.UploadDocument(ctx, id, arg)
		printNotifications(a.notes.Drain())
		if ev.OK() {
			printPane(a.threads.Snapshot())
		}
	case "/logout":
		a.ctrl.Logout(ctx)
		printNotifications(a.notes.Drain())
		fmt.Println("✓ 已登出并清除本地凭证")
		return true
	default:
		failure.Printf("✗ 未知命令: %s\n", name)
		printHelp()
	}
	return false
}

// nextInput 空行时取回发送失败后保留的问题
func nextInput(line, draft string) (string, bool) {
	line = strings.TrimSpace(line)
	if line != "" {
		return line, true
	}
	draft = strings.TrimSpace(draft)
	return draft, draft != ""
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func promptLine(in *bufio.Reader, prompt string) (string, bool) {
	fmt.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// promptPassword 终端下隐藏输入，管道输入时按行读取
func promptPassword(in *bufio.Reader, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, _ := promptLine(in, prompt)
		return line, nil
	}

	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println() // 换行
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func askYesNo(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	answer, _ := stdin.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}
