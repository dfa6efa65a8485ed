package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:     "threads",
	Aliases: []string{"ls"},
	Short:   "列出所有会话",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.close()

		a.requireLogin(cmd.Context())
		printThreads(a.threads.Snapshot())
	},
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "新建会话",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.close()

		a.requireLogin(cmd.Context())
		a.check(a.ctrl.CreateThread(cmd.Context()))
		snap := a.threads.Snapshot()
		fmt.Printf("✓ 已创建会话 #%d %s\n", snap.Selected.ID, snap.Selected.Title)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "显示会话的全部消息",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustID(args[0])
		a := mustApp()
		defer a.close()

		a.requireLogin(cmd.Context())
		a.check(a.ctrl.SelectThread(cmd.Context(), id))
		printPane(a.threads.Snapshot())
	},
}

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "删除会话",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustID(args[0])
		a := mustApp()
		defer a.close()

		a.requireLogin(cmd.Context())
		if !deleteYes && !askYesNo(fmt.Sprintf("确定删除会话 #%d 吗？", id)) {
			fmt.Println("已取消")
			return
		}
		a.check(a.ctrl.DeleteThread(cmd.Context(), id))
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <id> <问题>",
	Short: "向会话提问并打印回答",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustID(args[0])
		a := mustApp()
		defer a.close()

		ctx := cmd.Context()
		a.requireLogin(ctx)
		a.check(a.ctrl.SelectThread(ctx, id))

		a.threads.SetDraft(strings.Join(args[1:], " "))
		a.check(a.ctrl.SendMessage(ctx, id, a.threads.Draft()))
		if msgs := a.threads.Snapshot().Messages; len(msgs) > 0 {
			printMessage(msgs[len(msgs)-1])
		}
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <id> <文件>",
	Short: "上传文档到会话（pdf / docx / txt）",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustID(args[0])
		a := mustApp()
		defer a.close()

		ctx := cmd.Context()
		a.requireLogin(ctx)
		a.check(a.ctrl.SelectThread(ctx, id))

		fmt.Println("📤 上传中...")
		a.check(a.ctrl.UploadDocument(ctx, id, args[1]))
		printPane(a.threads.Snapshot())
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "跳过确认")

	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(uploadCmd)
}

func mustID(s string) int64 {
	id, ok := parseID(s)
	if !ok {
		fmt.Fprintf(os.Stderr, "✗ 无效的会话 ID: %s\n", s)
		os.Exit(1)
	}
	return id
}
