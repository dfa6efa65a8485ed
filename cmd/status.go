package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示当前状态",
	Long: `显示当前登录状态和配置信息。

包括：
- 服务器地址
- 配置文件位置
- 登录状态（会向服务器验证已保存的 token）`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.close()

	a.ctrl.RestoreSession(cmd.Context())
	snap := a.session.Snapshot()

	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║              DocChat 状态信息                   ║")
	fmt.Println("╠════════════════════════════════════════════════╣")
	fmt.Printf("║  服务器: %s\n", a.cfg.Server.URL)
	fmt.Printf("║  配置文件: %s\n", a.loader.Path())
	printSession(snap)

	if snap.User != nil {
		if snap.User.Email != "" {
			fmt.Printf("║  邮箱: %s\n", snap.User.Email)
		}
		fmt.Printf("║  会话数: %d\n", len(a.threads.Snapshot().Threads))
	} else {
		fmt.Println("║")
		fmt.Println("║  请运行 'docchat login' 完成登录")
	}
	fmt.Println("╚════════════════════════════════════════════════╝")
}
