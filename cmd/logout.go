package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "登出并清除本地凭证",
	Long: `通知服务器使 token 失效，并清除本地保存的 token。

服务器不可达时也会清除本地凭证。登出后需要重新运行 'docchat login'。`,
	Run: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.close()

	if a.session.PersistedToken() == "" {
		fmt.Println("当前未登录")
		return
	}

	a.session.Restore(a.session.PersistedToken())
	a.check(a.ctrl.Logout(cmd.Context()))
	fmt.Println("✓ 已登出并清除本地凭证")
}
