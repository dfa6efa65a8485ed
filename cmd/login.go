package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "登录账号",
	Long: `使用用户名和密码登录，登录成功后 token 会保存到本地配置。

未通过 --username 指定用户名时会交互式询问。`,
	Run: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "注册新账号",
	Long:  `注册新账号，注册成功后自动登录。`,
	Run:   runRegister,
}

var (
	loginUsername string
	registerEmail string
)

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "用户名")
	registerCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "用户名")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "邮箱（可选）")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.close()

	username, password := askCredentials()
	fmt.Println("🔐 正在登录...")
	a.check(a.ctrl.Login(cmd.Context(), username, password))
	fmt.Printf("✅ 登录成功，配置已保存到 %s\n", a.loader.Path())
}

func runRegister(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.close()

	username, password := askCredentials()
	fmt.Println("📝 正在注册...")
	a.check(a.ctrl.Register(cmd.Context(), username, registerEmail, password))
	fmt.Println("✅ 注册成功，已自动登录")
}

// askCredentials 补齐用户名并读取密码；格式校验交给控制器
func askCredentials() (string, string) {
	username := loginUsername
	if username == "" {
		username, _ = promptLine(stdin, "请输入用户名: ")
	}
	password, err := promptPassword(stdin, "请输入密码: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 读取密码失败: %v\n", err)
		os.Exit(1)
	}
	return username, password
}
