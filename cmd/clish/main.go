// clish 在网络设备上执行命令批次或打开交互式会话。
package main

import (
	"os"

	_ "github.com/sshcollectorpro/clisession/addone/platforms/all"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
