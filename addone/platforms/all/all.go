// Package all 引入全部内置设备家族，触发各家族的 init() 完成注册
package all

import (
	_ "github.com/sshcollectorpro/clisession/addone/platforms/cisco_ios"
	_ "github.com/sshcollectorpro/clisession/addone/platforms/comware"
	_ "github.com/sshcollectorpro/clisession/addone/platforms/huawei_vrp"
	_ "github.com/sshcollectorpro/clisession/addone/platforms/junos"
)
