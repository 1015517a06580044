package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/session"
)

func TestInteractiveDirectives(t *testing.T) {
	sh := &interactive{mode: profile.ModeShell}
	var buf bytes.Buffer
	ctx := context.Background()

	done, err := sh.handle(ctx, &buf, "   ")
	require.NoError(t, err)
	assert.False(t, done, "空行不应结束会话")

	_, err = sh.handle(ctx, &buf, ":mode configuration")
	require.NoError(t, err)
	assert.Equal(t, profile.ModeConfiguration, sh.mode, "模式应切换为 configuration")

	_, err = sh.handle(ctx, &buf, ":mode bogus")
	assert.Error(t, err, "未知模式应报错")
	assert.Equal(t, profile.ModeConfiguration, sh.mode, "报错时模式保持不变")

	_, err = sh.handle(ctx, &buf, ":raw maybe")
	assert.Error(t, err, "raw 参数只接受 on/off")

	_, err = sh.handle(ctx, &buf, ":frobnicate")
	assert.Error(t, err, "未知指令应报错")

	_, err = sh.handle(ctx, &buf, ":help")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), ":mode", "帮助应列出指令")

	done, err = sh.handle(ctx, &buf, ":exit")
	require.NoError(t, err)
	assert.True(t, done, ":exit 应结束会话")
}

func TestPrintOutput(t *testing.T) {
	out := session.NewOutput()
	out.Set("show clock", "12:00:00 UTC")
	out.Set("show users", "")

	var buf bytes.Buffer
	require.NoError(t, printOutput(&buf, out, false))
	assert.Equal(t, "==> show clock\n12:00:00 UTC\n==> show users\n", buf.String(), "多条命令带标题输出")

	single := session.NewOutput()
	single.Set("show clock", "12:00:00 UTC")
	buf.Reset()
	require.NoError(t, printOutput(&buf, single, false))
	assert.Equal(t, "12:00:00 UTC\n", buf.String(), "单条命令不输出标题")

	buf.Reset()
	require.NoError(t, printOutput(&buf, out, true))
	assert.JSONEq(t, `{"show clock":"12:00:00 UTC","show users":""}`, buf.String(), "JSON 输出保持命令顺序")
}
