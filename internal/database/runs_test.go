package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/clisession/internal/config"
	"github.com/sshcollectorpro/clisession/internal/model"
)

func newStore(t *testing.T) *RunStore {
	t.Helper()
	conn, err := Open(config.SQLiteConfig{Path: MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRunStore(conn)
}

func TestRunStoreSaveAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Second)

	run := &model.Run{
		ID:         "run-1",
		Hostname:   "10.0.0.1",
		Port:       22,
		Protocol:   "ssh",
		DeviceType: "cisco_ios",
		Mode:       "operational",
		Status:     model.RunStatusSuccess,
		StartTime:  start,
		EndTime:    time.Now(),
		Commands: []model.RunCommand{
			{Command: "show version", Output: "Cisco IOS Software"},
			{Command: "show clock", Output: "12:00:00 UTC"},
		},
	}
	require.NoError(t, store.Save(ctx, run))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "cisco_ios", got.DeviceType)
	require.Len(t, got.Commands, 2)
	assert.Equal(t, "show version", got.Commands[0].Command, "命令按提交顺序返回")
	assert.Equal(t, 1, got.Commands[1].Seq)
	assert.Equal(t, "12:00:00 UTC", got.Commands[1].Output)
}

func TestRunStoreGetMissing(t *testing.T) {
	store := newStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStoreList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Now()
	for i, host := range []string{"a", "b", "a"} {
		require.NoError(t, store.Save(ctx, &model.Run{
			ID:         string(rune('x' + i)),
			Hostname:   host,
			Protocol:   "telnet",
			DeviceType: "junos",
			Mode:       "shell",
			Status:     model.RunStatusFailed,
			StartTime:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	runs, err := store.List(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "z", runs[0].ID, "按开始时间倒序")

	all, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIsBusyError(t *testing.T) {
	assert.False(t, IsBusyError(nil))
	assert.False(t, IsBusyError(assert.AnError))
	assert.True(t, IsBusyError(errors.New("database is locked (5) (SQLITE_BUSY)")))
}
