package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sshcollectorpro/clisession/pkg/logger"
)

// DebounceInterval 连续写入合并为一次回调
const DebounceInterval = 300 * time.Millisecond

// Watch 监听文件变化并在防抖后调用 onChange，ctx 结束时停止。
// 监听所在目录而不是文件本身，编辑器以重命名方式保存时也能收到事件。
func Watch(ctx context.Context, paths []string, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return err
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if _, err := os.Stat(dir); err != nil {
			logger.Debugf("config watch skip %s: %v", p, err)
			continue
		}
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				_ = watcher.Close()
				return err
			}
			dirs[dir] = true
		}
	}

	go func() {
		defer watcher.Close()
		timers := make(map[string]*time.Timer)
		for {
			select {
			case <-ctx.Done():
				for _, t := range timers {
					t.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, _ := filepath.Abs(ev.Name)
				if !targets[name] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if t, ok := timers[name]; ok {
					t.Stop()
				}
				timers[name] = time.AfterFunc(DebounceInterval, func() { onChange(name) })
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("config watch error: %v", err)
			}
		}
	}()
	return nil
}
