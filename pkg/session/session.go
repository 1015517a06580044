// Package session 会话自动机：在一个 Transport 上按设备家族的模式定义执行命令批次。
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/logger"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/sanitize"
	"github.com/sshcollectorpro/clisession/pkg/transport"
)

// Options 会话运行参数
type Options struct {
	// Secret 二级认证密码（enable）
	Secret string
	// Raw 跳过输出清洗
	Raw bool
	// Verbose 逐次输出读写记录
	Verbose bool
	// DigestLines debug 日志中每条命令输出摘要的行数
	DigestLines int
	// Decode 把设备输出转换为字符串，默认按 UTF-8 原样转换
	Decode func([]byte) string
	Logger *logrus.Entry
}

// Session 绑定一个 Transport 与一个设备家族。
// 同一时刻只执行一个批次；Disconnect 可在任意 goroutine 调用以中断正在进行的读取。
type Session struct {
	id        string
	tr        transport.Transport
	rec       *transport.Recorder
	profile   *profile.Profile
	sanitizer *sanitize.Sanitizer
	secret    string
	digest    int
	decode    func([]byte) string
	log       *logrus.Entry

	raw atomic.Bool

	mu       sync.Mutex
	unusable error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	cleanup   runtime.Cleanup
}

// New 在已登录的 Transport 上创建会话。会话被丢弃而未调用 Disconnect 时，Transport 仍会被释放。
func New(tr transport.Transport, p *profile.Profile, opts Options) (*Session, error) {
	san, err := sanitize.New(p)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	entry := opts.Logger
	if entry == nil {
		entry = logger.Discard()
	}
	entry = entry.WithFields(logrus.Fields{"session_id": id, "device_type": p.Name})
	if opts.DigestLines <= 0 {
		opts.DigestLines = 5
	}
	if opts.Decode == nil {
		opts.Decode = func(b []byte) string { return string(b) }
	}

	rec := transport.NewRecorder(tr, entry, opts.Verbose)
	s := &Session{
		id:        id,
		tr:        rec,
		rec:       rec,
		profile:   p,
		sanitizer: san,
		secret:    opts.Secret,
		digest:    opts.DigestLines,
		decode:    opts.Decode,
		log:       entry,
	}
	s.raw.Store(opts.Raw)
	s.cleanup = runtime.AddCleanup(s, func(t transport.Transport) { _ = t.Disconnect() }, tr)
	return s, nil
}

// ID 会话标识
func (s *Session) ID() string { return s.id }

// Profile 绑定的设备家族
func (s *Session) Profile() *profile.Profile { return s.profile }

// SetVerbose 切换读写记录输出
func (s *Session) SetVerbose(v bool) { s.rec.SetVerbose(v) }

// SetRaw 切换是否跳过输出清洗
func (s *Session) SetRaw(v bool) { s.raw.Store(v) }

// Transcript 会话开始以来从设备读取到的全部字节
func (s *Session) Transcript() []byte { return s.rec.Transcript() }

// Sync 消费登录横幅直到出现 Shell 提示符；未出现时发送一次换行诱发提示符
func (s *Session) Sync(ctx context.Context) error {
	term := s.profile.Terminator(profile.ModeShell)
	_, err := s.tr.Read(ctx, term, transport.ReadRegex)
	if errors.Is(err, clierr.ErrReadTimeout) {
		s.log.Debug("no prompt after login, sending newline")
		if err = s.tr.Write([]byte("\n")); err == nil {
			_, err = s.tr.Read(ctx, term, transport.ReadRegex)
		}
	}
	if err != nil {
		return fmt.Errorf("wait for shell prompt: %w", err)
	}
	return nil
}

// CLI 在 Shell 模式执行命令，不做模式切换
func (s *Session) CLI(ctx context.Context, commands ...string) (*Output, error) {
	return s.Run(ctx, profile.ModeShell, commands)
}

// Operation 进入操作/特权模式执行命令，完成后回到 Shell
func (s *Session) Operation(ctx context.Context, commands ...string) (*Output, error) {
	return s.Run(ctx, profile.ModeOperational, commands)
}

// Configure 进入配置模式执行命令，完成后经操作模式回到 Shell
func (s *Session) Configure(ctx context.Context, commands ...string) (*Output, error) {
	return s.Run(ctx, profile.ModeConfiguration, commands)
}

// Run 在指定模式执行一个批次。
// 失败时返回已捕获的部分输出（包括失败命令已读到的内容）与错误；
// 无论批次是否成功都会尝试退出序列，退出失败只记录日志并把会话标记为不可用。
func (s *Session) Run(ctx context.Context, mode profile.Mode, commands []string) (*Output, error) {
	if !mode.Valid() {
		return nil, clierr.Configurationf("invalid mode %d", int(mode))
	}
	if len(commands) == 0 {
		return nil, clierr.Configurationf("empty command batch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, clierr.Wrap(clierr.ErrClosed, nil, "session %s disconnected", s.id)
	}
	if s.unusable != nil {
		return nil, fmt.Errorf("%w: %w", clierr.ErrSessionUnusable, s.unusable)
	}
	if mode > profile.ModeShell && s.profile.SecretRequired && s.secret == "" {
		return nil, clierr.Wrap(clierr.ErrSecretRequired, nil, "%s requires a secret for %s mode", s.profile.Name, mode)
	}

	log := s.log.WithField("mode", mode.String())
	out := NewOutput()
	current, batchErr := s.enter(ctx, mode)

	if batchErr == nil {
		term := s.profile.Terminator(mode)
		for _, cmd := range commands {
			data, err := s.exchange(ctx, cmd, term)
			text := s.render(cmd, data)
			out.Set(cmd, text)
			logger.DebugCommandOutput(log, cmd, text, s.digest)
			if err != nil {
				batchErr = fmt.Errorf("%s: command %q: %w", mode, cmd, err)
				break
			}
		}
	}

	if batchErr != nil {
		// 丢弃失败命令之后迟到的输出，避免旧提示符提前结束退出步骤的读取
		_, _ = s.tr.Flush(ctx)
	}
	if exitErr := s.exit(ctx, current); exitErr != nil {
		log.WithError(exitErr).Warn("exit sequence failed, session is no longer usable")
		s.unusable = exitErr
		if batchErr == nil {
			return out, fmt.Errorf("%w: %w", clierr.ErrSessionUnusable, exitErr)
		}
	}
	if batchErr != nil {
		log.WithError(batchErr).Warn("batch aborted")
	}
	return out, batchErr
}

func (s *Session) render(cmd string, data []byte) string {
	text := s.decode(data)
	if s.raw.Load() {
		return text
	}
	return s.sanitizer.Clean(cmd, text)
}

// exchange 写入一条命令并读到终止符
func (s *Session) exchange(ctx context.Context, cmd, term string) ([]byte, error) {
	if err := s.write(cmd, false); err != nil {
		return nil, err
	}
	return s.tr.Read(ctx, term, transport.ReadRegex)
}

// enter 执行进入路径，返回最后一步成功后设备所处的模式
func (s *Session) enter(ctx context.Context, target profile.Mode) (profile.Mode, error) {
	current := profile.ModeShell
	for _, a := range s.profile.EnterPath(target) {
		if err := s.step(ctx, a); err != nil {
			return current, fmt.Errorf("enter %s: %q: %w", target, a.Send, err)
		}
		current = a.Until
	}
	return current, nil
}

// exit 从 from 回到 Shell；单步失败不中断后续步骤，返回第一个错误
func (s *Session) exit(ctx context.Context, from profile.Mode) error {
	var first error
	for _, a := range s.profile.ExitPath(from) {
		if err := s.step(ctx, a); err != nil {
			s.log.WithError(err).Warnf("exit step %q failed", a.Send)
			if first == nil {
				first = fmt.Errorf("exit %s: %q: %w", from, a.Send, err)
			}
			if errors.Is(err, clierr.ErrClosed) {
				break
			}
		}
	}
	return first
}

func (s *Session) step(ctx context.Context, a profile.Action) error {
	if a.Secret {
		if s.secret == "" {
			return clierr.Wrap(clierr.ErrSecretRequired, nil, "step requires a secret")
		}
		if err := s.write(s.secret, true); err != nil {
			return err
		}
	} else if err := s.write(a.Send, false); err != nil {
		return err
	}

	if a.SecretPrompt != "" && s.secret != "" {
		if _, err := s.tr.Read(ctx, a.SecretPrompt, transport.ReadLiteral); err != nil {
			return err
		}
		if err := s.write(s.secret, true); err != nil {
			return err
		}
	}
	if a.NoWait {
		return nil
	}
	_, err := s.tr.Read(ctx, a.Terminator, a.Mode)
	return err
}

func (s *Session) write(line string, secret bool) error {
	if s.rec.Verbose() {
		shown := line
		if secret {
			shown = strings.Repeat("*", 6)
		}
		s.log.Infof("[write] %s", shown)
	}
	return s.tr.Write([]byte(line + "\n"))
}

// Disconnect 释放 Transport，可重复调用
func (s *Session) Disconnect() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cleanup.Stop()
		s.closeErr = s.tr.Disconnect()
		s.log.Debug("session disconnected")
	})
	return s.closeErr
}

// Close 实现 io.Closer
func (s *Session) Close() error { return s.Disconnect() }
