package simulate

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// shell 一条连接上的交互式命令行
type shell struct {
	dev     DeviceConfig
	dialect *dialect
	rw      io.ReadWriter
	idle    time.Duration
	log     *logrus.Entry

	level  int
	paging bool
	lines  chan string
	done   chan struct{}
}

func newShell(dev DeviceConfig, rw io.ReadWriter, idle time.Duration, log *logrus.Entry) *shell {
	return &shell{
		dev:     dev,
		dialect: dialects[dev.Family],
		rw:      rw,
		idle:    idle,
		log:     log.WithField("device", dev.Hostname),
		level:   levelShell,
		paging:  true,
		lines:   make(chan string),
		done:    make(chan struct{}),
	}
}

func (s *shell) write(str string) {
	_, _ = io.WriteString(s.rw, str)
}

func (s *shell) printPrompt() {
	s.write(s.dialect.prompt(s.level, s.dev.Hostname))
}

// readLines 按行读取输入，连接关闭时关闭 lines
func (s *shell) readLines(r *bufio.Reader) {
	defer close(s.lines)
	for {
		line, err := r.ReadString('\n')
		if line != "" || err == nil {
			select {
			case s.lines <- strings.TrimRight(line, "\r\n"):
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// next 等待下一行输入；连接关闭或空闲超时返回 false
func (s *shell) next() (string, bool) {
	var timeout <-chan time.Time
	if s.idle > 0 {
		t := time.NewTimer(s.idle)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case line, ok := <-s.lines:
		return line, ok
	case <-timeout:
		s.write("\r\nSession closed due to idle timeout.\r\n")
		s.log.Debug("simulate: session idle timeout")
		return "", false
	}
}

// run 打印横幅与提示符后处理命令，直到退出或连接关闭
func (s *shell) run(r *bufio.Reader, banner string) {
	defer close(s.done)
	go s.readLines(r)
	if banner != "" {
		s.write(banner)
	}
	s.printPrompt()

	for {
		line, ok := s.next()
		if !ok {
			return
		}
		cmd := strings.TrimSpace(line)
		// 回显
		s.write(line + "\r\n")
		if cmd == "" {
			s.printPrompt()
			continue
		}
		s.log.Debugf("simulate: input %q at level %d", cmd, s.level)

		if m, ok := s.dialect.move(s.level, cmd); ok {
			if m.to == levelClosed {
				s.log.Debug("simulate: session exit")
				return
			}
			if m.secret && s.dev.Secret != "" && !s.checkSecret() {
				s.write("% Access denied\r\n\r\n")
				s.printPrompt()
				continue
			}
			if out, ok := s.dialect.output(s.dev, cmd); ok {
				s.write(out)
			}
			s.level = m.to
			s.printPrompt()
			continue
		}

		if on, ok := s.dialect.paging[strings.ToLower(cmd)]; ok {
			s.paging = on
			s.printPrompt()
			continue
		}

		out, ok := s.dialect.output(s.dev, cmd)
		switch {
		case ok:
			if !s.page(out) {
				return
			}
		case s.level == levelConfig:
			// 配置模式下接受任意配置命令
		default:
			s.write(s.dialect.unknown)
		}
		s.printPrompt()
	}
}

// checkSecret 询问 enable 密码，输入不回显
func (s *shell) checkSecret() bool {
	s.write("Password: ")
	pwd, ok := s.next()
	s.write("\r\n")
	return ok && strings.TrimSpace(pwd) == s.dev.Secret
}

// page 分页开启时每屏之后输出 --More-- 并等待任意输入
func (s *shell) page(out string) bool {
	if !s.paging {
		s.write(out)
		return true
	}
	lines := strings.SplitAfter(out, "\r\n")
	for len(lines) > PageLines {
		s.write(strings.Join(lines[:PageLines], ""))
		lines = lines[PageLines:]
		s.write(" --More-- ")
		if _, ok := s.next(); !ok {
			return false
		}
		s.write("\r\n")
	}
	s.write(strings.Join(lines, ""))
	return true
}
