package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sshcollectorpro/clisession/pkg/logger"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/session"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive session; each line runs as a one-command batch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Disconnect()

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          prompt(s, profile.ModeShell),
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		sh := &interactive{s: s, mode: profile.ModeShell, raw: cfgRaw, verbose: cfgVerbose}
		fmt.Fprintln(rl.Stdout(), "Type :help for directives.")
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if err != nil {
				return nil
			}
			done, err := sh.handle(ctx, rl.Stdout(), line)
			if err != nil {
				fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
			}
			if done {
				return nil
			}
			rl.SetPrompt(prompt(s, sh.mode))
		}
	},
}

func prompt(s *session.Session, mode profile.Mode) string {
	return fmt.Sprintf("%s(%s)> ", s.Profile().Name, mode)
}

// interactive 交互状态：当前模式与输出开关
type interactive struct {
	s       *session.Session
	mode    profile.Mode
	raw     bool
	verbose bool
}

const shellHelp = `:mode <shell|operational|configuration>  switch the mode used for the next commands
:raw on|off                                return output without cleaning
:verbose on|off                            log every read and write
:exit                                      close the session`

// handle 处理一行输入，返回 true 表示结束会话
func (i *interactive) handle(ctx context.Context, w io.Writer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		out, err := i.s.Run(ctx, i.mode, []string{line})
		if out != nil {
			if perr := printOutput(w, out, false); perr != nil {
				return false, perr
			}
		}
		return false, err
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return false, fmt.Errorf("empty directive")
	}
	switch fields[0] {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Fprintln(w, shellHelp)
	case "mode":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: :mode <shell|operational|configuration>")
		}
		m, err := profile.ParseMode(fields[1])
		if err != nil {
			return false, err
		}
		i.mode = m
	case "raw", "verbose":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return false, fmt.Errorf("usage: :%s on|off", fields[0])
		}
		on := fields[1] == "on"
		if fields[0] == "raw" {
			i.raw = on
			i.s.SetRaw(on)
		} else {
			i.verbose = on
			i.s.SetVerbose(on)
			if on && !logger.GetLogger().IsLevelEnabled(logrus.InfoLevel) {
				logger.GetLogger().SetLevel(logrus.InfoLevel)
			}
		}
	default:
		return false, fmt.Errorf("unknown directive %q, try :help", fields[0])
	}
	return false, nil
}
