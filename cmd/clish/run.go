package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/session"
)

func newRunCmd(use string, mode profile.Mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " COMMAND...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := connect(ctx)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			out, runErr := s.Run(ctx, mode, args)
			if out != nil {
				if err := printOutput(cmd.OutOrStdout(), out, cfgJSON); err != nil {
					return err
				}
			}
			return runErr
		},
	}
}

// printOutput 文本格式每条命令前输出一行标题
func printOutput(w io.Writer, out *session.Output, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	var err error
	out.Each(func(command, text string) {
		if err != nil {
			return
		}
		if out.Len() > 1 {
			_, err = fmt.Fprintf(w, "==> %s\n", command)
		}
		if err == nil && text != "" {
			_, err = fmt.Fprintln(w, text)
		}
	})
	return err
}
