package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/sshcollectorpro/clisession/internal/config"
	"github.com/sshcollectorpro/clisession/internal/credential"
	"github.com/sshcollectorpro/clisession/internal/util"
	"github.com/sshcollectorpro/clisession/pkg/device"
	"github.com/sshcollectorpro/clisession/pkg/logger"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/session"
)

// Version 可通过 -ldflags 覆盖
var Version = "1.0.0"

var (
	cfgFile     string
	cfgType     string
	cfgHost     string
	cfgPort     int
	cfgProtocol string
	cfgUser     string
	cfgPassword string
	cfgSecret   string
	cfgRaw      bool
	cfgVerbose  bool
	cfgJSON     bool
	cfgTimeout  time.Duration
	cfgAskPass  bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "clish",
	Short:         "Run CLI command batches on network devices",
	Long:          "Connects to a network device over SSH or Telnet, moves it into the requested mode, runs commands and returns the cleaned output.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		// 命令行默认只输出警告，--verbose 时输出读写记录
		cfg.Log.Output = "stderr"
		if !cfgVerbose {
			cfg.Log.Level = "warn"
		}
		if err := logger.Init(cfg.Log); err != nil {
			return err
		}
		if _, err := profile.Default.LoadFiles(cfg.Profiles.Catalogs...); err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./configs/config.yaml if present)")
	pf.StringVarP(&cfgType, "device-type", "t", "", "device family, e.g. cisco_ios, junos, comware")
	pf.StringVarP(&cfgHost, "host", "H", "", "device hostname or IP")
	pf.IntVarP(&cfgPort, "port", "p", 0, "port (default per protocol)")
	pf.StringVar(&cfgProtocol, "protocol", "", "ssh or telnet")
	pf.StringVarP(&cfgUser, "user", "u", "", "login username")
	pf.StringVar(&cfgPassword, "password", "", "login password or keyring:<key> reference")
	pf.BoolVar(&cfgAskPass, "ask-pass", false, "prompt for the password")
	pf.StringVar(&cfgSecret, "secret", "", "enable secret or keyring:<key> reference")
	pf.BoolVar(&cfgRaw, "raw", false, "return output without cleaning")
	pf.BoolVarP(&cfgVerbose, "verbose", "v", false, "log every read and write")
	pf.BoolVar(&cfgJSON, "json", false, "print output as JSON")
	pf.DurationVar(&cfgTimeout, "timeout", 0, "read timeout per command")

	rootCmd.AddCommand(newRunCmd("cli", profile.ModeShell, "Run commands in the login mode"))
	rootCmd.AddCommand(newRunCmd("operation", profile.ModeOperational, "Run commands in operational / privileged mode"))
	rootCmd.AddCommand(newRunCmd("configure", profile.ModeConfiguration, "Run commands in configuration mode"))
	rootCmd.AddCommand(shellCmd, profilesCmd, secretCmd)
}

// readPassword 无回显读取
func readPassword(prompt string) (string, error) {
	rl, err := readline.New("")
	if err != nil {
		return "", err
	}
	defer rl.Close()
	b, err := rl.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func connect(ctx context.Context) (*session.Session, error) {
	resolver := credential.NewResolver(appConfig.Credentials.KeyringService)
	password := cfgPassword
	if cfgAskPass {
		p, err := readPassword(fmt.Sprintf("%s@%s password: ", cfgUser, cfgHost))
		if err != nil {
			return nil, err
		}
		password = p
	}
	password, err := resolver.Resolve(password)
	if err != nil {
		return nil, err
	}
	secret, err := resolver.Resolve(cfgSecret)
	if err != nil {
		return nil, err
	}
	decode, err := util.Decoder(appConfig.Session.Encoding)
	if err != nil {
		return nil, err
	}

	c := device.NewConnector()
	c.Logger = logger.WithField("component", "clish")
	c.DefaultProtocol = appConfig.Session.DefaultProtocol
	c.ConnectTimeout = appConfig.Session.ConnectTimeout
	c.ReadTimeout = appConfig.Session.ReadTimeout
	c.FlushQuiet = appConfig.Session.FlushQuiet
	c.KeepAlive = appConfig.Session.KeepAlive
	c.LegacyAlgorithms = appConfig.Session.LegacyAlgorithms
	c.KeyFiles = appConfig.Session.KeyFiles
	c.DigestLines = appConfig.Session.DigestLines
	c.Decode = decode

	return c.Connect(ctx, device.Params{
		DeviceType:  cfgType,
		Hostname:    cfgHost,
		Port:        cfgPort,
		Protocol:    cfgProtocol,
		Username:    cfgUser,
		Password:    password,
		Secret:      secret,
		Raw:         cfgRaw,
		Verbose:     cfgVerbose,
		ReadTimeout: cfgTimeout,
	})
}
