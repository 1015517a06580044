package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	_ "github.com/sshcollectorpro/clisession/addone/platforms/all"
	"github.com/sshcollectorpro/clisession/api/router"
	"github.com/sshcollectorpro/clisession/internal/config"
	"github.com/sshcollectorpro/clisession/internal/credential"
	"github.com/sshcollectorpro/clisession/internal/database"
	"github.com/sshcollectorpro/clisession/internal/service"
	"github.com/sshcollectorpro/clisession/internal/storage"
	"github.com/sshcollectorpro/clisession/internal/util"
	"github.com/sshcollectorpro/clisession/pkg/device"
	"github.com/sshcollectorpro/clisession/pkg/logger"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/simulate"
)

const simulatePath = "simulate/simulate.yaml"

func main() {
	configPath := os.Getenv("CLISESSION_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("configs/config.yaml"); err == nil {
			configPath = "configs/config.yaml"
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("Starting clisession server %s", router.Version)
	logger.Infof("Executor concurrency: %d (profile %q)", cfg.Executor.Concurrent, cfg.Executor.ConcurrencyProfile)

	if names, err := profile.Default.LoadFiles(cfg.Profiles.Catalogs...); err != nil {
		logger.Fatalf("Failed to load profile catalogs: %v", err)
	} else if len(names) > 0 {
		logger.Infof("Custom profiles loaded: %v", names)
	}

	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	archive, err := storage.New(cfg.Archive)
	if err != nil {
		logger.Fatalf("Failed to initialize archive: %v", err)
	}
	decode, err := util.Decoder(cfg.Session.Encoding)
	if err != nil {
		logger.Fatalf("Invalid session encoding: %v", err)
	}

	connector := device.NewConnector()
	connector.Logger = logger.WithField("component", "session")
	connector.DefaultProtocol = cfg.Session.DefaultProtocol
	connector.ConnectTimeout = cfg.Session.ConnectTimeout
	connector.ReadTimeout = cfg.Session.ReadTimeout
	connector.FlushQuiet = cfg.Session.FlushQuiet
	connector.KeepAlive = cfg.Session.KeepAlive
	connector.LegacyAlgorithms = cfg.Session.LegacyAlgorithms
	connector.KeyFiles = cfg.Session.KeyFiles
	connector.DigestLines = cfg.Session.DigestLines
	connector.Decode = decode

	svc := service.NewExecService(cfg, connector, database.NewRunStore(nil), archive,
		credential.NewResolver(cfg.Credentials.KeyringService))

	// 模拟设备（可选），配置热更新时启停
	var simMu sync.Mutex
	var simMgr *simulate.Manager
	startSim := func() {
		simMu.Lock()
		defer simMu.Unlock()
		if simMgr != nil {
			return
		}
		sc := simulate.DefaultConfig()
		if _, err := os.Stat(simulatePath); err == nil {
			if sc, err = simulate.LoadConfig(simulatePath); err != nil {
				logger.Warnf("Simulate: failed to load %s: %v", simulatePath, err)
				return
			}
		}
		sc.SSHPort = cfg.Server.SimulateSSHPort
		sc.TelnetPort = cfg.Server.SimulateTelnetPort
		mgr, err := simulate.Start(sc, logger.WithField("component", "simulate"))
		if err != nil {
			logger.Warnf("Simulate: failed to start: %v", err)
			return
		}
		simMgr = mgr
	}
	stopSim := func() {
		simMu.Lock()
		defer simMu.Unlock()
		if simMgr != nil {
			simMgr.Stop()
			simMgr = nil
			logger.Info("Simulate: stopped")
		}
	}
	if cfg.Server.SimulateEnable {
		startSim()
	}
	defer stopSim()

	r := router.SetupRouter(svc, cfg.Server.Mode)
	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		logger.Infof("Server listening on %s (mode %s)", server.Addr, cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 配置、家族目录与模拟配置的热更新
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	watched := append([]string{simulatePath}, cfg.Profiles.Catalogs...)
	if configPath != "" {
		watched = append(watched, configPath)
	}
	absConfig, _ := filepath.Abs(configPath)
	absSim, _ := filepath.Abs(simulatePath)
	err = config.Watch(watchCtx, watched, func(path string) {
		switch path {
		case absConfig:
			newCfg, err := config.Load(configPath)
			if err != nil {
				logger.Warnf("Config reload failed: %v", err)
				return
			}
			if err := logger.Init(newCfg.Log); err != nil {
				logger.Warnf("Logger reload failed: %v", err)
			}
			logger.Info("Config reloaded")
			if newCfg.Server.SimulateEnable {
				startSim()
			} else {
				stopSim()
			}
		case absSim:
			sc, err := simulate.LoadConfig(simulatePath)
			if err != nil {
				logger.Warnf("Simulate: reload %s failed: %v", simulatePath, err)
				return
			}
			simMu.Lock()
			defer simMu.Unlock()
			if simMgr != nil {
				if err := simMgr.Reload(sc); err != nil {
					logger.Warnf("Simulate: hot reload failed: %v", err)
				}
			}
		default:
			names, err := profile.Default.LoadFiles(path)
			if err != nil {
				logger.Warnf("Profile catalog reload failed: %v", err)
				return
			}
			logger.Infof("Profile catalog reloaded: %v", names)
		}
	})
	if err != nil {
		logger.Warnf("Config watch init failed: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Info("Server shutdown complete")
	}
}
