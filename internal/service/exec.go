package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sshcollectorpro/clisession/internal/config"
	"github.com/sshcollectorpro/clisession/internal/credential"
	"github.com/sshcollectorpro/clisession/internal/database"
	"github.com/sshcollectorpro/clisession/internal/model"
	"github.com/sshcollectorpro/clisession/internal/storage"
	"github.com/sshcollectorpro/clisession/pkg/clierr"
	"github.com/sshcollectorpro/clisession/pkg/device"
	"github.com/sshcollectorpro/clisession/pkg/logger"
	"github.com/sshcollectorpro/clisession/pkg/profile"
	"github.com/sshcollectorpro/clisession/pkg/session"
)

// DefaultMode 请求未指定模式时使用
const DefaultMode = profile.ModeOperational

// ExecRequest 单台设备的一个命令批次
type ExecRequest struct {
	DeviceType string   `json:"device_type" binding:"required"`
	Hostname   string   `json:"hostname"`
	IP         string   `json:"ip,omitempty"`
	Port       int      `json:"port,omitempty"`
	Protocol   string   `json:"protocol,omitempty"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	Secret     string   `json:"secret,omitempty"`
	Mode       string   `json:"mode,omitempty"` // shell | operational | configuration
	Commands   []string `json:"commands" binding:"required"`
	Raw        bool     `json:"raw,omitempty"`
	Verbose    bool     `json:"verbose,omitempty"`
	// Timeout 单次读取超时，秒
	Timeout int `json:"timeout,omitempty"`
}

// ExecResponse 执行结果；失败时 Output 保留已捕获的部分输出
type ExecResponse struct {
	RunID      string          `json:"run_id"`
	SessionID  string          `json:"session_id,omitempty"`
	Hostname   string          `json:"hostname"`
	DeviceType string          `json:"device_type"`
	Mode       string          `json:"mode"`
	Success    bool            `json:"success"`
	Output     *session.Output `json:"output,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	ArchiveURI string          `json:"archive_uri,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ExecService 打开会话、执行批次、记录历史与归档
type ExecService struct {
	cfg       *config.Config
	connector *device.Connector
	runs      *database.RunStore
	archive   storage.Writer
	creds     *credential.Resolver
	log       *logrus.Entry
}

// NewExecService runs 与 archive 可以为 nil，对应功能关闭
func NewExecService(cfg *config.Config, connector *device.Connector, runs *database.RunStore, archive storage.Writer, creds *credential.Resolver) *ExecService {
	if creds == nil {
		creds = credential.NewResolver(cfg.Credentials.KeyringService)
	}
	return &ExecService{
		cfg:       cfg,
		connector: connector,
		runs:      runs,
		archive:   archive,
		creds:     creds,
		log:       logger.WithField("component", "exec"),
	}
}

// Profiles 已注册的设备家族
func (s *ExecService) Profiles() *profile.Registry {
	return s.connector.Profiles
}

func (s *ExecService) params(req ExecRequest) (device.Params, profile.Mode, error) {
	mode := DefaultMode
	if strings.TrimSpace(req.Mode) != "" {
		m, err := profile.ParseMode(req.Mode)
		if err != nil {
			return device.Params{}, 0, clierr.Configurationf("%v", err)
		}
		mode = m
	}
	password, err := s.creds.Resolve(req.Password)
	if err != nil {
		return device.Params{}, 0, err
	}
	secret, err := s.creds.Resolve(req.Secret)
	if err != nil {
		return device.Params{}, 0, err
	}
	if req.Timeout < 0 {
		return device.Params{}, 0, clierr.Configurationf("timeout must not be negative")
	}
	return device.Params{
		DeviceType:  req.DeviceType,
		Hostname:    req.Hostname,
		IP:          req.IP,
		Port:        req.Port,
		Protocol:    req.Protocol,
		Username:    req.Username,
		Password:    password,
		Secret:      secret,
		Verbose:     req.Verbose,
		Raw:         req.Raw,
		ReadTimeout: time.Duration(req.Timeout) * time.Second,
	}, mode, nil
}

// Execute 执行一个批次。返回的响应总是非 nil；error 与响应中的 ErrorKind 一致。
func (s *ExecService) Execute(ctx context.Context, req ExecRequest) (*ExecResponse, error) {
	start := time.Now()
	resp := &ExecResponse{
		RunID:      uuid.NewString(),
		Hostname:   firstNonEmpty(req.Hostname, req.IP),
		DeviceType: req.DeviceType,
		Timestamp:  start,
	}
	log := s.log.WithFields(logrus.Fields{"run_id": resp.RunID, "host": resp.Hostname})

	params, mode, err := s.params(req)
	resp.Mode = req.Mode
	if mode.Valid() {
		resp.Mode = mode.String()
	}
	if err == nil && len(req.Commands) == 0 {
		err = clierr.Configurationf("commands must not be empty")
	}
	var transcript []byte
	if err == nil {
		var sess *session.Session
		sess, err = s.connector.Connect(ctx, params)
		if err == nil {
			resp.SessionID = sess.ID()
			resp.DeviceType = sess.Profile().Name
			resp.Output, err = sess.Run(ctx, mode, req.Commands)
			transcript = sess.Transcript()
			if derr := sess.Disconnect(); derr != nil {
				log.WithError(derr).Debug("disconnect failed")
			}
		}
	}

	resp.Success = err == nil
	if err != nil {
		resp.ErrorKind = clierr.Kind(err)
		resp.Error = err.Error()
		log.WithError(err).Warnf("run failed: %s", resp.ErrorKind)
	} else {
		log.Infof("run finished: %d commands in %s mode", resp.Output.Len(), resp.Mode)
	}

	if s.archive != nil && len(transcript) > 0 {
		obj, aerr := s.archive.Write(ctx, storage.Meta{Hostname: resp.Hostname, RunID: resp.RunID, Started: start}, transcript)
		if aerr != nil {
			log.WithError(aerr).Warn("archive transcript failed")
		} else {
			resp.ArchiveURI = obj.URI
		}
	}

	resp.DurationMS = time.Since(start).Milliseconds()
	s.record(ctx, resp, req, start)
	return resp, err
}

// ExecuteBatch 并发执行多台设备，结果顺序与请求一致；单台失败不影响其他设备
func (s *ExecService) ExecuteBatch(ctx context.Context, reqs []ExecRequest) []*ExecResponse {
	results := make([]*ExecResponse, len(reqs))
	limit := s.cfg.Executor.Concurrent
	if limit <= 0 {
		limit = 8
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			results[i], _ = s.Execute(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Run 读取历史执行记录
func (s *ExecService) Run(ctx context.Context, id string) (*model.Run, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("%w: history disabled", database.ErrRunNotFound)
	}
	return s.runs.Get(ctx, id)
}

// Runs 最近的执行记录
func (s *ExecService) Runs(ctx context.Context, hostname string, limit int) ([]model.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.List(ctx, hostname, limit)
}

func (s *ExecService) record(ctx context.Context, resp *ExecResponse, req ExecRequest, start time.Time) {
	if s.runs == nil {
		return
	}
	run := &model.Run{
		ID:         resp.RunID,
		SessionID:  resp.SessionID,
		Hostname:   resp.Hostname,
		Port:       req.Port,
		Protocol:   firstNonEmpty(strings.ToLower(req.Protocol), s.connector.DefaultProtocol, "ssh"),
		DeviceType: resp.DeviceType,
		Mode:       resp.Mode,
		Status:     model.RunStatusSuccess,
		ErrorKind:  resp.ErrorKind,
		ErrorMsg:   resp.Error,
		ArchiveURI: resp.ArchiveURI,
		StartTime:  start,
		EndTime:    time.Now(),
		Duration:   resp.DurationMS,
	}
	if !resp.Success {
		run.Status = model.RunStatusFailed
	}
	if resp.Output != nil {
		resp.Output.Each(func(command, text string) {
			run.Commands = append(run.Commands, model.RunCommand{Command: command, Output: text})
		})
	}
	// 请求已取消时仍然写入记录
	if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		s.log.WithError(err).Warnf("save run %s failed", run.ID)
	}
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// IsNotFound 判断是否为执行记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrRunNotFound)
}
