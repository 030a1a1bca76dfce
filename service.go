package connstats

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-connstats/config"
	corestats "github.com/dep2p/go-connstats/internal/core/connstats"
	"github.com/dep2p/go-connstats/internal/core/eventbus"
	"github.com/dep2p/go-connstats/internal/core/introspect"
	"github.com/dep2p/go-connstats/internal/util/logger"
)

var log = logger.Logger("connstats/service")

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期常量
// ════════════════════════════════════════════════════════════════════════════

// startTimeout 启动超时（Fx App Start）
const startTimeout = 30 * time.Second

// State 服务状态
type State int

const (
	// StateIdle 已创建，未启动
	StateIdle State = iota
	// StateRunning 运行中
	StateRunning
	// StateStopped 已停止
	StateStopped
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Service
// ════════════════════════════════════════════════════════════════════════════

// Service 连接统计服务
//
// 服务只能启动一次，Stop 之后需重新 New。
type Service struct {
	mu    sync.Mutex
	state State

	cfg     *config.Config
	app     *fx.App
	logFile *os.File

	bus      *eventbus.Bus
	registry *corestats.Registry
	tracker  *corestats.Tracker
	reporter *corestats.Reporter
	server   *introspect.Server
}

// New 创建服务（不启动）
func New(opts ...Option) (*Service, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := o.finalize(); err != nil {
		return nil, err
	}

	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	svc := &Service{cfg: config.CloneConfig(o.config)}

	// 日志配置必须在所有模块初始化之前应用
	if err := svc.setupLogging(); err != nil {
		return nil, err
	}

	app, err := buildFxApp(o, svc)
	if err != nil {
		_ = svc.closeLogFile()
		return nil, err
	}
	svc.app = app
	return svc, nil
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrServiceClosed
	}

	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := s.app.Start(ctx); err != nil {
		s.state = StateStopped
		return multierr.Append(fmt.Errorf("start fx app: %w", err), s.closeLogFile())
	}

	s.state = StateRunning
	log.Info("连接统计服务已启动",
		"version", Version,
		"introspect", s.Addr(),
	)
	return nil
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return ErrNotStarted
	}

	s.state = StateStopped
	var err error
	if stopErr := s.app.Stop(ctx); stopErr != nil {
		log.Error("停止服务失败", "error", stopErr)
		err = fmt.Errorf("stop fx app: %w", stopErr)
	}
	log.Info("连接统计服务已停止")
	return multierr.Append(err, s.closeLogFile())
}

// State 返回服务状态
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Registry 返回进程级统计
func (s *Service) Registry() *Registry {
	return s.registry
}

// Tracker 返回连接跟踪器
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// Reporter 返回周期报告器
func (s *Service) Reporter() *corestats.Reporter {
	return s.reporter
}

// EventBus 返回事件总线
func (s *Service) EventBus() *eventbus.Bus {
	return s.bus
}

// Config 返回配置副本
func (s *Service) Config() *config.Config {
	return config.CloneConfig(s.cfg)
}

// Addr 返回自省服务的监听地址，未启用时返回空字符串
func (s *Service) Addr() string {
	if !s.cfg.Introspect.Enabled {
		return ""
	}
	return s.server.Addr()
}

// ════════════════════════════════════════════════════════════════════════════
//                              日志
// ════════════════════════════════════════════════════════════════════════════

func (s *Service) setupLogging() error {
	s.cfg.Log.Apply()

	if s.cfg.Log.File == "" {
		return nil
	}

	// 打开日志文件（追加模式）
	file, err := os.OpenFile(s.cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	s.logFile = file
	logger.SetOutput(file)

	log.Info("日志文件初始化成功", "path", s.cfg.Log.File)
	return nil
}

func (s *Service) closeLogFile() error {
	if s.logFile == nil {
		return nil
	}
	logger.SetOutput(os.Stderr)
	err := s.logFile.Close()
	s.logFile = nil
	return err
}
