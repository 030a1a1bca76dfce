// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的连接统计，用于调试和监控。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// 端点：
//   - GET /debug/connstats                   - 全局统计与所有连接 (JSON)
//   - GET /debug/connstats/connections       - 当前连接列表
//   - GET /debug/connstats/connections/{id}  - 单个连接（含已关闭历史）
//   - GET /debug/connstats/closed            - 最近关闭的连接
//   - GET /metrics                           - Prometheus 指标
//   - GET /health                            - 健康检查
//   - GET /debug/pprof/*                     - Go pprof 端点（可选）
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-connstats/internal/core/connstats"
	"github.com/dep2p/go-connstats/internal/util/logger"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

var log = logger.Logger("introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// Server 本地自省 HTTP 服务
type Server struct {
	// 依赖组件
	tracker  *connstats.Tracker
	gatherer prometheus.Gatherer // 可选
	clk      clock.Clock

	// 配置
	addr        string
	enablePprof bool

	// HTTP 服务器
	server   *http.Server
	listener net.Listener

	// 状态
	running bool
	mu      sync.Mutex
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Tracker 必需的连接跟踪器
	Tracker *connstats.Tracker

	// Gatherer 可选的指标来源，为 nil 时不挂载 /metrics
	Gatherer prometheus.Gatherer

	// EnablePprof 是否挂载 /debug/pprof
	EnablePprof bool

	// Clock 可选的时间源
	Clock clock.Clock
}

// New 创建自省服务
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Server{
		tracker:     cfg.Tracker,
		gatherer:    cfg.Gatherer,
		clk:         clk,
		addr:        addr,
		enablePprof: cfg.EnablePprof,
	}
}

// Handler 返回路由，不启动监听
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// 统计端点
	mux.HandleFunc("GET /debug/connstats", s.handleOverview)
	mux.HandleFunc("GET /debug/connstats/connections", s.handleConnections)
	mux.HandleFunc("GET /debug/connstats/connections/{id}", s.handleConnection)
	mux.HandleFunc("GET /debug/connstats/closed", s.handleClosed)

	// 指标端点
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// pprof 端点
	if s.enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	// 健康检查
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// 创建监听器
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	// 创建 HTTP 服务器
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 启动服务
	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("自省服务异常退出", "error", err)
		}
	}(s.server)

	s.running = true
	log.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	log.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// OverviewResponse 全局统计响应
type OverviewResponse struct {
	Timestamp   time.Time              `json:"timestamp"`
	Totals      connstatsif.Totals     `json:"totals"`
	Count       int                    `json:"count"`
	Connections []connstatsif.Snapshot `json:"connections"`
	Closed      int                    `json:"closed"`
}

// ConnectionResponse 单连接响应
type ConnectionResponse struct {
	connstatsif.Snapshot

	// Closed 是否来自已关闭历史
	Closed bool `json:"closed"`
}

// handleOverview 处理全局统计请求
func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	if !s.trackerAvailable(w) {
		return
	}
	conns := s.tracker.Connections()
	s.writeJSON(w, OverviewResponse{
		Timestamp:   s.clk.Now(),
		Totals:      s.tracker.Registry().Totals(),
		Count:       len(conns),
		Connections: conns,
		Closed:      len(s.tracker.Closed()),
	})
}

// handleConnections 处理连接列表请求
func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	if !s.trackerAvailable(w) {
		return
	}
	s.writeJSON(w, nonNil(s.tracker.Connections()))
}

// handleConnection 处理单连接请求
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	if !s.trackerAvailable(w) {
		return
	}
	id := r.PathValue("id")

	if stat, ok := s.tracker.Get(id); ok {
		s.writeJSON(w, ConnectionResponse{Snapshot: stat.Snapshot()})
		return
	}
	if snap, ok := s.tracker.ClosedSnapshot(id); ok {
		s.writeJSON(w, ConnectionResponse{Snapshot: snap, Closed: true})
		return
	}

	http.Error(w, "Connection not found", http.StatusNotFound)
}

// handleClosed 处理已关闭连接请求
func (s *Server) handleClosed(w http.ResponseWriter, _ *http.Request) {
	if !s.trackerAvailable(w) {
		return
	}
	s.writeJSON(w, nonNil(s.tracker.Closed()))
}

// handleHealth 处理健康检查请求
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := struct {
		Status      string    `json:"status"`
		Timestamp   time.Time `json:"timestamp"`
		Connections int       `json:"connections"`
	}{
		Status:    "ok",
		Timestamp: s.clk.Now(),
	}

	// 检查核心组件
	if s.tracker == nil {
		health.Status = "degraded"
	} else {
		health.Connections = s.tracker.Count()
	}

	s.writeJSON(w, health)
}

// ============================================================================
//                              辅助方法
// ============================================================================

// trackerAvailable 跟踪器不可用时返回 503
func (s *Server) trackerAvailable(w http.ResponseWriter) bool {
	if s.tracker == nil {
		http.Error(w, "Tracker not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// nonNil 空列表编码为 []
func nonNil(snaps []connstatsif.Snapshot) []connstatsif.Snapshot {
	if snaps == nil {
		return []connstatsif.Snapshot{}
	}
	return snaps
}

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		log.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
