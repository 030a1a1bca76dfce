// Package main 提供 connstats 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-connstats"
	"github.com/dep2p/go-connstats/config"
	"github.com/dep2p/go-connstats/internal/util/logger"
)

var log = logger.Logger("connstats/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖（「这次运行」想怎么跑）
//   JSON 配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径")
	preset     = flag.String("preset", "", "预设配置 (default/server/minimal)")
	addr       = flag.String("addr", "", "自省服务监听地址，设置后启用自省服务")
	logFile    = flag.String("log", "", "日志文件路径")
	logLevel   = flag.String("log-level", "", "全局日志级别 (debug/info/warn/error)")

	demoConns    = flag.Int("demo", 0, "本地回环演示连接数（0 = 不启用）")
	demoInterval = flag.Duration("demo-interval", time.Second, "演示连接的 Ping 间隔")

	printConfig = flag.Bool("print-config", false, "打印最终配置并退出")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(connstats.VersionInfo())
		return nil
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	if *printConfig {
		data, err := config.ToJSON(cfg)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	svc, err := connstats.New(connstats.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("创建服务失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📦 %s\n", connstats.VersionInfo())
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	if a := svc.Addr(); a != "" {
		fmt.Printf("自省服务: http://%s/debug/connstats\n", a)
	}

	g, gctx := errgroup.WithContext(ctx)
	if *demoConns > 0 {
		g.Go(func() error {
			return runDemo(gctx, svc.Tracker(), *demoConns, *demoInterval)
		})
	}

	fmt.Println("服务已启动，按 Ctrl+C 退出")
	<-gctx.Done()
	demoErr := g.Wait()

	fmt.Println("\n正在关闭服务...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Stop(stopCtx); err != nil {
		return fmt.Errorf("停止失败: %w", err)
	}

	totals := svc.Registry().Totals()
	log.Info("最终统计",
		"totalSent", totals.TotalSent,
		"totalReceived", totals.TotalReceived,
	)
	fmt.Printf("发送 %d 字节，接收 %d 字节\n", totals.TotalSent, totals.TotalReceived)
	return demoErr
}

// buildConfig 构建配置
//
// 优先级（从高到低）：命令行参数 > 预设 > 配置文件 > 默认值
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	if err := config.ApplyPreset(cfg, *preset); err != nil {
		return nil, err
	}

	if *addr != "" {
		cfg.Introspect.Enabled = true
		cfg.Introspect.Addr = *addr
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
