// Package connstats 提供网络连接统计服务
//
// 服务为每个网络连接维护一份统计（发送/接收字节数、按类型的消息计数、
// 往返时延、最近活动时间与创建时间），并维护进程级的发送/接收总量。
//
// # 快速开始
//
//	import "github.com/dep2p/go-connstats"
//
//	svc, err := connstats.New(connstats.WithPreset("server"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop(context.Background())
//
//	// 为新连接创建统计，并包装 net.Conn
//	stat := svc.Tracker().Open(conn.RemoteAddr().String())
//	conn = connstats.WrapConn(conn, stat)
//
//	// 消息层记录消息类型与 RTT
//	stat.AddSentMessage("Ping")
//	stat.SetRoundTripTime(120)
//
//	// 连接关闭
//	svc.Tracker().CloseConnection(stat.ID())
//
// # 组件
//
//   - Tracker: 当前连接的统计与最近关闭的连接快照
//   - Registry: 进程级的发送/接收总量与速率
//   - Reporter: 周期性日志报告
//   - Collector: Prometheus 指标导出
//   - introspect: 本地 JSON 自省服务（/debug/connstats、/metrics、/health）
package connstats
