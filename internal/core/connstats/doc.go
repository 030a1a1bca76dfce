// Package connstats 实现连接级统计
//
// 每个网络连接持有一个 Statistic，记录：
//   - 发送/接收字节数（同时累加到进程级 Registry）
//   - 按消息类型的发送/接收计数
//   - 最近一次往返时延（覆盖写入）
//   - 创建时间与最近活动时间
//
// # 快速开始
//
//	registry := connstats.NewRegistry()
//	stat := connstats.NewStatistic(registry, connstats.WithRemote(addr))
//
//	stat.AddSentBytes(100)
//	stat.AddSentMessage("Ping")
//	stat.SetRoundTripTime(120)
//	stat.UpdateLastActivity()
//
//	registry.TotalSent() // 100
//
// # 连接跟踪
//
//	tracker, _ := connstats.NewTracker(registry, connstatsif.DefaultConfig())
//	stat := tracker.Open("1.2.3.4:4001")
//	conn = connstats.WrapConn(conn, stat)  // Read/Write 自动计数
//	...
//	tracker.CloseConnection(stat.ID())     // 最终快照进入已关闭历史
//
// # 并发安全
//
// 所有计数器都是 64 位原子量，记录与读取不会互相阻塞：
//   - 字节计数：本地与全局各自原子累加，不丢失更新
//   - 消息计数：读多写少的 RWMutex 保护键集合，计数本身为原子量
//   - 最近活动时间：CAS 只向前推进
//
// 单个字段的读取是原子的；一次 Snapshot 不保证跨字段一致。
//
// # 输入约定
//
// 记录操作不校验参数：负的字节数或 RTT 原样保存，任何输入都不会 panic。
package connstats
