package connstats

import (
	"net"
)

// ============================================================================
//                              计量连接
// ============================================================================

// meteredConn 在每次读写时记录字节数与活动时间
type meteredConn struct {
	net.Conn
	stat *Statistic
}

// WrapConn 包装连接，读写的字节数记入 stat
//
// 读写返回 0 字节时不更新活动时间。
func WrapConn(c net.Conn, stat *Statistic) net.Conn {
	return &meteredConn{Conn: c, stat: stat}
}

// Read 读取并记录接收字节数
func (c *meteredConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.stat.AddReceivedBytes(int64(n))
		c.stat.UpdateLastActivity()
	}
	return n, err
}

// Write 写入并记录发送字节数
func (c *meteredConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.stat.AddSentBytes(int64(n))
		c.stat.UpdateLastActivity()
	}
	return n, err
}

// Statistic 返回连接的统计
func (c *meteredConn) Statistic() *Statistic {
	return c.stat
}

// StatisticOf 返回由 WrapConn 包装的连接的统计
func StatisticOf(c net.Conn) (*Statistic, bool) {
	mc, ok := c.(*meteredConn)
	if !ok {
		return nil, false
	}
	return mc.stat, true
}
