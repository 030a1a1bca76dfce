package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-connstats"
)

// 演示协议的消息类型
const (
	msgPing connstats.MessageType = "Ping"
	msgPong connstats.MessageType = "Pong"
)

// runDemo 在本地回环上运行 Ping/Pong 流量
//
// 服务端与客户端两侧的连接都被跟踪，ctx 取消后返回 nil。
func runDemo(ctx context.Context, tracker *connstats.Tracker, conns int, interval time.Duration) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("demo listen: %w", err)
	}
	log.Info("演示流量已启动", "addr", ln.Addr().String(), "conns", conns, "interval", interval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		return serveEcho(ctx, g, ln, tracker)
	})
	for i := 0; i < conns; i++ {
		g.Go(func() error {
			return runPinger(ctx, ln.Addr().String(), tracker, interval)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// serveEcho 接受连接，对每行 ping 回复 pong
func serveEcho(ctx context.Context, g *errgroup.Group, ln net.Listener, tracker *connstats.Tracker) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("demo accept: %w", err)
		}

		g.Go(func() error {
			stat := tracker.Open(raw.RemoteAddr().String())
			defer func() { _, _ = tracker.CloseConnection(stat.ID()) }()
			return echo(ctx, connstats.WrapConn(raw, stat), stat)
		})
	}
}

func echo(ctx context.Context, conn net.Conn, stat *connstats.Statistic) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		if _, err := r.ReadString('\n'); err != nil {
			return ignoreClosed(ctx, err)
		}
		stat.AddReceivedMessage(msgPing)

		if _, err := conn.Write([]byte("pong\n")); err != nil {
			return ignoreClosed(ctx, err)
		}
		stat.AddSentMessage(msgPong)
	}
}

// runPinger 周期性发送 ping 并记录往返时延
func runPinger(ctx context.Context, addr string, tracker *connstats.Tracker, interval time.Duration) error {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ignoreClosed(ctx, fmt.Errorf("demo dial: %w", err))
	}

	stat := tracker.Open(addr)
	defer func() { _, _ = tracker.CloseConnection(stat.ID()) }()

	conn := connstats.WrapConn(raw, stat)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	r := bufio.NewReader(conn)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		if _, err := conn.Write([]byte("ping\n")); err != nil {
			return ignoreClosed(ctx, err)
		}
		stat.AddSentMessage(msgPing)

		if _, err := r.ReadString('\n'); err != nil {
			return ignoreClosed(ctx, err)
		}
		stat.AddReceivedMessage(msgPong)
		stat.SetRoundTripTime(time.Since(start).Milliseconds())
	}
}

// ignoreClosed ctx 已取消时连接错误视为正常退出
func ignoreClosed(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
