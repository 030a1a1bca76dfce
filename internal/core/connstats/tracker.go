package connstats

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"github.com/dep2p/go-connstats/internal/core/eventbus"
	"github.com/dep2p/go-connstats/internal/util/logger"
	connstatsif "github.com/dep2p/go-connstats/pkg/interfaces/connstats"
)

// 包级别日志实例
var log = logger.Logger("connstats")

// ErrNotFound 连接不存在
var ErrNotFound = errors.New("connection not tracked")

// ============================================================================
//                              连接跟踪器
// ============================================================================

// Tracker 跟踪当前所有连接的统计
//
// 连接关闭后其最终快照进入有界的已关闭历史，全局总量保持不变。
type Tracker struct {
	cfg      connstatsif.Config
	registry *Registry
	clk      clock.Clock

	mu    sync.RWMutex
	conns map[string]*Statistic

	// closed 最近关闭的连接快照，ClosedHistory 为 0 时为 nil
	closed *lru.Cache[string, connstatsif.Snapshot]

	bus      *eventbus.Bus
	notifier *Notifier
	openedEm *eventbus.Emitter[connstatsif.EvtConnectionOpened]
	closedEm *eventbus.Emitter[connstatsif.EvtConnectionClosed]
}

// NewTracker 创建连接跟踪器
//
// registry 为 nil 时创建新的 Registry。传入 WithEventBus 时发布
// EvtConnectionOpened、EvtConnectionClosed 与 EvtStatisticUpdated。
//
// cfg 按原样使用，零值 Config 关闭按类型的消息计数且不保留已关闭历史。
// 需要默认行为时从 connstatsif.DefaultConfig() 开始修改。
func NewTracker(registry *Registry, cfg connstatsif.Config, opts ...Option) (*Tracker, error) {
	o := applyOptions(opts)
	if registry == nil {
		registry = NewRegistry(WithClock(o.clock))
	}

	t := &Tracker{
		cfg:      cfg,
		registry: registry,
		clk:      o.clock,
		conns:    make(map[string]*Statistic),
	}

	if cfg.ClosedHistory > 0 {
		cache, err := lru.New[string, connstatsif.Snapshot](cfg.ClosedHistory)
		if err != nil {
			return nil, fmt.Errorf("create closed history: %w", err)
		}
		t.closed = cache
	}

	if o.bus != nil {
		if err := t.attachBus(o.bus); err != nil {
			return nil, multierr.Append(err, t.Close())
		}
	}

	return t, nil
}

func (t *Tracker) attachBus(bus *eventbus.Bus) error {
	t.bus = bus
	var err error
	if t.notifier, err = NewNotifier(bus); err != nil {
		return fmt.Errorf("create update notifier: %w", err)
	}
	if t.openedEm, err = eventbus.NewEmitter[connstatsif.EvtConnectionOpened](bus); err != nil {
		return fmt.Errorf("create opened emitter: %w", err)
	}
	if t.closedEm, err = eventbus.NewEmitter[connstatsif.EvtConnectionClosed](bus); err != nil {
		return fmt.Errorf("create closed emitter: %w", err)
	}
	return nil
}

// Open 开始跟踪一个新连接并返回其统计
func (t *Tracker) Open(remote string) *Statistic {
	stat := NewStatistic(t.registry,
		WithID(uuid.NewString()),
		WithRemote(remote),
		WithClock(t.clk),
		WithMessageTracking(t.cfg.TrackMessages),
		WithNotifier(t.notifier),
	)

	t.mu.Lock()
	t.conns[stat.ID()] = stat
	t.mu.Unlock()

	if t.openedEm != nil {
		_ = t.openedEm.Emit(connstatsif.EvtConnectionOpened{ConnID: stat.ID(), Remote: remote})
	}
	log.Debug("开始跟踪连接", "conn", stat.ID(), "remote", remote)
	return stat
}

// DroppedUpdates 返回慢订阅者丢弃的 EvtStatisticUpdated 数
//
// 未连接事件总线时返回 0。
func (t *Tracker) DroppedUpdates() int64 {
	if t.bus == nil {
		return 0
	}
	return eventbus.Dropped[connstatsif.EvtStatisticUpdated](t.bus)
}

// Get 返回正在跟踪的连接统计
func (t *Tracker) Get(id string) (*Statistic, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stat, ok := t.conns[id]
	return stat, ok
}

// CloseConnection 停止跟踪连接，返回最终快照
//
// 连接的字节数已计入全局总量，不会扣回。
func (t *Tracker) CloseConnection(id string) (connstatsif.Snapshot, error) {
	t.mu.Lock()
	stat, ok := t.conns[id]
	delete(t.conns, id)
	t.mu.Unlock()

	if !ok {
		return connstatsif.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	final := stat.Snapshot()
	if t.closed != nil {
		t.closed.Add(id, final)
	}
	if t.closedEm != nil {
		_ = t.closedEm.Emit(connstatsif.EvtConnectionClosed{ConnID: id, Remote: final.Remote, Final: final})
	}

	log.Debug("停止跟踪连接",
		"conn", id,
		"remote", final.Remote,
		"sent", final.SentBytes,
		"received", final.ReceivedBytes,
	)
	return final, nil
}

// Count 返回正在跟踪的连接数
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Registry 返回全局统计
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// Config 返回跟踪器配置
func (t *Tracker) Config() connstatsif.Config {
	return t.cfg
}

// Connections 返回所有连接的快照，按创建时间排序
func (t *Tracker) Connections() []connstatsif.Snapshot {
	snaps := t.snapshots()
	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].CreationTime.Equal(snaps[j].CreationTime) {
			return snaps[i].ID < snaps[j].ID
		}
		return snaps[i].CreationTime.Before(snaps[j].CreationTime)
	})
	return snaps
}

// Idle 返回超过 threshold 没有活动的连接快照，按空闲时长降序
func (t *Tracker) Idle(threshold time.Duration) []connstatsif.Snapshot {
	var idle []connstatsif.Snapshot
	for _, snap := range t.snapshots() {
		if snap.LastActivityAge >= threshold {
			idle = append(idle, snap)
		}
	}
	sort.SliceStable(idle, func(i, j int) bool {
		return idle[i].LastActivityAge > idle[j].LastActivityAge
	})
	return idle
}

// TopConnections 返回总流量最大的 n 个连接
func (t *Tracker) TopConnections(n int) []connstatsif.Snapshot {
	if n <= 0 {
		return nil
	}
	snaps := t.snapshots()
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].TotalBytes() > snaps[j].TotalBytes()
	})
	if n < len(snaps) {
		snaps = snaps[:n]
	}
	return snaps
}

// Closed 返回最近关闭的连接快照，从旧到新
func (t *Tracker) Closed() []connstatsif.Snapshot {
	if t.closed == nil {
		return nil
	}
	return t.closed.Values()
}

// ClosedSnapshot 返回指定已关闭连接的最终快照
func (t *Tracker) ClosedSnapshot(id string) (connstatsif.Snapshot, bool) {
	if t.closed == nil {
		return connstatsif.Snapshot{}, false
	}
	return t.closed.Peek(id)
}

// Close 释放事件发射器
//
// 已打开的连接统计仍可继续使用，只是不再发布事件。
func (t *Tracker) Close() error {
	var err error
	err = multierr.Append(err, t.notifier.Close())
	if t.openedEm != nil {
		err = multierr.Append(err, t.openedEm.Close())
	}
	if t.closedEm != nil {
		err = multierr.Append(err, t.closedEm.Close())
	}
	return err
}

func (t *Tracker) snapshots() []connstatsif.Snapshot {
	t.mu.RLock()
	stats := make([]*Statistic, 0, len(t.conns))
	for _, stat := range t.conns {
		stats = append(stats, stat)
	}
	t.mu.RUnlock()

	snaps := make([]connstatsif.Snapshot, 0, len(stats))
	for _, stat := range stats {
		snaps = append(snaps, stat.Snapshot())
	}
	return snaps
}
