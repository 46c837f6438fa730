package builder

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/mallrec/core"
)

// ErrAlreadyRunning 表示一次重建已在进行中，本次请求被拒绝。
var ErrAlreadyRunning = core.NewDomainError(core.ModuleBuilder, core.ErrorCodeAlreadyRunning, "builder: rebuild already running")

// RebuildCoordinator 保证同一时刻最多一次重建在执行。
//
// 两层互斥：
//   - 进程内：running 标志，拒绝并发调用
//   - 跨进程：Store 上的 TTL 租约（SetNX），持有者崩溃后租约随 TTL
//     自动过期，不会永久卡死后续重建
//
// Store 为 nil 时退化为仅进程内互斥（单实例部署够用）。
type RebuildCoordinator struct {
	// Store 是租约存储，可选
	Store core.KeyValueStore

	// Key 是租约 key，空时取默认值
	Key string

	// TTL 是租约过期时间，<= 0 时取 30 分钟
	TTL time.Duration

	mu      sync.Mutex
	running bool
}

func (c *RebuildCoordinator) key() string {
	if c.Key != "" {
		return c.Key
	}
	return "mall:rebuild:lease"
}

func (c *RebuildCoordinator) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return 30 * time.Minute
}

// TryRun 尝试获取租约并执行 fn；已有重建在执行时返回 ErrAlreadyRunning。
// fn 返回后释放租约（进程内标志立即清除，存储租约主动删除）。
func (c *RebuildCoordinator) TryRun(ctx context.Context, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	if c.Store != nil {
		ok, err := c.Store.SetNX(ctx, c.key(), []byte("1"), int(c.ttl().Seconds()))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyRunning
		}
		// 正常结束主动释放；异常退出依赖 TTL 过期兜底
		defer func() {
			_ = c.Store.Delete(context.WithoutCancel(ctx), c.key())
		}()
	}

	return fn(ctx)
}
