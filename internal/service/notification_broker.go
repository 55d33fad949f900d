package service

import (
	"context"
	"sync"

	"github.com/arunvijo/SmartOPDAgent/pkg/redis"
)

// Broker 通知变更信号的广播通道
// 信号不携带内容，订阅方收到后重新查询完整列表
type Broker interface {
	Publish(ctx context.Context, userID string) error
	// Subscribe ctx 取消时退订并关闭返回的 channel
	Subscribe(ctx context.Context, userID string) <-chan struct{}
}

// ────────────────────── 进程内实现 ──────────────────────

type memoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewMemoryBroker 进程内广播，Redis 不可用或单实例部署时使用
func NewMemoryBroker() Broker {
	return &memoryBroker{subs: make(map[string]map[chan struct{}]struct{})}
}

func (b *memoryBroker) Publish(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
			// 已有未消费的信号，合并
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(ctx context.Context, userID string) <-chan struct{} {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan struct{}]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[userID], ch)
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// ────────────────────── Redis 实现 ──────────────────────

// pubSub Redis 发布订阅能力，便于测试替换
type pubSub interface {
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) <-chan string
}

type redisBroker struct {
	ps pubSub
}

// NewRedisBroker 基于 Redis 频道 notifications:{userID} 的跨实例广播
func NewRedisBroker(ps pubSub) Broker {
	return &redisBroker{ps: ps}
}

func (b *redisBroker) Publish(ctx context.Context, userID string) error {
	return b.ps.Publish(ctx, redis.NotificationChannel(userID), "changed")
}

func (b *redisBroker) Subscribe(ctx context.Context, userID string) <-chan struct{} {
	in := b.ps.Subscribe(ctx, redis.NotificationChannel(userID))
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		for range in {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out
}
