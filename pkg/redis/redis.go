package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("缓存未命中")

// Client Redis 客户端封装
// 用于 Token 黑名单、档案缓存、验证码限流与通知变更广播
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromGoRedis 包装已有的 go-redis 客户端
func NewFromGoRedis(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 档案缓存 ──

const profilePrefix = "profile:"

// GetProfile 读取缓存的档案 JSON；未命中返回 ErrCacheMiss
func (c *Client) GetProfile(ctx context.Context, userID string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, profilePrefix+userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

// SetProfile 写入档案缓存
func (c *Client) SetProfile(ctx context.Context, userID string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, profilePrefix+userID, data, ttl).Err()
}

// DeleteProfile 删除档案缓存，档案变更后调用
func (c *Client) DeleteProfile(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, profilePrefix+userID).Err()
}

// ── 滑动窗口限流 ──

const rateLimitPrefix = "ratelimit:"

// CheckRateLimit 滑动窗口限流：window 内最多 limit 次，超出返回 false
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)
	redisKey := rateLimitPrefix + key

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	count := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if count.Val() >= int64(limit) {
		// 超限请求不占用配额
		c.rdb.ZRem(ctx, redisKey, member)
		return false, nil
	}
	return true, nil
}

// ── 通知变更广播 ──

// NotificationChannel 用户通知变更频道
func NotificationChannel(userID string) string {
	return "notifications:" + userID
}

// Publish 发布消息
func (c *Client) Publish(ctx context.Context, channel, payload string) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe 订阅频道，ctx 取消时自动退订并关闭返回的 channel
func (c *Client) Subscribe(ctx context.Context, channel string) <-chan string {
	sub := c.rdb.Subscribe(ctx, channel)
	out := make(chan string, 1)

	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				c.logger.Warn("退订失败", zap.String("channel", channel), zap.Error(err))
			}
		}()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// 消费方尚未处理上一条信号，合并
				}
			}
		}
	}()

	return out
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
