// internal/pkg/redis/client.go
package redis

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 客户端和预加载的 Lua 脚本
type Client struct {
	rdb goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 创建客户端。addrs 格式为 "host1:port1,host2:port2"，
// 多个地址时使用集群模式。
func NewClient(ctx context.Context, addrs, password string) (*Client, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    strings.Split(addrs, ","),
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "ping redis at %s", addrs)
	}
	return NewClientFrom(rdb), nil
}

// NewClientFrom 用已有的 go-redis 客户端创建 Client
func NewClientFrom(rdb goredis.UniversalClient) *Client {
	return &Client{rdb: rdb, scripts: map[string]*goredis.Script{}}
}

// GetClient 返回底层客户端
func (c *Client) GetClient() goredis.UniversalClient {
	return c.rdb
}

// LoadScriptFromContent 注册一个 Lua 脚本并预加载到服务端
func (c *Client) LoadScriptFromContent(ctx context.Context, name, src string) error {
	script := goredis.NewScript(src)
	if err := script.Load(ctx, c.rdb).Err(); err != nil {
		return errors.Wrapf(err, "load redis script %s", name)
	}
	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 执行已注册的脚本，服务端缓存丢失时自动回退到 EVAL
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("redis script %s not loaded", name)
	}
	result, err := script.Run(ctx, c.rdb, keys, args...).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, errors.Wrapf(err, "run redis script %s", name)
	}
	return result, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
