// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

// Conn 是 ZooKeeper 连接，并跟踪会话是否过期
type Conn struct {
	*zk.Conn
	expired chan struct{}
}

// Connect 连接 ZooKeeper 集群
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "connect zookeeper %v", servers)
	}
	c := &Conn{Conn: conn, expired: make(chan struct{})}
	go watchSession(events, c.expired)
	return c, nil
}

// Expired 在会话过期后关闭。会话过期时服务端已删除本会话的全部临时节点
func (c *Conn) Expired() <-chan struct{} {
	return c.expired
}

// watchSession 消费会话事件直到连接关闭，第一次收到 StateExpired 时关闭 expired
func watchSession(events <-chan zk.Event, expired chan struct{}) {
	var once sync.Once
	for ev := range events {
		if ev.Type == zk.EventSession && ev.State == zk.StateExpired {
			once.Do(func() { close(expired) })
		}
	}
}

// DistributedLock 是基于临时顺序节点的分布式锁。
// 账本服务用它保证同一时刻只有一个实例作为写入者。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的路径，例如 /distributed_locks/associate-ledger-writer
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建锁实例，并确保锁路径存在
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		exists, _, err := conn.Exists(p)
		if err != nil {
			return nil, errors.Wrapf(err, "check lock node %s", p)
		}
		if exists {
			continue
		}
		if _, err := conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return nil, errors.Wrapf(err, "create lock node %s", p)
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 阻塞直到获取锁或 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")

	for {
		// 2. 获取所有子节点并按序号排序。受保护节点带有 GUID 前缀，只比较序号部分
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "list lock children")
		}
		sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

		// 3. 自己是最小的节点则获得锁
		idx := -1
		for i, child := range children {
			if child == myNodeName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.Errorf("lock node %s disappeared", myNodeName)
		}
		if idx == 0 {
			return nil
		}

		// 4. 监听前一个节点
		exists, _, eventChan, err := l.conn.ExistsW(l.path + "/" + children[idx-1])
		if err != nil {
			return errors.Wrap(err, "watch previous lock node")
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
		case <-ctx.Done():
			_ = l.Unlock()
			return ctx.Err()
		}
	}
}

// Lost 在持有锁的会话过期后关闭，此时其他实例可能已经获得了锁
func (l *DistributedLock) Lost() <-chan struct{} {
	return l.conn.Expired()
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	if err := l.conn.Delete(l.lockNode, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "delete lock node")
	}
	l.lockNode = ""
	return nil
}

func sequenceOf(node string) string {
	if i := strings.LastIndex(node, "lock-"); i >= 0 {
		return node[i+len("lock-"):]
	}
	return node
}
