package locker

import (
	"context"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/orderflow/locks"

// ZKLocker is a Locker backed by ZooKeeper ephemeral-sequential nodes, for
// deployments where more than one order-service instance may touch the same
// order.
type ZKLocker struct {
	conn *zk.Conn
}

// NewZKLocker connects to the ensemble and makes sure the lock root exists.
func NewZKLocker(servers []string, sessionTimeout time.Duration) (*ZKLocker, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect to zookeeper")
	}
	if err := ensurePath(conn, lockRoot); err != nil {
		conn.Close()
		return nil, err
	}
	return &ZKLocker{conn: conn}, nil
}

// Acquire takes the distributed lock for key. The zk recipe blocks without
// honoring ctx, so the wait runs in a goroutine and an expired ctx abandons
// (and then releases) the lock.
func (z *ZKLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock := zk.NewLock(z.conn, lockRoot+"/"+key, zk.WorldACL(zk.PermAll))

	done := make(chan error, 1)
	go func() { done <- lock.Lock() }()

	select {
	case err := <-done:
		if err != nil {
			return nil, errors.Wrapf(err, "acquire zk lock %s", key)
		}
		return func() { _ = lock.Unlock() }, nil
	case <-ctx.Done():
		go func() {
			if err := <-done; err == nil {
				_ = lock.Unlock()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close tears down the ZooKeeper session, releasing any ephemeral nodes.
func (z *ZKLocker) Close() {
	z.conn.Close()
}

func ensurePath(conn *zk.Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "check zk path %s", path)
	}
	if exists {
		return nil
	}
	// Build the chain one level at a time; another instance may race us.
	var cur string
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		cur += "/" + part
		_, err := conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return errors.Wrapf(err, "create zk path %s", cur)
		}
	}
	return nil
}
