package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// blockConn 的写永远卡住，用来填满发送缓冲
type blockConn struct {
	started chan struct{} // 写泵进入 WriteMessage 时发信号
	release chan struct{}
}

func newBlockConn() *blockConn {
	return &blockConn{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (c *blockConn) WriteMessage(int, []byte) error {
	c.started <- struct{}{}
	<-c.release
	return nil
}

func (c *blockConn) SetWriteDeadline(time.Time) error { return nil }
func (c *blockConn) Close() error                     { return nil }

func TestSessionSendDropsWhenBufferFull(t *testing.T) {
	conn := newBlockConn()
	sess := NewSessionBuffered(conn, 1, time.Second)
	defer func() {
		close(conn.release)
		sess.Close()
	}()

	require.True(t, sess.Send([]byte("a")))
	// 等写泵取走第一帧并卡在写上，缓冲此刻为空
	select {
	case <-conn.started:
	case <-time.After(time.Second):
		t.Fatal("write pump never picked up frame")
	}

	require.True(t, sess.Send([]byte("b"))) // 填满缓冲
	require.False(t, sess.Send([]byte("c")), "full buffer must drop, not block")
}

func TestSessionCloseIdempotent(t *testing.T) {
	conn := &fakeConn{}
	sess := NewSession(conn)

	require.False(t, sess.Closed())
	sess.Close()
	sess.Close()
	require.True(t, sess.Closed())
	require.False(t, sess.Send([]byte("x")), "send after close must refuse")
}

func TestSessionWriteFailureClosesSession(t *testing.T) {
	conn := &fakeConn{fail: true}
	sess := NewSession(conn)

	sess.Send([]byte("x"))
	require.Eventually(t, sess.Closed, time.Second, 2*time.Millisecond)
}

func TestSessionBindUser(t *testing.T) {
	sess := NewSession(&fakeConn{})
	defer sess.Close()

	require.Empty(t, sess.UserID())
	sess.bindUser("alice")
	require.Equal(t, "alice", sess.UserID())
}
