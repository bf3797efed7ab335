//go:build linux
// +build linux

package wlclient

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// errWouldBlock reports a non-blocking read that found no data.
var errWouldBlock = errors.New("wlclient: no data available")

// Pre-allocated buffers for control messages
var controlBufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, unix.CmsgSpace(28*4)) // libwayland's per-message fd limit
	},
}

// fdQueue holds received file descriptors in arrival order
type fdQueue struct {
	mu  sync.Mutex
	fds []int
}

func (q *fdQueue) push(fds ...int) {
	q.mu.Lock()
	q.fds = append(q.fds, fds...)
	q.mu.Unlock()
}

func (q *fdQueue) pop() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fds) == 0 {
		return -1, false
	}
	fd := q.fds[0]
	q.fds = q.fds[1:]
	return fd, true
}

func (q *fdQueue) closeAll() {
	q.mu.Lock()
	fds := q.fds
	q.fds = nil
	q.mu.Unlock()

	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}

// recvmsgWithFDs receives one chunk of socket data. Descriptors passed with
// SCM_RIGHTS are appended to the display's fd queue. Without block, an empty
// socket yields errWouldBlock; with block, the call waits on the runtime
// poller and honours the read deadline.
func (d *Display) recvmsgWithFDs(buf []byte, block bool) (int, error) {
	oob := controlBufferPool.Get().([]byte)
	defer controlBufferPool.Put(oob)

	var n, oobn int
	var rerr error
	err := d.raw.Read(func(fd uintptr) bool {
		for {
			n, oobn, _, _, rerr = unix.Recvmsg(int(fd), buf, oob, unix.MSG_DONTWAIT|unix.MSG_CMSG_CLOEXEC)
			if rerr != unix.EINTR {
				break
			}
		}
		return !(block && rerr == unix.EAGAIN)
	})
	if err != nil {
		return 0, err
	}
	if rerr == unix.EAGAIN {
		return 0, errWouldBlock
	}
	if rerr != nil {
		return 0, rerr
	}

	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return n, fmt.Errorf("parse control message: %w", err)
		}
		for _, scm := range scms {
			if scm.Header.Level != unix.SOL_SOCKET || scm.Header.Type != unix.SCM_RIGHTS {
				continue
			}
			fds, err := unix.ParseUnixRights(&scm)
			if err != nil {
				return n, fmt.Errorf("parse unix rights: %w", err)
			}
			d.fds.push(fds...)
		}
	}

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// sendmsgWithFDs sends a message potentially containing file descriptors.
// The caller holds d.sendMu.
func (d *Display) sendmsgWithFDs(buf []byte, fds []int) error {
	if len(fds) == 0 {
		// Fast path: no FDs to send
		_, err := d.conn.Write(buf)
		return err
	}

	n, _, err := d.conn.WriteMsgUnix(buf, unix.UnixRights(fds...), nil)
	if err != nil {
		return err
	}
	if n < len(buf) {
		_, err = d.conn.Write(buf[n:])
	}
	return err
}

// Readable reports whether the socket has data (or a hangup) waiting,
// without blocking.
func (d *Display) Readable() (bool, error) {
	var ready bool
	var perr error
	err := d.raw.Control(func(fd uintptr) {
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		var n int
		n, perr = unix.Poll(pfd, 0)
		ready = n > 0 && pfd[0].Revents != 0
	})
	if err != nil {
		return false, err
	}
	if perr == unix.EINTR {
		perr = nil
	}
	return ready, perr
}

// SetReadDeadline bounds the blocking reads done by DispatchQueue and
// Roundtrip. A zero value removes the bound.
func (d *Display) SetReadDeadline(t time.Time) error {
	return d.conn.SetReadDeadline(t)
}
