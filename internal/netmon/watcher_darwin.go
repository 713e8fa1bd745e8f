//go:build darwin

package netmon

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Routing message types that signal link or address churn.
const (
	rtmNewAddr = 0x0c // RTM_NEWADDR
	rtmDelAddr = 0x0d // RTM_DELADDR
	rtmIfInfo  = 0x0e // RTM_IFINFO
)

type darwinWatcher struct{}

// NewWatcher creates a macOS watcher backed by an AF_ROUTE raw socket.
func NewWatcher() Watcher {
	return &darwinWatcher{}
}

func (w *darwinWatcher) Start(ctx context.Context, notify func()) error {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return err
	}

	// Closing the socket unblocks the read when ctx is cancelled.
	go func() {
		<-ctx.Done()
		unix.Close(fd)
	}()

	buf := make([]byte, 4096)

	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.WithError(err).Warn("Error reading from route socket")
				continue
			}
		}

		// if_msghdr / ifa_msghdr both carry the type in byte 3.
		if n < 4 {
			continue
		}

		switch buf[3] {
		case rtmIfInfo, rtmNewAddr, rtmDelAddr:
			notify()
		}
	}
}
