//go:build linux

package netmon

import (
	"context"

	"github.com/vishvananda/netlink"
)

type linuxWatcher struct{}

// NewWatcher creates a Linux watcher backed by netlink link and
// address subscriptions.
func NewWatcher() Watcher {
	return &linuxWatcher{}
}

func (w *linuxWatcher) Start(ctx context.Context, notify func()) error {
	linkCh := make(chan netlink.LinkUpdate)
	linkDone := make(chan struct{})

	addrCh := make(chan netlink.AddrUpdate)
	addrDone := make(chan struct{})

	if err := netlink.LinkSubscribe(linkCh, linkDone); err != nil {
		return err
	}

	if err := netlink.AddrSubscribe(addrCh, addrDone); err != nil {
		close(linkDone)
		return err
	}

	defer close(linkDone)
	defer close(addrDone)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-linkCh:
			notify()

		case <-addrCh:
			notify()
		}
	}
}
