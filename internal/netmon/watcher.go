package netmon

import "context"

// Watcher is a platform event source for link state churn (netlink on
// Linux, AF_ROUTE on macOS). It does not interpret the messages; it
// calls notify whenever link or address state may have changed and the
// service reconciles against the kernel's interface list.
type Watcher interface {
	// Start blocks until ctx is cancelled or the event source fails,
	// calling notify on every relevant kernel message.
	Start(ctx context.Context, notify func()) error
}
