package internal

import (
	"os"
	"strconv"
	"strings"
)

// DefaultQueueDepth is the fallback handoff queue capacity used when the
// host does not expose a message queue depth limit.
const DefaultQueueDepth = 5

const msgMaxPath = "/proc/sys/fs/mqueue/msg_max"

// QueueDepthHint returns the host's per-queue message limit, the
// historical sizing hint for the producer/worker handoff queue.
//
// On hosts without mqueue support (or outside Linux) it returns
// DefaultQueueDepth.
func QueueDepthHint() int {
	raw, err := os.ReadFile(msgMaxPath)
	if err != nil {
		return DefaultQueueDepth
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || n < 1 {
		return DefaultQueueDepth
	}
	return n
}
