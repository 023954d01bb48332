package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

// warningNotifier prints notifications to the terminal. Writes are
// serialized because saves report from background goroutines.
type warningNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func newWarningNotifier(out io.Writer) *warningNotifier {
	return &warningNotifier{out: out}
}

func (n *warningNotifier) Notify(_ context.Context, note ports.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	prefix := "warning"
	if note.Level == ports.NotificationInfo {
		prefix = "info"
	}
	if note.Err != nil {
		fmt.Fprintf(n.out, "%s: %s: %v\n", prefix, note.Message, note.Err)
		return
	}
	fmt.Fprintf(n.out, "%s: %s\n", prefix, note.Message)
}
