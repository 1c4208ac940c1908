package apiclient

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

var _ ports.Navigator = (*WriterNavigator)(nil)

// WriterNavigator is the command-line Navigator: it tells the user where to go instead of
// moving them there.
type WriterNavigator struct {
	mu sync.Mutex
	W  io.Writer
}

func (n *WriterNavigator) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.W == nil {
		return
	}
	_, _ = fmt.Fprintf(n.W, "Your session has ended (%s). Run `agrimarket login` to sign in again.\n", path)
}
