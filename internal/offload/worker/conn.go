package worker

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/offload/bridge"
)

// Conn is the client end of a running worker. It implements
// bridge.Transport; Close terminates the worker and waits for it.
type Conn struct {
	*bridge.Stream

	closeOnce sync.Once
	closeErr  error
	wait      func() error
}

// Close shuts the worker down
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		err := c.Stream.Close()
		if c.wait != nil {
			err = errors.Join(err, c.wait())
		}
		c.closeErr = err
	})
	return c.closeErr
}

// StartLocal runs a worker on a goroutine connected through an in-memory pipe
func StartLocal(ctx context.Context, opts ...Option) *Conn {
	client, server := bridge.Pipe()
	w := New(opts...)

	done := make(chan error, 1)
	go func() {
		done <- w.Serve(ctx, server)
		_ = server.Close()
	}()

	return &Conn{
		Stream: client,
		wait:   func() error { return <-done },
	}
}

// StartProcess launches path with args as a child worker speaking the
// protocol on its stdin and stdout. Stderr is left to the child's logger.
func StartProcess(ctx context.Context, path string, args ...string) (*Conn, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.New(err).
			Component(componentWorker).
			Category(errors.CategorySystem).
			Context("operation", "start_worker_process").
			Context("path", path).
			Build()
	}

	GetLogger().Info("worker process started",
		logger.String("path", path),
		logger.Int("pid", cmd.Process.Pid))

	return &Conn{
		Stream: bridge.NewStream(stdout, stdin),
		wait: func() error {
			err := cmd.Wait()
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && ctx.Err() != nil {
				// killed by context cancellation
				return nil
			}
			return err
		},
	}, nil
}
