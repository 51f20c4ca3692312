package skeleton

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// BridgeSource implements Source by running an external sensor bridge process
// that prints one JSON frame per line on stdout.
type BridgeSource struct {
	config Config
	cmd    *exec.Cmd
	stream *StreamSource
	mu     sync.Mutex
}

// NewBridgeSource creates a bridge source. The process is started lazily on
// the first call to Next.
func NewBridgeSource(config Config) (*BridgeSource, error) {
	if len(config.Command) == 0 {
		return nil, errors.New("bridge command not configured")
	}
	if _, err := exec.LookPath(config.Command[0]); err != nil {
		return nil, fmt.Errorf("bridge executable: %w", err)
	}

	return &BridgeSource{config: config}, nil
}

// Next returns the next frame reported by the bridge.
func (b *BridgeSource) Next(ctx context.Context) (Frame, error) {
	b.mu.Lock()
	if err := b.ensureStarted(); err != nil {
		b.mu.Unlock()
		return Frame{}, err
	}
	stream := b.stream
	b.mu.Unlock()

	return stream.Next(ctx)
}

// Close shuts down the bridge process.
func (b *BridgeSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdown()
}

func (b *BridgeSource) ensureStarted() error {
	if b.cmd != nil {
		return nil
	}

	cmd := exec.Command(b.config.Command[0], b.config.Command[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Bridge diagnostics go straight to our stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start sensor bridge: %w", err)
	}

	b.cmd = cmd
	b.stream = NewStreamSource(stdout, b.config)

	return nil
}

func (b *BridgeSource) shutdown() error {
	if b.cmd == nil {
		return nil
	}

	b.stream.Close()
	if b.cmd.Process != nil {
		b.cmd.Process.Kill()
	}

	err := b.cmd.Wait()
	b.cmd = nil
	b.stream = nil

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed on purpose
		return nil
	}
	return err
}
