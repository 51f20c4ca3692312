package skeleton

import "io"

// newBlockingPipe returns a reader that blocks until the writer is closed.
func newBlockingPipe() (*io.PipeReader, *io.PipeWriter) {
	return io.Pipe()
}
