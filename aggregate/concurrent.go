package aggregate

import (
	"context"
	"io"
)

type maybeBatch[K comparable] struct {
	batch Batch[K]
	err   error
}

// Concurrent wraps a Source and reads ahead on a separate goroutine, so
// producing the next batch overlaps with folding the current one. The
// buffer bounds how many batches are in flight; one or two is usually
// enough.
type Concurrent[K comparable] struct {
	source Source[K]
	buffer chan maybeBatch[K]

	ctx    context.Context
	cancel context.CancelFunc
}

func NewConcurrent[K comparable](source Source[K], bufferSize int) *Concurrent[K] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	c := &Concurrent[K]{
		source: source,
		buffer: make(chan maybeBatch[K], bufferSize),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.pullNextBatch()

	return c
}

func (c *Concurrent[K]) NextBatch() (Batch[K], error) {
	next, ok := <-c.buffer
	if !ok {
		return nil, io.EOF
	}
	return next.batch, next.err
}

func (c *Concurrent[K]) pullNextBatch() {
	defer close(c.buffer)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		batch, err := c.source.NextBatch()
		select {
		case <-c.ctx.Done():
			return
		case c.buffer <- maybeBatch[K]{batch: batch, err: err}:
		}
		// Stop reading ahead once the source is exhausted or failed.
		// RecordErrors are recoverable, the source resumes after them.
		if err != nil {
			if _, ok := err.(*RecordError); ok {
				continue
			}
			return
		}
	}
}

func (c *Concurrent[K]) BatchSize() int {
	return c.source.BatchSize()
}

func (c *Concurrent[K]) Close() error {
	c.cancel()
	for range c.buffer {
	}
	return c.source.Close()
}
