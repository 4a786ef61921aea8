// File: session/flusher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Serialized outbound path. Frames submitted concurrently are queued and
// flushed one at a time in submission order by a single goroutine, so two
// logical writes never produce interleaved wire bytes. Completion is
// signaled through the frame's WriteCallback, never by blocking the
// submitter.

package session

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/extension"
	"github.com/momentics/wscore/protocol"
)

type pendingWrite struct {
	frame *protocol.Frame
	cb    api.WriteCallback
}

type flusher struct {
	stack        *extension.Stack
	generator    *protocol.Generator
	transport    api.Transport
	writeTimeout time.Duration

	// onFatal reports an unrecoverable outbound failure to the session.
	onFatal func(err error)
	// onWrote observes flushed wire bytes for stats.
	onWrote func(n int)

	mu     sync.Mutex
	q      *queue.Queue
	closed bool
	wake   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
	scratch  []byte
}

func newFlusher(stack *extension.Stack, gen *protocol.Generator, tr api.Transport,
	writeTimeout time.Duration, scratchSize int) *flusher {
	return &flusher{
		stack:        stack,
		generator:    gen,
		transport:    tr,
		writeTimeout: writeTimeout,
		q:            queue.New(),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		scratch:      make([]byte, 0, scratchSize),
	}
}

// enqueue submits one logical frame for transmission. Returns an error
// only when the flusher has already shut down; the callback then fires
// with the same error.
func (fl *flusher) enqueue(f *protocol.Frame, cb api.WriteCallback) error {
	fl.mu.Lock()
	if fl.closed {
		fl.mu.Unlock()
		cb.Notify(api.ErrSessionClosed)
		return api.ErrSessionClosed
	}
	fl.q.Add(pendingWrite{frame: f, cb: onceCallback(cb)})
	fl.mu.Unlock()

	select {
	case fl.wake <- struct{}{}:
	default:
	}
	return nil
}

// run drains the queue until shutdown.
func (fl *flusher) run() {
	for {
		select {
		case <-fl.done:
			return
		case <-fl.wake:
		}
		fl.flushPending()
	}
}

func (fl *flusher) flushPending() {
	for {
		fl.mu.Lock()
		if fl.closed || fl.q.Length() == 0 {
			fl.mu.Unlock()
			return
		}
		pw := fl.q.Remove().(pendingWrite)
		fl.mu.Unlock()

		// The outbound extension traversal runs inside the flush
		// goroutine: stateful transforms see frames in submission order.
		if err := fl.stack.ProcessOutgoing(pw.frame, pw.cb, fl.writeFrame); err != nil {
			pw.cb.Notify(err)
			if fl.onFatal != nil {
				fl.onFatal(err)
			}
			return
		}
	}
}

// writeFrame is the transport-side terminus of the outbound pipeline.
func (fl *flusher) writeFrame(f *protocol.Frame, cb api.WriteCallback) error {
	wire, err := fl.generator.Generate(f, fl.scratch[:0])
	if err != nil {
		cb.Notify(err)
		return err
	}
	if cap(wire) > cap(fl.scratch) {
		fl.scratch = wire
	}

	if dt, ok := fl.transport.(api.DeadlineTransport); ok && fl.writeTimeout > 0 {
		_ = dt.SetWriteDeadline(time.Now().Add(fl.writeTimeout))
	}
	if _, err := fl.transport.Write(wire); err != nil {
		// A failed transport write means the peer is gone, not that an
		// extension misbehaved; keep the abnormal classification intact
		// through the outbound pipeline.
		werr := api.NewAbnormalError("transport write failed", err)
		cb.Notify(werr)
		return werr
	}
	if fl.onWrote != nil {
		fl.onWrote(len(wire))
	}
	cb.Notify(nil)
	return nil
}

// shutdown stops the flush loop and fails every pending callback with
// err. Idempotent.
func (fl *flusher) shutdown(err error) {
	fl.stopOnce.Do(func() {
		fl.mu.Lock()
		fl.closed = true
		var pending []pendingWrite
		for fl.q.Length() > 0 {
			pending = append(pending, fl.q.Remove().(pendingWrite))
		}
		fl.mu.Unlock()
		close(fl.done)

		for _, pw := range pending {
			pw.cb.Notify(err)
		}
	})
}

// onceCallback guards a callback against double notification when a frame
// fails partway through the pipeline.
func onceCallback(cb api.WriteCallback) api.WriteCallback {
	if cb == nil {
		return nil
	}
	var once sync.Once
	return func(err error) {
		once.Do(func() { cb(err) })
	}
}
