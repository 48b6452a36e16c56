package transfer

import (
	"context"
	"errors"
	"io"
	"time"

	pion "github.com/pion/webrtc/v4"
)

// Channel is the part of a pion data channel the sender needs.
type Channel interface {
	Send(data []byte) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
	ReadyState() pion.DataChannelState
}

// ChunkSender streams raw binary chunks with buffered-amount backpressure.
type ChunkSender struct {
	channel   Channel
	chunkSize int
	buffer    []byte
	low       chan struct{}
}

// NewChunkSender prepares ch for chunked sends. A non-positive chunkSize
// selects DefaultChunkSize.
func NewChunkSender(ch Channel, chunkSize int) *ChunkSender {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = min(chunkSize, MaxChunkSize)

	s := &ChunkSender{
		channel:   ch,
		chunkSize: chunkSize,
		buffer:    make([]byte, chunkSize),
		low:       make(chan struct{}, 1),
	}

	ch.SetBufferedAmountLowThreshold(LowWaterMark)
	ch.OnBufferedAmountLow(func() {
		select {
		case s.low <- struct{}{}:
		default:
		}
	})
	return s
}

func (s *ChunkSender) IsOpen() bool {
	return s.channel.ReadyState() == pion.DataChannelStateOpen
}

// WaitForWindow blocks while the channel holds more than HighWaterMark
// unsent bytes.
func (s *ChunkSender) WaitForWindow(ctx context.Context) error {
	buffered := s.channel.BufferedAmount()
	if buffered < HighWaterMark {
		return nil
	}

	timer := time.NewTimer(SendTimeout)
	defer timer.Stop()

	for s.channel.BufferedAmount() >= HighWaterMark {
		select {
		case <-s.low:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if s.channel.BufferedAmount() < buffered {
				return nil
			}
			return WrapError("send", ErrBufferTimeout, "buffer not draining")
		}
		if !s.IsOpen() {
			return ErrChannelClosed
		}
	}
	return nil
}

// WaitForDrain waits until everything queued has left or DrainTimeout passes.
func (s *ChunkSender) WaitForDrain(ctx context.Context) {
	deadline := time.Now().Add(DrainTimeout)
	for s.channel.BufferedAmount() > 0 && time.Now().Before(deadline) {
		if !s.IsOpen() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// SendChunks reads r to EOF and sends it as binary frames. onProgress, if
// set, is called with the running byte count after each chunk.
func (s *ChunkSender) SendChunks(ctx context.Context, r io.Reader, onProgress func(int64)) (int64, error) {
	if !s.IsOpen() {
		return 0, ErrChannelNotOpen
	}

	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if !s.IsOpen() {
			return sent, ErrChannelClosed
		}

		if err := s.WaitForWindow(ctx); err != nil {
			return sent, err
		}

		n, err := io.ReadFull(r, s.buffer)
		if n > 0 {
			if sendErr := s.channel.Send(s.buffer[:n]); sendErr != nil {
				return sent, NewError("send chunk", sendErr)
			}
			sent += int64(n)
			if onProgress != nil {
				onProgress(sent)
			}
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return sent, nil
		}
		if err != nil {
			return sent, NewError("read file", err)
		}
	}
}
