package transfer

import (
	"bytes"
	"fmt"
)

// Incoming accumulates the chunks of one file. It completes exactly when the
// received byte count reaches the declared size; the sender's file-end is
// only a hint.
type Incoming struct {
	Meta

	received int64
	chunks   [][]byte
	done     bool
}

// NewIncoming opens a transfer for meta. maxSize of zero means no limit.
func NewIncoming(meta Meta, maxSize int64) (*Incoming, error) {
	if meta.Size < 0 {
		return nil, NewFileError("receive", meta.Name, fmt.Errorf("%w: negative size %d", ErrInvalidFile, meta.Size))
	}
	if maxSize > 0 && meta.Size > maxSize {
		return nil, NewFileError("receive", meta.Name, ErrFileTooLarge)
	}

	in := &Incoming{Meta: meta}
	// Zero-byte files have nothing left to wait for.
	in.done = meta.Size == 0
	return in, nil
}

// Append adds a chunk. It reports true on the call that completes the file.
// A chunk that would push the total past the declared size is rejected with
// ErrSizeExceeded and the accumulated data is dropped.
func (in *Incoming) Append(chunk []byte) (bool, error) {
	if in.done {
		return false, NewFileError("receive", in.Name, ErrNoActiveTransfer)
	}

	if in.received+int64(len(chunk)) > in.Size {
		in.Discard()
		return false, NewFileError("receive", in.Name, ErrSizeExceeded)
	}

	// The caller's buffer may be reused for the next frame.
	in.chunks = append(in.chunks, bytes.Clone(chunk))
	in.received += int64(len(chunk))

	if in.received == in.Size {
		in.done = true
		return true, nil
	}
	return false, nil
}

// Received returns the number of bytes accumulated so far.
func (in *Incoming) Received() int64 {
	return in.received
}

// Complete reports whether every declared byte has arrived.
func (in *Incoming) Complete() bool {
	return in.done && in.received == in.Size
}

// File assembles the received chunks in arrival order.
func (in *Incoming) File() *File {
	return &File{
		Name:     in.Name,
		MimeType: in.MimeType,
		Data:     bytes.Join(in.chunks, nil),
	}
}

// Discard drops everything received so far.
func (in *Incoming) Discard() {
	in.chunks = nil
	in.received = 0
	in.done = true
}
