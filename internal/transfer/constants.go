package transfer

import "time"

const (
	DefaultChunkSize = 16 * 1024   // 16 KB, safe for every SCTP implementation
	MaxChunkSize     = 256 * 1024  // largest frame we are willing to emit
	HighWaterMark    = 1024 * 1024 // 1 MB - backpressure threshold
	LowWaterMark     = 256 * 1024  // 256 KB - resume threshold

	SendTimeout  = 60 * time.Second
	DrainTimeout = 30 * time.Second
)

// Meta describes a file announced by a file-meta envelope.
type Meta struct {
	Name     string
	Size     int64
	MimeType string
}

// File is a fully received file.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}
