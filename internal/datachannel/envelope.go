package datachannel

// Envelope kinds carried in string frames.
const (
	KindChat        = "chat"
	KindFileMeta    = "file-meta"
	KindFileEnd     = "file-end"
	KindDrawing     = "drawing"
	KindWhiteboard  = "whiteboard-toggle"
	KindKeyExchange = "key-exchange"
)

// Envelope is the decoded form of any control frame. Outgoing frames use the
// per-kind types below so that each kind carries exactly its own fields.
type Envelope struct {
	Kind string `json:"kind,omitempty"`

	// chat
	Text   string `json:"text,omitempty"`
	From   string `json:"from,omitempty"`
	SentAt int64  `json:"sentAt,omitempty"`

	// file-meta, file-end
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	// drawing
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Color   string  `json:"color,omitempty"`
	Width   float64 `json:"width,omitempty"`
	PenDown bool    `json:"penDown,omitempty"`

	// whiteboard-toggle
	Open bool `json:"open,omitempty"`

	// key-exchange
	PublicKey string `json:"publicKey,omitempty"`

	// encrypted wrapper
	Encrypted bool   `json:"encrypted,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// ChatMessage is a display-ready text line.
type ChatMessage struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	From   string `json:"from,omitempty"`
	SentAt int64  `json:"sentAt,omitempty"`
}

// FileMeta announces a file; binary frames follow.
type FileMeta struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// FileEnd is the sender's advisory completion marker.
type FileEnd struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// Drawing is one normalized pen sample.
type Drawing struct {
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color"`
	Width   float64 `json:"width"`
	PenDown bool    `json:"penDown"`
}

// WhiteboardToggle opens or closes the peer's drawing surface.
type WhiteboardToggle struct {
	Kind string `json:"kind"`
	Open bool   `json:"open"`
}

// KeyExchange carries a base64 SPKI public key. It is never encrypted.
type KeyExchange struct {
	Kind      string `json:"kind"`
	PublicKey string `json:"publicKey"`
}

// Encrypted wraps a whole encoded envelope.
type Encrypted struct {
	Encrypted bool   `json:"encrypted"`
	Payload   string `json:"payload"`
}
