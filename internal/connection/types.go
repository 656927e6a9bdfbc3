package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/router"
)

// Errors
var (
	ErrNotConnected              = errors.New("not connected")
	ErrStaleConnection           = errors.New("connection stale (no ping)")
	ErrAlreadyClosed             = errors.New("already closed")
	ErrManagerStopped            = errors.New("manager stopped")
	ErrNotStarted                = errors.New("manager not started")
	ErrSubscriptionLimitExceeded = errors.New("subscription limit exceeded")
	ErrReconnectExhausted        = errors.New("reconnect attempts exhausted")
)

// LimitError reports contracts that could not be streamed because the plan's
// capacity is used up. Their slots still count against the limit until they
// are unsubscribed.
type LimitError struct {
	Limit int
	Slots int
	Keys  []model.InstrumentKey
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("subscription limit exceeded: %d slots for limit %d (%d contracts inactive)",
		e.Slots, e.Limit, len(e.Keys))
}

func (e *LimitError) Is(target error) bool { return target == ErrSubscriptionLimitExceeded }

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Channel is a per-contract stream.
type Channel string

const (
	ChannelTrade Channel = "TRADE"
	ChannelQuote Channel = "QUOTE"
)

// Channels are subscribed for every contract, in this order.
var Channels = []Channel{ChannelTrade, ChannelQuote}

// StreamRequest is the outbound subscribe/unsubscribe message.
type StreamRequest struct {
	MsgType  string         `json:"msg_type"`
	SecType  string         `json:"sec_type"`
	ReqType  Channel        `json:"req_type"`
	Add      bool           `json:"add"`
	ID       int64          `json:"id"`
	Contract StreamContract `json:"contract"`
}

// StreamContract is the contract descriptor of a StreamRequest.
type StreamContract struct {
	Root       string `json:"root"`
	Expiration int    `json:"expiration,omitempty"`
	Strike     int64  `json:"strike,omitempty"`
	Right      string `json:"right,omitempty"`
}

func newStreamRequest(key model.InstrumentKey, ch Channel, add bool, id int64) StreamRequest {
	req := StreamRequest{
		MsgType:  "STREAM",
		SecType:  secType(key.Class),
		ReqType:  ch,
		Add:      add,
		ID:       id,
		Contract: StreamContract{Root: key.Root},
	}
	if key.IsOption() {
		req.Contract.Expiration = key.Expiry.Int()
		req.Contract.Strike = key.StrikeMilli
		req.Contract.Right = string(key.Right)
	}
	return req
}

func secType(class model.SecurityClass) string {
	switch class {
	case model.Option, model.IndexOption:
		return "OPTION"
	case model.Index:
		return "INDEX"
	default:
		return "STOCK"
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Stream URL (e.g., ws://127.0.0.1:25520/v1/events)
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       50000,
	}
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	Client               ClientConfig
	Market               string        // Market assigned to contracts first seen on the stream
	MaxContracts         int           // Plan's maximum streamed contracts
	ReconnectBaseWait    time.Duration // First reconnect delay
	ReconnectMaxWait     time.Duration // Reconnect delay ceiling
	MaxReconnectAttempts int           // Consecutive failed dials before giving up
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:               DefaultClientConfig(),
		Market:               "usa",
		MaxContracts:         10000,
		ReconnectBaseWait:    time.Second,
		ReconnectMaxWait:     60 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// State is the connection state of a Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Degraded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Degraded:
		return "degraded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sink receives changed snapshots.
type Sink interface {
	Publish(u model.Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(model.Update)

func (f SinkFunc) Publish(u model.Update) { f(u) }

// QueueSink feeds a bounded queue. Updates are dropped when it is full.
type QueueSink struct {
	Queue *router.Queue[model.Update]
}

func (s QueueSink) Publish(u model.Update) { s.Queue.Send(u) }

// SplitSink routes quote and trade updates to separate queues so each writer
// drains only its own kind.
type SplitSink struct {
	Quotes *router.Queue[model.Update]
	Trades *router.Queue[model.Update]
}

func (s SplitSink) Publish(u model.Update) {
	if u.Quote != nil && s.Quotes != nil {
		s.Quotes.Send(u)
	}
	if u.Trade != nil && s.Trades != nil {
		s.Trades.Send(u)
	}
}

// ManagerStats provides statistics about the manager.
type ManagerStats struct {
	State            State
	Session          string
	Slots            int
	Active           int
	MessagesSent     int64
	MessagesReceived int64
	UpdatesPublished int64
	Resubscribes     int64
	Reconnects       int64
	Decoder          router.DecoderStats
}
