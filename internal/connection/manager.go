package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/rickgao/thetafeed/internal/model"
	"github.com/rickgao/thetafeed/internal/router"
	"github.com/rickgao/thetafeed/internal/symbol"
)

// Manager owns the stream socket and the set of subscribed contracts.
type Manager interface {
	// Start binds the manager to ctx. The socket is dialed lazily by the
	// first Subscribe.
	Start(ctx context.Context) error

	// Stop closes the socket and waits for background goroutines.
	Stop(ctx context.Context) error

	// Subscribe streams trades and quotes for keys. Contracts beyond the
	// plan's capacity are tracked but left inactive and reported in a
	// *LimitError.
	Subscribe(ctx context.Context, keys ...model.InstrumentKey) error

	// Unsubscribe stops streaming keys and forgets their snapshots.
	Unsubscribe(ctx context.Context, keys ...model.InstrumentKey) error

	// State returns the connection state.
	State() State

	// Active returns the contracts currently streamed, ordered by ticker.
	Active() []model.InstrumentKey

	// Errors reports terminal failures such as ErrReconnectExhausted.
	Errors() <-chan error

	// Stats returns current statistics.
	Stats() ManagerStats
}

// ManagerOption configures a Manager.
type ManagerOption func(*manager)

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *manager) {
		if f != nil {
			m.newClient = f
		}
	}
}

// slot is a contract the caller asked to stream.
type slot struct {
	key    model.InstrumentKey
	ticker string
	active bool
	quote  *model.QuoteSnapshot
	trade  *model.TradeSnapshot
}

type manager struct {
	cfg       ManagerConfig
	codec     *symbol.Codec
	sink      Sink
	decoder   *router.Decoder
	logger    *slog.Logger
	newClient ClientFactory

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error

	// Guards everything below.
	mu         sync.Mutex
	state      State
	client     Client
	session    string // Id of the current socket, for log correlation
	generation uint64
	nextID     int64
	slots      map[string]*slot
	stopped    bool

	sent         atomic.Int64
	received     atomic.Int64
	published    atomic.Int64
	resubscribes atomic.Int64
	reconnects   atomic.Int64
}

// NewManager creates a stream manager publishing changed snapshots to sink.
func NewManager(cfg ManagerConfig, codec *symbol.Codec, sink Sink, logger *slog.Logger, opts ...ManagerOption) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if codec == nil {
		codec = symbol.NewCodec()
	}
	if sink == nil {
		sink = SinkFunc(func(model.Update) {})
	}

	m := &manager{
		cfg:       cfg,
		codec:     codec,
		sink:      sink,
		decoder:   router.NewDecoder(nil),
		logger:    logger,
		newClient: NewClient,
		errs:      make(chan error, 1),
		slots:     make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start binds the manager's background work to ctx.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.ctx != nil {
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.logger.Info("stream manager started",
		"url", m.cfg.Client.URL,
		"max_contracts", m.cfg.MaxContracts,
	)
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.generation++
	m.state = Disconnected
	client := m.client
	m.client = nil
	m.mu.Unlock()

	m.logger.Info("stopping stream manager")

	if m.cancel != nil {
		m.cancel()
	}
	if client != nil {
		client.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.logger.Info("stream manager stopped")
	return nil
}

// Subscribe activates slots for keys and sends one add request per channel.
func (m *manager) Subscribe(ctx context.Context, keys ...model.InstrumentKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRunningLocked(); err != nil {
		return err
	}
	if m.state == Disconnected {
		if err := m.connectLocked(ctx); err != nil {
			return err
		}
	}

	var inactive []model.InstrumentKey
	for _, key := range keys {
		m.codec.Encode(key)
		ticker := symbol.Format(key)

		s, ok := m.slots[ticker]
		if ok && s.active {
			continue
		}
		if !ok {
			s = &slot{key: key, ticker: ticker}
			m.slots[ticker] = s
		}
		if len(m.slots) > m.cfg.MaxContracts {
			inactive = append(inactive, key)
			continue
		}

		s.active = true
		m.sendLocked(key, true)
	}

	if len(inactive) > 0 {
		m.logger.Warn("stream capacity reached",
			"limit", m.cfg.MaxContracts,
			"slots", len(m.slots),
			"inactive", len(inactive),
		)
		return &LimitError{Limit: m.cfg.MaxContracts, Slots: len(m.slots), Keys: inactive}
	}
	return nil
}

// Unsubscribe removes slots for keys. Unknown keys are ignored.
func (m *manager) Unsubscribe(ctx context.Context, keys ...model.InstrumentKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRunningLocked(); err != nil {
		return err
	}

	for _, key := range keys {
		ticker := symbol.Format(key)
		s, ok := m.slots[ticker]
		if !ok {
			continue
		}
		if s.active {
			m.sendLocked(key, false)
		}
		delete(m.slots, ticker)
	}
	return nil
}

// State returns the connection state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active returns the streamed contracts ordered by ticker.
func (m *manager) Active() []model.InstrumentKey {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.activeLocked()
	keys := make([]model.InstrumentKey, len(active))
	for i, s := range active {
		keys[i] = s.key
	}
	return keys
}

// Errors returns the terminal error channel.
func (m *manager) Errors() <-chan error {
	return m.errs
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	state := m.state
	session := m.session
	slots := len(m.slots)
	active := len(m.activeLocked())
	m.mu.Unlock()

	return ManagerStats{
		State:            state,
		Session:          session,
		Slots:            slots,
		Active:           active,
		MessagesSent:     m.sent.Load(),
		MessagesReceived: m.received.Load(),
		UpdatesPublished: m.published.Load(),
		Resubscribes:     m.resubscribes.Load(),
		Reconnects:       m.reconnects.Load(),
		Decoder:          m.decoder.Stats(),
	}
}

func (m *manager) checkRunningLocked() error {
	if m.stopped {
		return ErrManagerStopped
	}
	if m.ctx == nil {
		return ErrNotStarted
	}
	return nil
}

func (m *manager) activeLocked() []*slot {
	active := make([]*slot, 0, len(m.slots))
	for _, s := range m.slots {
		if s.active {
			active = append(active, s)
		}
	}
	slices.SortFunc(active, func(a, b *slot) int {
		return strings.Compare(a.ticker, b.ticker)
	})
	return active
}

// connectLocked dials a fresh socket and restores active slots left over
// from a previous socket. The dial honors ctx for the handshake only; the
// socket itself lives until Stop or a read failure.
func (m *manager) connectLocked(ctx context.Context) error {
	m.state = Connecting

	c := m.newClient(m.cfg.Client, m.logger)
	if err := c.Connect(ctx); err != nil {
		m.state = Disconnected
		return fmt.Errorf("connect stream: %w", err)
	}

	m.installLocked(c)
	m.replayLocked()
	return nil
}

// installLocked makes c the current socket and starts its read loop. Request
// ids restart at 1 on every socket.
func (m *manager) installLocked(c Client) {
	m.generation++
	m.client = c
	m.session = uuid.NewString()
	m.nextID = 0
	m.state = Connected

	m.wg.Add(1)
	go m.readLoop(c, m.generation)

	m.logger.Info("stream connected", "url", m.cfg.Client.URL, "session_id", m.session)
}

// sendLocked writes one STREAM request per channel for key. Send failures
// are logged; the read loop observes the broken socket and reconnects.
func (m *manager) sendLocked(key model.InstrumentKey, add bool) {
	if m.client == nil {
		return
	}

	for _, ch := range Channels {
		m.nextID++
		data, err := json.Marshal(newStreamRequest(key, ch, add, m.nextID))
		if err != nil {
			m.logger.Error("failed to encode stream request", "error", err)
			continue
		}
		if err := m.client.Send(data); err != nil {
			m.logger.Warn("failed to send stream request",
				"ticker", symbol.Format(key),
				"channel", ch,
				"add", add,
				"error", err,
			)
			continue
		}
		m.sent.Add(1)
	}
}

// replayLocked re-sends add requests for every active slot.
func (m *manager) replayLocked() {
	for _, s := range m.activeLocked() {
		m.sendLocked(s.key, true)
	}
}

// readLoop consumes one socket until it fails or the manager stops.
func (m *manager) readLoop(c Client, gen uint64) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-c.Errors():
			m.handleSocketError(gen, err)
			return

		case msg := <-c.Messages():
			m.received.Add(1)
			m.handleMessage(gen, msg)
		}
	}
}

func (m *manager) handleMessage(gen uint64, msg TimestampedMessage) {
	decoded, err := m.decoder.Decode(msg.Data, msg.ReceivedAt)
	if err != nil {
		m.logger.Debug("dropping malformed stream message", "error", err)
		return
	}

	switch decoded.Kind {
	case router.KindQuote, router.KindTrade:
		m.handleSnapshot(decoded)
	case router.KindStatus:
		m.handleStatus(gen, decoded.Status)
	default:
		m.logger.Debug("ignoring stream message", "kind", decoded.Kind)
	}
}

// handleSnapshot stores the snapshot on its slot and publishes it when any
// field changed.
func (m *manager) handleSnapshot(decoded router.Message) {
	wire := decoded.Contract.Ticker()

	key, err := m.codec.Decode(wire)
	if err != nil {
		key, err = m.codec.DecodeWith(wire, decoded.Contract.Class(), m.cfg.Market)
		if err != nil {
			m.logger.Warn("undecodable stream contract", "ticker", wire, "error", err)
			return
		}
	}
	// Slots are keyed by the canonical ticker.
	ticker := symbol.Format(key)

	update := model.Update{Key: key, Ticker: ticker, ReceivedAt: decoded.ReceivedAt}

	m.mu.Lock()
	s, ok := m.slots[ticker]
	if !ok || !s.active {
		m.mu.Unlock()
		m.logger.Debug("snapshot for unsubscribed contract", "ticker", ticker)
		return
	}

	switch {
	case decoded.Quote != nil:
		if s.quote != nil && s.quote.Equal(*decoded.Quote) {
			m.mu.Unlock()
			return
		}
		stored, out := *decoded.Quote, *decoded.Quote
		s.quote = &stored
		update.Quote = &out

	case decoded.Trade != nil:
		if s.trade != nil && s.trade.Equal(*decoded.Trade) {
			m.mu.Unlock()
			return
		}
		stored, out := *decoded.Trade, *decoded.Trade
		s.trade = &stored
		update.Trade = &out

	default:
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.sink.Publish(update)
	m.published.Add(1)
}

// handleStatus tracks upstream feed health. A DISCONNECTED status degrades
// the stream; the next status of any other kind restores every active
// subscription.
func (m *manager) handleStatus(gen uint64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		return
	}

	switch {
	case status == router.StatusDisconnected:
		if m.state == Connected {
			m.state = Degraded
			m.logger.Warn("upstream feed disconnected")
		}

	case m.state == Degraded:
		m.replayLocked()
		m.state = Connected
		m.resubscribes.Add(1)
		m.logger.Info("upstream feed restored, resubscribed",
			"status", status,
			"contracts", len(m.activeLocked()),
		)
	}
}

// handleSocketError retires the failed socket and starts reconnecting.
func (m *manager) handleSocketError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation || m.stopped {
		m.mu.Unlock()
		return
	}
	m.generation++
	old, session := m.client, m.session
	m.client = nil
	m.state = Connecting
	m.mu.Unlock()

	m.logger.Warn("stream connection error", "session_id", session, "error", err)

	if old != nil {
		old.Close()
	}
	if m.ctx.Err() != nil {
		return
	}

	m.wg.Add(1)
	go m.reconnect()
}

// reconnect redials with exponential backoff and replays subscriptions.
// MaxReconnectAttempts <= 0 retries until the manager stops.
func (m *manager) reconnect() {
	defer m.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.ReconnectBaseWait
	b.MaxInterval = m.cfg.ReconnectMaxWait
	b.Reset()

	for attempt := 1; ; attempt++ {
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(b.NextBackOff()):
		}

		m.logger.Info("attempting reconnection", "attempt", attempt)

		c := m.newClient(m.cfg.Client, m.logger)
		if err := c.Connect(m.ctx); err != nil {
			m.logger.Warn("reconnection failed", "attempt", attempt, "error", err)

			if m.cfg.MaxReconnectAttempts > 0 && attempt >= m.cfg.MaxReconnectAttempts {
				m.mu.Lock()
				m.state = Disconnected
				m.mu.Unlock()
				m.reportError(fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, attempt, err))
				return
			}
			continue
		}

		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			c.Close()
			return
		}
		m.installLocked(c)
		m.replayLocked()
		m.mu.Unlock()

		m.reconnects.Add(1)
		return
	}
}

func (m *manager) reportError(err error) {
	m.logger.Error("stream manager failed", "error", err)
	select {
	case m.errs <- err:
	default:
	}
}
