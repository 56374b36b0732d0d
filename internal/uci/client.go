package uci

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MihneaTeodorStoica/Minerva/internal/binary"
	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
)

var ErrProtocolTimeout = errors.New("timed out waiting for engine response")

// Client drives one UCI engine process. Callers must serialize access to a
// given instance; two engines means two independent Clients.
type Client struct {
	path string
	args []string

	logger           Logger
	handshakeTimeout time.Duration
	safetyMargin     time.Duration
	stopGrace        time.Duration
	pollInterval     time.Duration
	maxSearchTime    time.Duration
	truncatedFen     bool

	lock         sync.Mutex
	process      *binary.Process
	optionNames  []string
	optionValues map[string]string
}

type ClientOption func(*Client)

func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithArgs(args ...string) ClientOption {
	return func(c *Client) {
		c.args = args
	}
}

func WithHandshakeTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.handshakeTimeout = timeout
	}
}

func WithSafetyMargin(margin time.Duration) ClientOption {
	return func(c *Client) {
		c.safetyMargin = margin
	}
}

func WithStopGrace(grace time.Duration) ClientOption {
	return func(c *Client) {
		c.stopGrace = grace
	}
}

// WithTruncatedFEN drops the halfmove/fullmove fields from position
// commands, for engines that mis-parse them.
func WithTruncatedFEN() ClientOption {
	return func(c *Client) {
		c.truncatedFen = true
	}
}

func NewClient(path string, options ...ClientOption) *Client {
	c := &Client{
		path:             path,
		handshakeTimeout: 2 * time.Second,
		safetyMargin:     250 * time.Millisecond,
		stopGrace:        500 * time.Millisecond,
		pollInterval:     10 * time.Millisecond,
		maxSearchTime:    30 * time.Second,
		optionValues:     map[string]string{},
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = &DefaultLogger
	}
	return c
}

// Start spawns the engine, runs the handshake and replays any recorded
// options. Called implicitly by every operation that finds the process
// dead.
func (c *Client) Start() Error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.startLocked()
}

func (c *Client) startLocked() Error {
	if c.process == nil {
		c.process = binary.NewProcess(c.path,
			binary.WithArgs(c.args...),
			binary.WithLogger(c.logger))
	}

	if err := c.process.Start(); !IsNil(err) {
		return err
	}
	if err := c.handshakeLocked(); !IsNil(err) {
		return err
	}
	return c.applyOptionsLocked()
}

func (c *Client) handshakeLocked() Error {
	if err := c.process.Send("uci"); !IsNil(err) {
		return err
	}
	if err := c.waitForLocked("uciok", c.handshakeTimeout); !IsNil(err) {
		return err
	}
	return c.readyRoundTripLocked()
}

// waitForLocked consumes queued lines until one contains token. Lines that
// arrive before the token are dropped; they belong to an earlier cycle.
func (c *Client) waitForLocked(token string, timeout time.Duration) Error {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Wrap(fmt.Errorf("%w: no %q within %v", ErrProtocolTimeout, token, timeout))
		}
		if remaining > c.pollInterval {
			remaining = c.pollInterval
		}

		line := c.process.Output().Next(remaining)
		if line.IsEmpty() {
			if !c.process.IsAlive() {
				return Wrap(fmt.Errorf("%w: while waiting for %q", binary.ErrProcessDied, token))
			}
			continue
		}
		if strings.Contains(line.Value(), token) {
			return NilError
		}
	}
}

func (c *Client) readyRoundTripLocked() Error {
	if err := c.process.Send("isready"); !IsNil(err) {
		return err
	}
	return c.waitForLocked("readyok", c.handshakeTimeout)
}

func (c *Client) drainLocked() {
	dropped := c.process.Output().Drain()
	if len(dropped) > 0 {
		c.logger.Println("drained", len(dropped), "stale lines")
	}
}

// SetOption records the option for replay after every restart. If the
// engine is live the option is applied immediately and synchronously.
func (c *Client) SetOption(name string, value any) Error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, seen := c.optionValues[name]; !seen {
		c.optionNames = append(c.optionNames, name)
	}
	c.optionValues[name] = fmt.Sprint(value)

	if !c.aliveLocked() {
		return NilError
	}
	if err := c.sendOptionLocked(name); !IsNil(err) {
		return err
	}
	return c.readyRoundTripLocked()
}

func (c *Client) sendOptionLocked(name string) Error {
	return c.process.Send(fmt.Sprintf("setoption name %v value %v", name, c.optionValues[name]))
}

// applyOptionsLocked replays every recorded option, in the order they were
// first set.
func (c *Client) applyOptionsLocked() Error {
	for _, name := range c.optionNames {
		if err := c.sendOptionLocked(name); !IsNil(err) {
			return err
		}
	}
	if len(c.optionNames) == 0 {
		return NilError
	}
	return c.readyRoundTripLocked()
}

// NewGame resets the engine before the first move of a game. A dead engine
// is restarted instead, which already yields a clean slate.
func (c *Client) NewGame() Error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.aliveLocked() {
		return c.restartLocked()
	}

	c.drainLocked()
	if err := c.process.Send("ucinewgame"); !IsNil(err) {
		return err
	}
	if err := c.readyRoundTripLocked(); !IsNil(err) {
		return c.recoverLocked(err)
	}
	c.drainLocked()
	return NilError
}

// Sync flushes stale engine output between cycles: drain, readiness
// round-trip, drain again.
func (c *Client) Sync() Error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.syncLocked()
}

func (c *Client) syncLocked() Error {
	if !c.aliveLocked() {
		return c.restartLocked()
	}

	c.drainLocked()
	if err := c.readyRoundTripLocked(); !IsNil(err) {
		return c.recoverLocked(err)
	}
	c.drainLocked()
	return NilError
}

// recoverLocked handles a protocol timeout the only way that reliably
// unwedges an engine: restart it, once.
func (c *Client) recoverLocked(cause Error) Error {
	c.logger.Println("recovering from:", Ellipses(strings.TrimSpace(cause.Error()), 120))
	if err := c.restartLocked(); !IsNil(err) {
		return Join(cause, err)
	}
	return NilError
}

func (c *Client) Restart() Error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.restartLocked()
}

func (c *Client) restartLocked() Error {
	if c.process != nil {
		c.process.Stop()
	}
	return c.startLocked()
}

func (c *Client) Stop() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.process != nil {
		c.process.Stop()
	}
}

func (c *Client) IsAlive() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.aliveLocked()
}

func (c *Client) aliveLocked() bool {
	return c.process != nil && c.process.IsAlive()
}

// Process exposes the supervisor, for callers that need the raw handle
// (tests simulating crashes, mostly).
func (c *Client) Process() *binary.Process {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.process
}
