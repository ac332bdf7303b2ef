package chat

import (
	"context"
	"encoding/json"
	"io"

	"campuschat/logger"
	"campuschat/tools/errs"
)

// Client wires the messaging core together and exposes the surface a UI
// renders from: one Snapshot plus action methods. All mutation happens
// either on the session's dispatch goroutine (inbound frames) or on the
// caller's goroutine (local actions).
type Client struct {
	session  *Session
	bus      *Bus
	presence *PresenceDirectory
	groups   *GroupRegistry
	selector *Selector
	ledger   *Ledger
	typing   *TypingCoordinator
	encoder  *AttachmentEncoder

	identity Identity
	onError  func(error)
	onUpdate func()
}

// Snapshot is everything the UI needs for one render.
type Snapshot struct {
	State       State
	Self        Identity
	Target      Target
	Users       []Identity
	Groups      []Group
	Messages    []Message
	TypingNames []string
}

// NewClient assembles the core around one session config. Nothing connects
// until Connect is called.
func NewClient(cfg Config) *Client {
	bus := NewBus()
	self := cfg.Identity

	c := &Client{
		bus:      bus,
		identity: self,
		presence: NewPresenceDirectory(self.UserID),
		selector: NewSelector(self.UserID),
		encoder:  NewAttachmentEncoder(),
	}
	c.session = NewSession(cfg, bus)
	c.ledger = NewLedger(self, c.session)
	c.groups = NewGroupRegistry(self.UserID, c.session)
	c.typing = NewTypingCoordinator(self.UserID, c.session)

	c.session.OnStateChange(c.handleState)
	c.typing.OnChange(c.notify)
	c.subscribe()
	return c
}

// OnError registers the sink for transport-reported failures (protocol
// errors, group rejections). Local validation failures are returned from
// the action methods directly and never pass through here.
func (c *Client) OnError(fn func(error)) { c.onError = fn }

// OnUpdate registers a render trigger fired after any state-changing
// inbound event.
func (c *Client) OnUpdate(fn func()) { c.onUpdate = fn }

func (c *Client) subscribe() {
	c.bus.Subscribe(EventUpdateUsers, func(raw json.RawMessage) {
		roster, err := decodeRoster(raw)
		if err != nil {
			logger.Warnf("[client] %v", err)
			return
		}
		c.presence.Replace(roster)
		c.notify()
	})

	c.bus.Subscribe(EventGroupCreated, func(raw json.RawMessage) {
		p, err := decodePayload[GroupCreatedPayload](raw)
		if err != nil {
			logger.Warnf("[client] %v", err)
			return
		}
		c.groups.HandleCreated(*p)
		c.notify()
	})

	c.bus.Subscribe(EventReceiveMessage, func(raw json.RawMessage) {
		m, err := decodePayload[Message](raw)
		if err != nil {
			logger.Warnf("[client] %v", err)
			return
		}
		c.ledger.Append(*m)
		c.notify()
	})

	c.bus.Subscribe(EventMessageSent, func(raw json.RawMessage) {
		p, err := decodePayload[AckPayload](raw)
		if err != nil {
			logger.Warnf("[client] %v", err)
			return
		}
		c.ledger.MarkAcknowledged(p.Message.ID)
		c.notify()
	})

	c.bus.Subscribe(EventReceiveFile, func(raw json.RawMessage) {
		m, err := decodePayload[Message](raw)
		if err != nil {
			logger.Warnf("[client] %v", err)
			return
		}
		c.ledger.Append(*m)
		c.notify()
	})

	c.bus.Subscribe(EventFileSent, func(raw json.RawMessage) {
		p, err := decodePayload[FileEchoPayload](raw)
		if err != nil {
			logger.Warnf("[client] %v", err)
			return
		}
		// Dedup makes the append a no-op for our own optimistic echo; it
		// only matters if the envelope was minted gateway-side.
		c.ledger.Append(p.Message)
		c.ledger.MarkAcknowledged(p.Message.ID)
		c.notify()
	})

	c.bus.Subscribe(EventTyping, func(raw json.RawMessage) {
		p, err := decodePayload[TypingPayload](raw)
		if err != nil {
			return
		}
		c.typing.RemoteTyping(p.Sender, p.Receiver)
	})

	c.bus.Subscribe(EventStopTyping, func(raw json.RawMessage) {
		p, err := decodePayload[StopTypingPayload](raw)
		if err != nil {
			return
		}
		c.typing.RemoteStop(p.Sender)
	})

	c.bus.Subscribe(EventError, func(raw json.RawMessage) {
		p, err := decodePayload[ErrorPayload](raw)
		if err != nil {
			return
		}
		c.dispatchError(p)
	})
}

// dispatchError routes a gateway error frame back to the flow that caused
// it. Group creation rejections leave the registry untouched.
func (c *Client) dispatchError(p *ErrorPayload) {
	var err error
	switch p.Event {
	case EventCreateGroup, EventJoinGroup:
		err = errs.ErrGroupCreation.WrapMsg(p.Message)
	default:
		if p.Event == "" && c.groups.HasPending() {
			// Older gateways omit the event tag; a pending creation is
			// the only in-flight flow that reports errors this way.
			err = errs.ErrGroupCreation.WrapMsg(p.Message)
		} else {
			err = errs.ErrProtocol.WrapMsg(p.Message)
		}
	}
	if errs.Is(err, errs.ErrGroupCreation) {
		c.groups.HandleRejected(p.GroupID)
	}
	logger.Warnf("[client] gateway error event=%s msg=%s", p.Event, p.Message)
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Client) handleState(st State) {
	if st == StateDisconnected {
		// Fresh snapshot on the next roster broadcast; stale indicators
		// must not outlive the connection.
		c.presence.Clear()
		c.typing.Close()
	}
	c.notify()
}

func (c *Client) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}

// Connect establishes the session.
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Reconnect re-dials after a severance. Messages in flight at disconnect
// stay "sending"; nothing is replayed.
func (c *Client) Reconnect(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Close tears everything down for good.
func (c *Client) Close() {
	c.typing.Close()
	c.session.Close()
}

// State reports the connection state for the status banner.
func (c *Client) State() State { return c.session.State() }

// SelectDirect opens the conversation with one online participant.
func (c *Client) SelectDirect(userID string) {
	c.selector.SelectDirect(userID)
	c.notify()
}

// SelectGroup opens a group conversation.
func (c *Client) SelectGroup(groupID string) {
	c.selector.SelectGroup(groupID)
	c.notify()
}

// CreateGroup validates and emits a creation request; the group appears in
// Snapshot.Groups once the gateway confirms.
func (c *Client) CreateGroup(name string, memberIDs []string) (string, error) {
	return c.groups.Create(name, memberIDs)
}

// SendText sends to the active target with an optimistic local echo.
func (c *Client) SendText(body string) (Message, error) {
	m, err := c.ledger.SendText(body, c.selector.Current())
	if err == nil {
		c.notify()
	}
	return m, err
}

// TypingInput reports a local keystroke; debounced signaling is handled
// internally.
func (c *Client) TypingInput() {
	c.typing.LocalInput(c.selector.Current())
}

// AttachFile encodes a file and stages it as the single pending
// attachment, replacing any previous selection.
func (c *Client) AttachFile(fileName string, r io.Reader) error {
	f, err := c.encoder.Encode(fileName, r)
	if err != nil {
		return err
	}
	c.encoder.Stage(f)
	return nil
}

// SendPendingAttachment sends the staged attachment to the active target.
func (c *Client) SendPendingAttachment() (Message, error) {
	f, ok := c.encoder.Take()
	if !ok {
		return Message{}, errs.ErrValidation.WrapMsg("no attachment staged")
	}
	m, err := c.ledger.SendAttachment(f, c.selector.Current())
	if err == nil {
		c.notify()
	}
	return m, err
}

// Snapshot assembles the current render state.
func (c *Client) Snapshot() Snapshot {
	target := c.selector.Current()

	typingIDs := c.typing.Active(target, c.identity.UserID)
	names := make([]string, 0, len(typingIDs))
	for _, id := range typingIDs {
		if u, ok := c.presence.Get(id); ok {
			names = append(names, u.DisplayName())
			continue
		}
		names = append(names, id)
	}

	return Snapshot{
		State:       c.session.State(),
		Self:        c.identity,
		Target:      target,
		Users:       c.presence.List(),
		Groups:      c.groups.List(),
		Messages:    c.ledger.Visible(c.selector),
		TypingNames: names,
	}
}
