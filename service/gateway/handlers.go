package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campuschat/chat"
	"campuschat/logger"
	"campuschat/tools/errs"
	"campuschat/tools/ids"
)

// handlerFunc is the dispatch signature; the table lives in NewServer.
type handlerFunc func(s *Server, c *Conn, raw json.RawMessage) error

// handleOnline records presence and rebroadcasts the roster. The identity
// comes from the authenticated connection, not from the payload.
func (s *Server) handleOnline(c *Conn, _ json.RawMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.opts.Roster.Online(ctx, c.Identity); err != nil {
		return errs.WrapMsg(err, "roster online", "user", c.Identity.UserID)
	}
	s.broadcastRoster()
	return nil
}

// handleCreateGroup validates a client-minted group and confirms it to all
// members. Rejections go back to the creator only; nothing is recorded.
func (s *Server) handleCreateGroup(c *Conn, raw json.RawMessage) error {
	var p chat.CreateGroupPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, chat.EventCreateGroup, "", "bad createGroup payload")
		return nil
	}
	if err := s.groups.Create(p.GroupID, p.GroupName, p.Members); err != nil {
		s.sendError(c, chat.EventCreateGroup, p.GroupID, errReason(err))
		return nil
	}

	confirmed := chat.GroupCreatedPayload{GroupID: p.GroupID, Name: p.GroupName, Members: p.Members}
	for _, member := range p.Members {
		s.sendToUser(member, chat.EventGroupCreated, confirmed)
	}
	logger.Infof("[gateway] group created id=%s name=%s members=%d", p.GroupID, p.GroupName, len(p.Members))
	return nil
}

func (s *Server) handleJoinGroup(c *Conn, raw json.RawMessage) error {
	var p chat.JoinGroupPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	if err := s.groups.Join(p.GroupID, c.Identity.UserID); err != nil {
		s.sendError(c, chat.EventJoinGroup, p.GroupID, errReason(err))
	}
	return nil
}

// handleSendMessage routes a text message and acknowledges it to the
// sender. The client-generated id is preserved end to end; deliveries and
// the ack carry the same id so the sender's optimistic echo reconciles.
func (s *Server) handleSendMessage(c *Conn, raw json.RawMessage) error {
	var m chat.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		s.sendError(c, chat.EventSendMessage, "", "bad message payload")
		return nil
	}
	s.normalizeEnvelope(&m, c)
	if m.Kind == chat.KindGroup && !s.groups.IsMember(m.Receiver, c.Identity.UserID) {
		s.sendError(c, chat.EventSendMessage, m.Receiver, "not a member of group")
		return nil
	}

	m.Status = chat.StatusSent
	s.sendEvent(c, chat.EventMessageSent, chat.AckPayload{Status: chat.StatusSent, Message: m})
	s.deliver(c, chat.EventReceiveMessage, m)
	return nil
}

// handleSendFile is the attachment variant: same envelope, fileSent echo
// instead of messageSent.
func (s *Server) handleSendFile(c *Conn, raw json.RawMessage) error {
	var m chat.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		s.sendError(c, chat.EventSendFile, "", "bad file payload")
		return nil
	}
	if m.File == nil || m.File.Data == "" {
		s.sendError(c, chat.EventSendFile, "", "file payload missing")
		return nil
	}
	s.normalizeEnvelope(&m, c)
	m.MessageType = "file"
	if m.Kind == chat.KindGroup && !s.groups.IsMember(m.Receiver, c.Identity.UserID) {
		s.sendError(c, chat.EventSendFile, m.Receiver, "not a member of group")
		return nil
	}

	m.Status = chat.StatusSent
	s.sendEvent(c, chat.EventFileSent, chat.FileEchoPayload{Message: m})
	s.deliver(c, chat.EventReceiveFile, m)
	return nil
}

// normalizeEnvelope pins sender fields to the authenticated identity and
// fills anything a minimal client left blank.
func (s *Server) normalizeEnvelope(m *chat.Message, c *Conn) {
	m.Sender = c.Identity.UserID
	if m.SenderName == "" {
		m.SenderName = c.Identity.DisplayName()
	}
	if m.ID == "" {
		m.ID = ids.GenerateString()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	// Old clients said "private" where the protocol says "direct".
	if m.Kind != chat.KindGroup {
		m.Kind = chat.KindDirect
	}
}

// deliver fans a message out to its recipients. Only the originating
// connection is excluded (it already holds the optimistic echo); the
// sender's other connections receive the message like any recipient, so a
// second tab stays in sync. Membership is validated before the ack, in the
// handlers.
func (s *Server) deliver(from *Conn, event string, m chat.Message) {
	if m.Kind == chat.KindGroup {
		for _, member := range s.groups.Members(m.Receiver) {
			if member == from.Identity.UserID {
				s.sendToUserExcept(member, from.ConnID, event, m)
				continue
			}
			s.sendToUser(member, event, m)
		}
		return
	}
	if m.Receiver == from.Identity.UserID {
		// Self-addressed: every other connection of the user, once.
		s.sendToUserExcept(m.Receiver, from.ConnID, event, m)
		return
	}
	s.sendToUser(m.Receiver, event, m)
	s.sendToUserExcept(from.Identity.UserID, from.ConnID, event, m)
}

// handleTyping relays a best-effort typing start. No ack, no retry.
func (s *Server) handleTyping(c *Conn, raw json.RawMessage) error {
	var p chat.TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	p.Sender = c.Identity.UserID
	s.relayTyping(c, chat.EventTyping, p.Receiver, p)
	return nil
}

func (s *Server) handleStopTyping(c *Conn, raw json.RawMessage) error {
	var p chat.StopTypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	p.Sender = c.Identity.UserID
	s.relayTyping(c, chat.EventStopTyping, p.Receiver, p)
	return nil
}

// relayTyping sends a typing signal to a direct peer or to the other group
// members. Unknown receivers are dropped silently: typing is lossy.
func (s *Server) relayTyping(from *Conn, event, receiver string, payload any) {
	if receiver == "" {
		return
	}
	if members := s.groups.Members(receiver); members != nil {
		for _, member := range members {
			if member == from.Identity.UserID {
				continue
			}
			s.sendToUser(member, event, payload)
		}
		return
	}
	s.sendToUser(receiver, event, payload)
}

// errReason strips the numeric code for the wire; clients classify by the
// event tag, not by our internal codes.
func errReason(err error) string {
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		if ce.Detail != "" {
			return ce.Msg + ": " + ce.Detail
		}
		return ce.Msg
	}
	return err.Error()
}
