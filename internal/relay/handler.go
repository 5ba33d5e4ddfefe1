package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omochice/counsel-chat/internal/log"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

const serverVersion = "1.2"

// deliveredMessage is the MESSAGE body on a message queue.
type deliveredMessage struct {
	SenderID   int64            `json:"senderId"`
	ReceiverID int64            `json:"receiverId"`
	SenderType stomp.SenderType `json:"senderType"`
	Content    string           `json:"content"`
	Timestamp  string           `json:"timestamp"`
}

// connectedFrame answers CONNECT. The relay neither sends nor expects heart-beats.
func connectedFrame() stomp.Frame {
	return stomp.Frame{
		Command: stomp.CommandConnected,
		Headers: []stomp.Header{
			{Key: stomp.HeaderVersion, Value: serverVersion},
			{Key: stomp.HeaderHeartBeat, Value: "0,0"},
		},
	}
}

func (s *Server) handleFrame(c *Client, data []byte) {
	if strings.Trim(string(data), "\r\n") == "" {
		return
	}

	f, err := stomp.Parse(data)
	if err != nil {
		c.fail(err.Error())
		return
	}

	switch f.Command {
	case stomp.CommandConnect:
		c.enqueue(connectedFrame().Bytes())

	case stomp.CommandSubscribe:
		id, okID := f.Header(stomp.HeaderID)
		dest, okDest := f.Header(stomp.HeaderDestination)
		if !okID || !okDest {
			c.fail("SUBSCRIBE requires id and destination")
			return
		}
		s.hub.Subscribe(c, id, dest)
		c.logger.Debug().Str(log.FieldDestination, dest).Str("subscription", id).Msg("subscribed")

	case stomp.CommandSend:
		s.handleSend(c, f)

	case stomp.CommandDisconnect:
		c.shutdown()

	default:
		c.fail(fmt.Sprintf("unsupported command %q", f.Command))
	}
}

func (s *Server) handleSend(c *Client, f stomp.Frame) {
	dest, _ := f.Header(stomp.HeaderDestination)
	if dest != stomp.PrivateChatDestination {
		c.fail(fmt.Sprintf("unknown destination %q", dest))
		return
	}

	var p stomp.SendPayload
	if err := json.Unmarshal(f.Body, &p); err != nil {
		c.fail("invalid message payload")
		return
	}
	if p.SenderType != stomp.SenderUser && p.SenderType != stomp.SenderCounselor {
		c.fail(fmt.Sprintf("unknown senderType %q", p.SenderType))
		return
	}
	if reason := validate(p); reason != "" {
		s.publishError(p.SenderType, p.SenderID, reason)
		return
	}

	stored := s.store.Append(p, s.now())
	body, err := json.Marshal(deliveredMessage{
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		SenderType: p.SenderType,
		Content:    p.Content,
		Timestamp:  stored.SentTime,
	})
	if err != nil {
		s.publishError(p.SenderType, p.SenderID, "failed to encode message")
		return
	}

	receivers := s.hub.Publish(stomp.MessageQueue(p.SenderType.Peer(), p.ReceiverID), body)
	s.hub.Publish(stomp.MessageQueue(p.SenderType, p.SenderID), body)

	c.logger.Info().
		Str(log.FieldSenderType, string(p.SenderType)).
		Int64("sender_id", p.SenderID).
		Int64("receiver_id", p.ReceiverID).
		Int("receivers", receivers).
		Msg("message routed")
}

func validate(p stomp.SendPayload) string {
	switch {
	case p.SenderID <= 0 || p.ReceiverID <= 0:
		return "senderId and receiverId must be positive"
	case strings.TrimSpace(p.Content) == "":
		return "message content is empty"
	}
	return ""
}

func (s *Server) publishError(role stomp.SenderType, id int64, reason string) {
	body, _ := json.Marshal(stomp.ErrorPayload{Message: reason})
	s.hub.Publish(stomp.ErrorQueue(role, id), body)
}
