package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"nhooyr.io/websocket"

	"rebellion/internal/game"
	"rebellion/internal/session"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
}

type actionPayload struct {
	Action game.Action `json:"action"`
}

// sayPayload is a free-text command. Seq is the decision it answers, copied
// from the last state message.
type sayPayload struct {
	Text string `json:"text"`
	Seq  int    `json:"seq,omitempty"`
}

type replacePayload struct {
	PlayerID string `json:"playerId"`
}

type statePayload struct {
	State        any                 `json:"state"`
	ValidActions []game.Action       `json:"validActions"`
	SessionInfo  session.Info        `json:"sessionInfo"`
	Results      []game.PlayerResult `json:"results,omitempty"`
}

type choicesPayload struct {
	Choices any `json:"choices"`
}

type tablePayload struct {
	Table any `json:"table"`
}

type rolesPayload struct {
	Roles any `json:"roles"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// codedError is satisfied by game errors that carry a machine-readable code.
type codedError interface {
	error
	ErrorCode() string
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "join" {
		sendWSError(ctx, conn, "first message must be a join")
		return
	}
	var join joinPayload
	if err := json.Unmarshal(msg.Payload, &join); err != nil || join.PlayerID == "" {
		sendWSError(ctx, conn, "invalid join payload")
		return
	}

	playerID := join.PlayerID
	log := s.log.WithFields(logrus.Fields{"session": code, "player": playerID})
	send := make(chan []byte, 64)

	// Reconnect an existing player or add a new one
	if !sess.ConnectPlayer(playerID, send) {
		if err := sess.AddPlayer(playerID); err != nil {
			sendWSError(ctx, conn, err.Error())
			return
		}
		sess.ConnectPlayer(playerID, send)
	}

	s.broadcastState(sess)

	go func() {
		for msg := range send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid message"})
			continue
		}
		if !s.handleMessage(ctx, sess, playerID, send, msg) {
			log.Info("player gave up their seat")
			return
		}
	}

	// Keep the seat; the player may reconnect.
	log.Info("player disconnected")
}

// handleMessage handles one message from playerID. It returns false once the
// player no longer holds a seat; send is closed by then.
func (s *Server) handleMessage(ctx context.Context, sess *session.Session, playerID string, send chan []byte, msg WSMessage) bool {
	_, span := s.tracer.Start(ctx, "ws."+msg.Type, trace.WithAttributes(
		attribute.String("session.code", sess.Code),
		attribute.String("player.id", playerID),
	))
	defer span.End()

	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p := errorPayload{Message: err.Error()}
		var ce codedError
		if errors.As(err, &ce) {
			p.Code = ce.ErrorCode()
		}
		sendWSMsg(send, "error", p)
	}

	switch msg.Type {
	case "action":
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil {
			fail(errors.New("invalid action payload"))
			return true
		}
		s.apply(sess, playerID, ap.Action, span, fail)

	case "say":
		var sp sayPayload
		if err := json.Unmarshal(msg.Payload, &sp); err != nil {
			fail(errors.New("invalid say payload"))
			return true
		}
		action, err := sess.ParseText(sp.Text, sp.Seq)
		if err != nil {
			fail(err)
			return true
		}
		s.apply(sess, playerID, action, span, fail)

	case "choices":
		choices, ok := sess.Explain(playerID)
		if !ok {
			fail(errors.New("game not started"))
			return true
		}
		sendWSMsg(send, "choices", choicesPayload{Choices: choices})

	case "peek":
		table, err := sess.Peek(playerID)
		if err != nil {
			fail(err)
			return true
		}
		sendWSMsg(send, "table", tablePayload{Table: table})

	case "roles":
		roles, ok := sess.Rules()
		if !ok {
			fail(errors.New(sess.GameType + " has no role list"))
			return true
		}
		sendWSMsg(send, "roles", rolesPayload{Roles: roles})

	case "settings":
		if err := sess.UpdateSettings(playerID, msg.Payload); err != nil {
			fail(err)
			return true
		}
		s.afterChange(sess, sess.TakeEvents())

	case "start":
		if sess.Info().HostID != playerID {
			fail(errors.New("only the host can start"))
			return true
		}
		if err := sess.Start(); err != nil {
			fail(err)
			return true
		}
		s.afterChange(sess, sess.TakeEvents())

	case "reset":
		if err := sess.Finish(playerID); err != nil {
			fail(err)
			return true
		}
		s.afterChange(sess, sess.TakeEvents())

	case "replace":
		var rp replacePayload
		if err := json.Unmarshal(msg.Payload, &rp); err != nil || rp.PlayerID == "" {
			fail(errors.New("invalid replace payload"))
			return true
		}
		if err := sess.ReplacePlayer(playerID, rp.PlayerID); err != nil {
			fail(err)
			return true
		}
		span.SetAttributes(attribute.String("player.replacement", rp.PlayerID))
		s.afterChange(sess, sess.TakeEvents())
		return false

	case "leave":
		if err := s.manager.Leave(sess, playerID); err != nil {
			fail(err)
			return true
		}
		if _, ok := s.manager.Get(sess.Code); ok {
			s.afterChange(sess, nil)
		}
		return false

	default:
		fail(errors.New("unknown message type: " + msg.Type))
	}
	return true
}

func (s *Server) apply(sess *session.Session, playerID string, action game.Action, span trace.Span, fail func(error)) {
	span.SetAttributes(attribute.String("action.type", action.Type))
	events, err := sess.Apply(playerID, action)
	if err != nil {
		fail(err)
		if len(events) > 0 {
			// the match broke and the session ended; tell everyone
			s.afterChange(sess, events)
		}
		return
	}
	s.afterChange(sess, events)
}

func (s *Server) broadcastState(sess *session.Session) {
	sess.RLock()
	defer sess.RUnlock()
	info := sess.InfoLocked()
	for _, pid := range info.Players {
		p := sess.Players[pid]
		if p == nil {
			continue
		}
		sp := statePayload{SessionInfo: info}
		if sess.Match != nil && sess.Status != session.StatusWaiting {
			sp.State = sess.Match.State(pid)
			sp.ValidActions = sess.Match.ValidActions(pid)
			if sess.Match.IsOver() {
				sp.Results = sess.Match.Results()
			}
		}
		sendWSMsg(p.Send, "state", sp)
	}
}

func encodeWSMsg(msgType string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: p})
}

func sendWSMsg(send chan []byte, msgType string, payload any) {
	msg, err := encodeWSMsg(msgType, payload)
	if err != nil {
		return
	}
	select {
	case send <- msg:
	default:
	}
}

func sendWSError(ctx context.Context, conn *websocket.Conn, message string) {
	msg, _ := encodeWSMsg("error", errorPayload{Message: message})
	conn.Write(ctx, websocket.MessageText, msg)
}
