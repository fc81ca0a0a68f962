package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"mingle-server/core"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// signalKind describes one point-to-point negotiation message: the inbound
// event, the payload field carried in its envelope, and the event the
// target receives.
type signalKind struct {
	inEvent    string
	payloadKey string
	outEvent   string
}

var signalKinds = []signalKind{
	{inEvent: "call-user", payloadKey: "offer", outEvent: "call-made"},
	{inEvent: "make-answer", payloadKey: "answer", outEvent: "answer-made"},
	{inEvent: "ice-candidate", payloadKey: "candidate", outEvent: "ice-candidate"},
}

// relayedEvents are forwarded verbatim to the other occupant of the
// sender's pairing. Payloads are optional and pass through untouched; the
// two endpoints own their semantics.
var relayedEvents = []string{
	"message",
	"ask-increment",
	"reply-increment",
	"ask-chat",
	"reply-chat",
	"ask-exchange-numbers",
	"reply-exchange-numbers",
}

// SetupSocketIO builds the Socket.IO server and wires every connection to
// the pairing engine. Profile-backed interest seeding goes through the
// given store.
func SetupSocketIO(engine *Engine, profiles core.ProfileStore) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)

	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	origins := []any{localhostOrigin}
	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}
	opts.SetCors(&types.Cors{
		Origin:      origins,
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		me := string(socket.Id())
		engine.Register(me, socket)
		_ = socket.Emit(EventCreated, me)
		logrus.WithField("conn_id", me).Debug("Socket connected")

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("reConnect", func(datas ...any) {
			interests, err := decodeInterests(datas, profiles)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"conn_id": me,
					"error":   err,
				}).Warn("Bad interest declaration")
				_ = socket.Emit(EventError, map[string]any{
					"event": "reConnect",
					"error": err.Error(),
				})
				return
			}
			engine.DeclareInterests(me, interests)
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("startChat", func(datas ...any) {
			engine.RequestMatch(me)
		})

		for _, kind := range signalKinds {
			kind := kind
			//nolint:errcheck // Socket.IO event handlers do not return useful errors
			socket.On(kind.inEvent, func(datas ...any) {
				envelope, err := decodeEnvelope(datas)
				if err != nil {
					logrus.WithFields(logrus.Fields{
						"conn_id": me,
						"event":   kind.inEvent,
						"error":   err,
					}).Warn("Malformed signaling envelope")
					_ = socket.Emit(EventError, map[string]any{
						"event": kind.inEvent,
						"error": err.Error(),
					})
					return
				}

				target, _ := envelope["targetSocketID"].(string)
				if target == "" {
					_ = socket.Emit(EventError, map[string]any{
						"event": kind.inEvent,
						"error": "targetSocketID is required",
					})
					return
				}

				engine.ForwardSignal(me, target, kind.outEvent, kind.payloadKey, envelope[kind.payloadKey])
			})
		}

		for _, event := range relayedEvents {
			event := event
			//nolint:errcheck // Socket.IO event handlers do not return useful errors
			socket.On(event, func(datas ...any) {
				engine.RelayEvent(me, event, datas...)
			})
		}

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("close-chat", func(datas ...any) {
			engine.CloseChat(me)
		})

		socket.On("disconnect", func(datas ...any) {
			logrus.WithField("conn_id", me).Debug("Socket disconnected")
			engine.Disconnect(me)
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

// decodeEnvelope accepts the two shapes clients send signaling envelopes
// in: a JSON-encoded string or a plain object.
func decodeEnvelope(datas []any) (map[string]any, error) {
	if len(datas) == 0 {
		return nil, fmt.Errorf("empty envelope")
	}

	switch data := datas[0].(type) {
	case string:
		var envelope map[string]any
		if err := json.Unmarshal([]byte(data), &envelope); err != nil {
			return nil, fmt.Errorf("invalid envelope: %w", err)
		}
		return envelope, nil
	case map[string]any:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported envelope type %T", datas[0])
	}
}

// decodeInterests handles the shapes of a reConnect declaration: a bare
// array, an object with a "data" array (the original client's shape), or
// an object naming a stored profile to seed from.
func decodeInterests(datas []any, profiles core.ProfileStore) ([]string, error) {
	if len(datas) == 0 {
		return nil, fmt.Errorf("interests are required")
	}

	switch data := datas[0].(type) {
	case []any:
		return toInterestList(data)
	case map[string]any:
		if list, ok := data["data"].([]any); ok {
			return toInterestList(list)
		}
		if profileID, ok := data["profile"].(string); ok && profileID != "" {
			if profiles == nil {
				return nil, fmt.Errorf("profile store not configured")
			}
			interests, err := profiles.GetInterests(context.Background(), profileID)
			if err != nil {
				return nil, fmt.Errorf("profile %s: %w", profileID, err)
			}
			return interests, nil
		}
		return nil, fmt.Errorf("declaration carries neither interests nor a profile")
	default:
		return nil, fmt.Errorf("unsupported declaration type %T", datas[0])
	}
}

func toInterestList(raw []any) ([]string, error) {
	interests := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("interest %v is not a string", item)
		}
		interests = append(interests, s)
	}
	return interests, nil
}
