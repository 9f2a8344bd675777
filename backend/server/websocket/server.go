// Package websocket is the transport adapter between browser clients
// and the room coordinator. It authenticates the credential before a
// session starts, keeps the connection alive with pings, validates
// inbound events and guarantees Disconnect fires exactly once per
// connection no matter how the socket dies.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dan-kuzbass/chess-stars/backend/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketMaxMessageSize     = 65536
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// Coordinator is the room lifecycle and routing surface this
	// adapter feeds. Events from one connection are dispatched in the
	// order they arrive.
	Coordinator interface {
		Connect(w model.Wire)
		Disconnect(connID string)
		Join(w model.Wire, roomID, identity, displayName, role string)
		Leave(connID, roomID string)
		Move(connID, roomID string, mv model.MovePayload)
		SetGameState(connID, roomID string, state json.RawMessage)
		Chat(connID, roomID, message string)
		Relay(connID, roomID, kind, targetIdentity string, payload json.RawMessage)
		Annotate(connID, roomID string, annotation json.RawMessage)
	}

	// CredentialVerifier turns an opaque client credential into a
	// verified identity, or fails.
	CredentialVerifier interface {
		Verify(token string) (model.Participant, error)
	}

	Config struct {
		Logger      *zerolog.Logger
		Coordinator Coordinator
		Verifier    CredentialVerifier
		ListenAddr  string
	}

	Server struct {
		coord    Coordinator
		verifier CredentialVerifier
		ws       *websocket.Upgrader
		*http.Server

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:   cfg.Logger.With().Str("component", "websocket-server").Logger(),
		coord:    cfg.Coordinator,
		verifier: cfg.Verifier,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/lesson", srv.session)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

// session authenticates the credential and hands the connection to the
// coordinator. An invalid credential is a connection-level error: the
// upgrade never happens and no room state is touched.
func (srv *Server) session(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	who, err := srv.verifier.Verify(token)
	if err != nil {
		srv.logger.Warn().Err(err).Msg("credential rejected")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	wire := model.NewWire(uuid.NewString())
	srv.coord.Connect(wire)

	srv.logger.Debug().
		Str("connID", wire.ConnID).
		Str("userID", who.Identity).
		Msg("session created")

	go srv.handleWSConn(conn, wire, who)
}

func (srv *Server) handleWSConn(conn *websocket.Conn, wire model.Wire, who model.Participant) {
	logger := srv.logger.With().
		Str("connID", wire.ConnID).
		Str("userID", who.Identity).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	wg.Add(2)
	go func() {
		srv.receiver(ctx, wg, conn, wire, who, &logger)
		cancel()
	}()
	go func() {
		srv.sender(ctx, wg, conn, wire.TX, &logger)
		cancel()
	}()

	wg.Wait()
	webSocketCloser(conn, &logger)
	srv.coord.Disconnect(wire.ConnID)
	logger.Debug().Msg("session ended")
}

// dispatch routes one validated inbound event into the coordinator.
// Identity fields always come from the authenticated session.
func (srv *Server) dispatch(wire model.Wire, who model.Participant, ev model.Event, logger *zerolog.Logger) {
	switch ev.Type {
	case model.EventJoinRoom:
		srv.coord.Join(wire, ev.RoomID, who.Identity, who.DisplayName, who.Role)
	case model.EventLeaveRoom:
		srv.coord.Leave(wire.ConnID, ev.RoomID)
	case model.EventChessMove:
		var mv model.MovePayload
		if err := json.Unmarshal(ev.Payload, &mv); err != nil {
			logger.Debug().Err(err).Msg("malformed move payload, dropped")
			return
		}
		srv.coord.Move(wire.ConnID, ev.RoomID, mv)
	case model.EventGameStateUpdate:
		srv.coord.SetGameState(wire.ConnID, ev.RoomID, ev.Payload)
	case model.EventChatMessage:
		var chat model.ChatPayload
		if err := json.Unmarshal(ev.Payload, &chat); err != nil || chat.Message == "" {
			logger.Debug().Msg("malformed chat payload, dropped")
			return
		}
		srv.coord.Chat(wire.ConnID, ev.RoomID, chat.Message)
	case model.EventOffer, model.EventAnswer, model.EventICECandidate:
		srv.coord.Relay(wire.ConnID, ev.RoomID, ev.Type, ev.Target, ev.Payload)
	case model.EventAnnotation:
		srv.coord.Annotate(wire.ConnID, ev.RoomID, ev.Payload)
	}
}

func (srv *Server) receiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	wire model.Wire,
	who model.Participant,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	if err := readDeadLineFunc(defaultPongWait); err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

RecvLoop:
	for {
		select {
		case <-ctx.Done():
			break RecvLoop
		default:
			_, msg, wsErr := conn.ReadMessage()
			if wsErr != nil {
				if websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					logger.Warn().Err(wsErr).Msg("connection closed")
				} else {
					logger.Error().Err(wsErr).Msg("unexpected error during receive")
				}
				break RecvLoop
			}

			var ev model.Event
			if wsErr = json.Unmarshal(msg, &ev); wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to unmarshall incoming event")
				continue
			}
			if err := model.ValidateInbound(ev); err != nil {
				logger.Debug().Err(err).Str("type", ev.Type).Msg("invalid event, dropped")
				continue
			}
			srv.dispatch(wire, who, ev, logger)
		}
	}
}

func (srv *Server) sender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	tx <-chan model.Event,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
			}
			logger.Trace().Msg("ping sent")

		case ev, ok := <-tx:
			if !ok {
				break SendLoop
			}

			b, wsErr := json.Marshal(&ev)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to marshall outgoing event")
				break SendLoop
			}

			wsErr = conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			if wsErr = conn.WriteMessage(websocket.TextMessage, b); wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing event")
				break SendLoop
			}
		}
	}
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage, []byte{})
		if wsErr != nil {
			logger.Error().Err(wsErr).Msg("failed to close websocket connection")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}
