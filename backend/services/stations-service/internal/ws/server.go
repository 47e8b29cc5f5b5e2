package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vego/backend/services/stations-service/internal/feed"
)

// Server upgrades HTTP connections to WebSockets for the live station feed.
type Server struct {
	hub          *Hub
	stationFeed  *feed.Feed
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(hub *Hub, stationFeed *feed.Feed, writeTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		hub:          hub,
		stationFeed:  stationFeed,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for the feed endpoint. Every client receives
// the current snapshot on connect, then the full list on every change.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(clientID, conn, s.writeTimeout, s.logger, func(id string) {
		s.hub.Remove(id)
		cancel()
	})
	s.hub.Add(client)

	if frame, err := encodeStations(s.stationFeed.Snapshot()); err == nil {
		client.Send(frame)
	}

	go client.Start(ctx)
	s.logger.Info("feed client connected", zap.String("client_id", clientID))
}
