package communication

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/download"
	"github.com/bgocumlu/juke/server/src/logger"
)

const writeTimeout = 10 * time.Second

type WebsocketReaderWriter interface {
	WriteMessage(payload []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

type WsReaderWriter struct {
	conn *websocket.Conn
}

func NewWsReaderWriter(conn *websocket.Conn) WebsocketReaderWriter {
	return WsReaderWriter{conn: conn}
}

// ReadMessage blocks until the client sends or the connection dies.
// Idle listeners stay connected indefinitely.
func (webSocket WsReaderWriter) ReadMessage() ([]byte, error) {
	_, payload, err := webSocket.conn.Read(context.Background())
	return payload, err
}

func (webSocket WsReaderWriter) WriteMessage(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	return webSocket.conn.Write(ctx, websocket.MessageText, payload)
}

func (webSocket WsReaderWriter) Close() error {
	return webSocket.conn.Close(websocket.StatusNormalClosure, "")
}

// SessionServer upgrades HTTP requests to websocket sessions and hands
// each one to a worker bound to the requested room.
type SessionServer struct {
	registry  *Registry
	downloads Ingestor
	inflight  *download.Inflight
	clock     clock.Clock
}

func NewSessionServer(registry *Registry, downloads Ingestor, inflight *download.Inflight, clk clock.Clock) *SessionServer {
	return &SessionServer{registry: registry, downloads: downloads, inflight: inflight, clock: clk}
}

func (server *SessionServer) Handle(w http.ResponseWriter, r *http.Request, slug string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		logger.Warnw("Failed to establish connection to client socket", "error", err)
		return
	}

	room := server.registry.GetOrCreate(slug)
	ip, port := clientAddr(r)
	name := r.URL.Query().Get("name")

	logger.Infow("New connection established, creating new worker", "room", slug, "ip", ip)
	worker := NewWorker(room, server.registry, NewWsReaderWriter(conn), server.downloads, server.inflight, server.clock, name, ip, port)
	go worker.Start()
}

// clientAddr prefers the first X-Forwarded-For hop so sessions behind
// a proxy still get per-client download limits.
func clientAddr(r *http.Request) (string, int) {
	host, portString, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	port, _ := strconv.Atoi(portString)

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			host = first
		}
	}

	return host, port
}
