package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/communication"
	"github.com/bgocumlu/juke/server/src/download"
	"github.com/bgocumlu/juke/server/src/logger"
	"github.com/bgocumlu/juke/server/src/media"
	"github.com/bgocumlu/juke/server/src/store"
)

const (
	// Ambient per-IP ceiling across /api, separate from the much
	// stricter download admission window.
	apiRequestLimit  = 600
	apiRequestWindow = time.Minute

	restAwaitTimeout = 10 * time.Minute
	shutdownTimeout  = 10 * time.Second
)

// Downloads is the slice of the ingest queue the REST layer uses.
type Downloads interface {
	Submit(videoID string, format string) string
	Await(taskID string, timeout time.Duration) (*download.Result, error)
	Status(taskID string) (*download.TaskStatus, error)
}

// Limiter admits or rejects download requests per identity.
type Limiter interface {
	Allow(identity string) bool
	RetryAfter(identity string) time.Duration
}

// Server is the public HTTP surface: room listings, the websocket
// entry point and the media ingest endpoints.
type Server struct {
	registry  *communication.Registry
	sessions  *communication.SessionServer
	blobs     store.BlobStore
	provider  media.Provider
	downloads Downloads
	limiter   Limiter
	clock     clock.Clock
	maxMB     int

	host string
	port uint16
	cert string
	key  string

	httpServer *http.Server
	stopSignal chan os.Signal
	errChannel chan error
}

type Options struct {
	Host  string
	Port  uint16
	Cert  string
	Key   string
	MaxMB int
}

func NewServer(registry *communication.Registry, sessions *communication.SessionServer, blobs store.BlobStore,
	provider media.Provider, downloads Downloads, admission Limiter, clk clock.Clock, options Options) *Server {
	server := &Server{
		registry:   registry,
		sessions:   sessions,
		blobs:      blobs,
		provider:   provider,
		downloads:  downloads,
		limiter:    admission,
		clock:      clk,
		maxMB:      options.MaxMB,
		host:       options.Host,
		port:       options.Port,
		cert:       options.Cert,
		key:        options.Key,
		stopSignal: make(chan os.Signal, 1),
		errChannel: make(chan error, 1),
	}
	signal.Notify(server.stopSignal, os.Interrupt)

	server.httpServer = &http.Server{
		Handler:     server.Router(),
		ReadTimeout: 10 * time.Second,
	}
	return server
}

func (server *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Get("/ws/{slug}", server.handleWebsocket)

	router.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(apiRequestLimit, apiRequestWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Get("/rooms", server.handleListRooms)
		r.Get("/rooms/{slug}/users", server.handleRoomUsers)

		r.Route("/youtube", func(r chi.Router) {
			r.Get("/search", server.handleSearch)
			r.Get("/info/{videoID}", server.handleInfo)
			r.Post("/download", server.handleDownload)
			r.Get("/download-url/{videoID}", server.handleDownloadURL)
			r.Get("/status/{taskID}", server.handleTaskStatus)
		})

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", server.handleListSongs)
			r.Get("/search", server.handleSearchSongs)
			r.Get("/{filename}", server.handleGetSong)
			r.Delete("/{filename}", server.handleDeleteSong)
		})
	})

	return router
}

func (server *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	server.sessions.Handle(w, r, chi.URLParam(r, "slug"))
}

// Listen serves until interrupted, with TLS when both cert and key are
// configured, then drains connections.
func (server *Server) Listen() error {
	listener, err := server.getListener(server.cert != "" && server.key != "")
	if err != nil {
		return err
	}

	go func() {
		server.errChannel <- server.httpServer.Serve(listener)
	}()

	select {
	case err := <-server.errChannel:
		logger.Warnw("Failed to serve", "error", err)
	case sig := <-server.stopSignal:
		logger.Infow("Terminating server", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.httpServer.Shutdown(ctx)
}

func (server *Server) getListener(useTLS bool) (net.Listener, error) {
	hostPort := fmt.Sprintf("%s:%d", server.host, server.port)

	var listener net.Listener
	var err error
	if useTLS {
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(server.cert, server.key)
		if err != nil {
			logger.Errorw("Failed to load certificate", "error", err)
			return nil, err
		}
		listener, err = tls.Listen("tcp", hostPort, &tls.Config{Certificates: []tls.Certificate{cert}})
	} else {
		listener, err = net.Listen("tcp", hostPort)
	}

	if err != nil {
		logger.Errorw("Failed to create listener", "error", err)
		return nil, err
	}
	logger.Infow("Listening on port", "port", hostPort)
	return listener, nil
}

func (server *Server) Stop() {
	server.stopSignal <- os.Interrupt
}
