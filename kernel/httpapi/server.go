package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/handler"
	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes    = 64 << 10
	requestIdHeader = "X-Request-Id"
	requestTimeout  = 5 * time.Minute
)

// Server exposes every registered operation at /<name>, shaped like the API Gateway
// proxy integration the handlers were written for.
type Server struct {
	registry *handler.Registry
	auth     *BasicAuth
}

func New(registry *handler.Registry, cfg config.ServeConfig) *Server {
	return &Server{registry: registry, auth: NewBasicAuth(cfg.AdminUser, cfg.AdminPasswordHash)}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	for _, name := range s.registry.Names() {
		mux.Handle("/"+name, s.auth.Middleware(s.operation(name)))
	}
	return s.logRequests(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, handler.OK(handler.Payload{"ok": true}))
}

func (s *Server) operation(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// preflight never reaches handlers with side effects
		if r.Method == http.MethodOptions && name != handler.NameRegister {
			writeResponse(w, handler.OK(handler.Payload{"message": "OK"}))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeResponse(w, handler.JSON(http.StatusRequestEntityTooLarge, handler.Payload{"message": "Request body too large."}))
			return
		}

		event := handler.NewEvent(r.Method, string(body), handler.MetaOf(clientIp(r), r.UserAgent(), requestId(r)))
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		resp, err := s.registry.Dispatch(ctx, name, event)
		if err != nil {
			writeResponse(w, handler.JSON(http.StatusNotFound, handler.Payload{"message": "Not Found", "error": err.Error()}))
			return
		}
		writeResponse(w, resp)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		pfxlog.Logger().WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeResponse(w http.ResponseWriter, resp *handler.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

func clientIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestId(r *http.Request) string {
	if id := r.Header.Get(requestIdHeader); id != "" {
		return id
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
