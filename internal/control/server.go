// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
)

// ErrNoPortAvailable mirrors internal/rpc's sentinel for the one failure
// mode a caller commonly needs to distinguish: the socket path is already
// bound by another process.
var ErrNoPortAvailable = errors.New("control: socket already in use")

// HandlerFunc answers one control request's Params and returns a result to
// be marshaled into the Response, or an error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Server accepts connections on a Unix domain socket and dispatches each
// line-delimited JSON Request to a registered HandlerFunc, replying with a
// line-delimited JSON Response. One connection can carry many requests
// sequentially; it is not a streaming RPC, just a cheap local transport in
// the same envelope shape as internal/rpc/protocol.go's Message.
type Server struct {
	socketPath string
	listener   net.Listener
	handlers   map[string]HandlerFunc
	logger     *slog.Logger
}

// NewServer returns a Server bound to no socket yet; call Listen then Serve.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]HandlerFunc),
		logger:     logger,
	}
}

// Handle registers fn for method. Calling Handle after Listen is a
// programmer error; register every method before Serve.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.handlers[method] = fn
}

// Listen binds the Unix socket, removing a stale socket file left behind
// by a crashed process first.
func (s *Server) Listen() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("control: remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoPortAvailable, s.socketPath)
	}
	s.listener = listener
	return nil
}

// Serve accepts connections until ctx is cancelled. It always returns nil
// on a clean shutdown; listener.Accept errors after Close are expected and
// swallowed.
func (s *Server) Serve(ctx context.Context) error {
	defer os.Remove(s.socketPath)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("control: accept: %w", err)
			}
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(errorResponse("", "invalid_request", err.Error()))
			continue
		}

		resp := s.handle(ctx, req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("control: write response failed", slog.Any("error", err))
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) *Response {
	fn, ok := s.handlers[req.Method]
	if !ok {
		return errorResponse(req.ID, "method_not_found", ErrMethodNotFound.Error())
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		return errorResponse(req.ID, "handler_error", err.Error())
	}

	resp, err := successResponse(req.ID, result)
	if err != nil {
		return errorResponse(req.ID, "marshal_error", err.Error())
	}
	return resp
}
