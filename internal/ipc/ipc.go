// Package ipc is the local control channel between emo-bridgectl and the
// daemon: one JSON request and one JSON response per unix socket connection.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/emo-bridge.sock"

// Request is a control command. Arg carries the persona name for
// "persona" and the text for "say".
type Request struct {
	Cmd string `json:"cmd"` // start, stop, status, persona, say, reload
	Arg string `json:"arg,omitempty"`
}

// Response reports the outcome. Status is filled for "status" requests,
// Text for commands that produce output.
type Response struct {
	OK     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	Text   string  `json:"text,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Status is a snapshot of the daemon for the CLI.
type Status struct {
	Running bool   `json:"running"`
	State   string `json:"state"`
	Persona string `json:"persona"`
	Uptime  string `json:"uptime"`
}

// Handler processes one control request.
type Handler func(Request) Response

// Server accepts control connections on a unix socket.
type Server struct {
	ln      net.Listener
	path    string
	handler Handler
}

// Listen binds the socket, removing a stale one from a previous run.
func Listen(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	s := &Server{ln: ln, path: path, handler: handler}
	go s.acceptLoop()
	return s, nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		json.NewEncoder(conn).Encode(Response{Error: "bad request: " + err.Error()})
		return
	}

	json.NewEncoder(conn).Encode(s.handler(req))
}

// Close stops accepting and removes the socket file.
func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

// Send dials the daemon socket, sends one request and reads the response.
func Send(path string, req Request) (Response, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return Response{}, fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
