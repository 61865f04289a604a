package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"compactmcp/internal/logging"
	"compactmcp/internal/tools"
)

// maxLineBytes bounds one incoming JSON-RPC message. Inline contract
// sources arrive inside tools/call arguments, so this is generous.
const maxLineBytes = 8 << 20

// Server serves the tool registry over one stdio connection.
type Server struct {
	name     string
	version  string
	registry *tools.Registry

	in  io.Reader
	out io.Writer

	writeMu     sync.Mutex
	initialized bool
}

// NewServer creates a server for the given registry. in and out are
// usually os.Stdin and os.Stdout.
func NewServer(name, version string, registry *tools.Registry, in io.Reader, out io.Writer) *Server {
	return &Server{
		name:     name,
		version:  version,
		registry: registry,
		in:       in,
		out:      out,
	}
}

// Serve reads requests until EOF or context cancellation. Malformed
// lines produce JSON-RPC errors instead of killing the connection.
func (s *Server) Serve(ctx context.Context) error {
	logging.Server("serving %d tools over stdio", s.registry.Count())

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			logging.Get(logging.CategoryServer).Warn("unparseable request: %v", err)
			s.writeError(json.RawMessage("null"), codeParseError, "parse error")
			continue
		}
		s.dispatch(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("request exceeds %d bytes: %w", maxLineBytes, err)
		}
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	logging.Server("client closed the connection")
	return nil
}

func (s *Server) dispatch(ctx context.Context, req *request) {
	logging.ServerDebug("request method=%s notification=%v", req.Method, req.isNotification())

	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "notifications/initialized":
		s.initialized = true
		logging.Server("client completed the initialize handshake")
	case "ping":
		s.writeResult(req.ID, map[string]any{})
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		if req.isNotification() {
			logging.ServerDebug("ignoring notification %s", req.Method)
			return
		}
		s.writeError(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *request) {
	s.writeResult(req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		ServerInfo: serverInfo{Name: s.name, Version: s.version},
	})
}

// inputSchema is the JSON-schema wrapper MCP expects around a tool's
// parameter properties.
type inputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]tools.Property `json:"properties"`
	Required   []string                  `json:"required"`
}

func (s *Server) handleToolsList(req *request) {
	all := s.registry.All()
	descriptors := make([]toolDescriptor, 0, len(all))
	for _, t := range all {
		required := t.Schema.Required
		if required == nil {
			required = []string{}
		}
		properties := t.Schema.Properties
		if properties == nil {
			properties = map[string]tools.Property{}
		}
		schema, err := json.Marshal(inputSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		})
		if err != nil {
			s.writeError(req.ID, codeInternalError, fmt.Sprintf("failed to encode schema for %s", t.Name))
			return
		}
		descriptors = append(descriptors, toolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	s.writeResult(req.ID, map[string]any{"tools": descriptors})
}

func (s *Server) handleToolsCall(ctx context.Context, req *request) {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		s.writeError(req.ID, codeInvalidParams, "tools/call needs a tool name and arguments object")
		return
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	res, err := s.registry.Execute(ctx, params.Name, params.Arguments)
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		s.writeError(req.ID, codeInvalidParams, err.Error())
	case errors.Is(err, tools.ErrMissingRequiredArg), errors.Is(err, tools.ErrInvalidArgType):
		s.writeError(req.ID, codeInvalidParams, err.Error())
	case err != nil:
		// The model should see tool failures and adapt, so they travel
		// as isError content rather than protocol errors.
		s.writeResult(req.ID, callResult{
			Content: []contentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	default:
		s.writeResult(req.ID, callResult{
			Content: []contentBlock{{Type: "text", Text: res.Result}},
		})
	}
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	s.write(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	s.write(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Get(logging.CategoryServer).Error("failed to encode response: %v", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		logging.Get(logging.CategoryServer).Error("failed to write response: %v", err)
	}
}
