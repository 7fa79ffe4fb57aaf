package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ironsheep/retina-explain-mcp/internal/analysis"
	"github.com/ironsheep/retina-explain-mcp/internal/imaging"
	"github.com/ironsheep/retina-explain-mcp/internal/inference"
	"github.com/ironsheep/retina-explain-mcp/internal/ocr"
	"github.com/ironsheep/retina-explain-mcp/internal/store"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "retina-explain-mcp"
)

// Predictor is a prediction-only classifier backend such as the ONNX
// runtime predictor.
type Predictor interface {
	Predict(input []float32) (*inference.Prediction, error)
	InputSize() int
}

// Server handles MCP protocol communication
type Server struct {
	cache     *imaging.ImageCache
	analyzer  *analysis.Service
	patients  store.PatientRepository
	analyses  store.AnalysisRepository
	predictor Predictor
	ocrLang   string
	version   string
	logger    *zap.Logger
	in        io.Reader
	out       io.Writer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRepositories sets the patient and analysis stores used by the record
// tools.
func WithRepositories(p store.PatientRepository, a store.AnalysisRepository) Option {
	return func(s *Server) {
		s.patients = p
		s.analyses = a
	}
}

// WithPredictor enables the "onnx" backend of scan_classify.
func WithPredictor(p Predictor) Option {
	return func(s *Server) { s.predictor = p }
}

// WithOCRLanguage sets the default Tesseract language.
func WithOCRLanguage(lang string) Option {
	return func(s *Server) { s.ocrLang = lang }
}

// WithVersion sets the version reported on initialize.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server for analyzer. Without WithRepositories the record
// tools use fresh in-memory stores.
func New(analyzer *analysis.Service, opts ...Option) *Server {
	s := &Server{
		cache:    imaging.NewImageCache(),
		analyzer: analyzer,
		ocrLang:  ocr.DefaultLanguage,
		version:  "dev",
		logger:   zap.NewNop(),
		in:       os.Stdin,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.patients == nil {
		s.patients = store.NewMemoryPatientRepository()
	}
	if s.analyses == nil {
		s.analyses = store.NewMemoryAnalysisRepository()
	}
	return s
}

// Run reads requests line by line until the input closes or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// scans arrive as paths, but data URLs in arguments can be large
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	encoder := json.NewEncoder(s.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", zap.Error(err))
			if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
				s.logger.Error("failed to encode response", zap.Error(err))
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to encode response", zap.Error(err))
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.logger.Debug("request", zap.String("method", req.Method), zap.Any("id", req.ID))
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    serverName,
				"version": s.version,
			},
		},
	}
}
