package rpc

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tiergate/crypto"
	"tiergate/native/whitelist"
	"tiergate/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "TIERGATE_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the registry engine over JSON-RPC 2.0. Mutating methods
// require a bearer token (the external authentication collaborator) and are
// serialised by a single mutex so every call runs as one state transition.
type Server struct {
	engine    *whitelist.Engine
	logger    *slog.Logger
	metrics   *metrics.WhitelistMetrics
	authToken string

	mu sync.Mutex
}

// NewServer builds a server around the engine. The auth token is read from
// the TIERGATE_RPC_TOKEN environment variable.
func NewServer(engine *whitelist.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		logger:    logger,
		metrics:   metrics.Whitelist(),
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// Start serves JSON-RPC on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = "request body too large"
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	switch req.Method {
	case "wl_initialize":
		s.authenticated(w, r, &req, s.handleInitialize)
	case "wl_addToWhitelist":
		s.authenticated(w, r, &req, s.handleAddToWhitelist)
	case "wl_updateWhitelistEntry":
		s.authenticated(w, r, &req, s.handleUpdateWhitelistEntry)
	case "wl_removeFromWhitelist":
		s.authenticated(w, r, &req, s.handleRemoveFromWhitelist)
	case "wl_batchAddToWhitelist":
		s.authenticated(w, r, &req, s.handleBatchAddToWhitelist)
	case "wl_batchRemoveFromWhitelist":
		s.authenticated(w, r, &req, s.handleBatchRemoveFromWhitelist)
	case "wl_setTierPermissions":
		s.authenticated(w, r, &req, s.handleSetTierPermissions)
	case "wl_setMerkleRoot":
		s.authenticated(w, r, &req, s.handleSetMerkleRoot)
	case "wl_createSnapshot":
		s.authenticated(w, r, &req, s.handleCreateSnapshot)
	case "wl_transferAdmin":
		s.authenticated(w, r, &req, s.handleTransferAdmin)
	case "wl_isWhitelisted":
		s.handleIsWhitelisted(w, r, &req)
	case "wl_hasPermission":
		s.handleHasPermission(w, r, &req)
	case "wl_getWhitelistEntry":
		s.handleGetWhitelistEntry(w, r, &req)
	case "wl_getTierPermissions":
		s.handleGetTierPermissions(w, r, &req)
	case "wl_verifyMerkleProof":
		s.handleVerifyMerkleProof(w, r, &req)
	case "wl_getSnapshot":
		s.handleGetSnapshot(w, r, &req)
	case "wl_getAdmin":
		s.handleGetAdmin(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

// authenticated gates a mutating handler behind the bearer token and the
// server's write lock.
func (s *Server) authenticated(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func parseBech32Address(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.TGPrefix, addr[:]).String()
}

// parseHash32 decodes a 32-byte hex value, rejecting malformed lengths before
// they reach domain logic.
func parseHash32(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex value: %w", err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseProof(values []string) ([][32]byte, error) {
	proof := make([][32]byte, 0, len(values))
	for _, value := range values {
		element, err := parseHash32(value)
		if err != nil {
			return nil, err
		}
		proof = append(proof, element)
	}
	return proof, nil
}

func formatHash32(value [32]byte) string {
	return "0x" + hex.EncodeToString(value[:])
}

// singleParam unmarshals the one parameter object every wl_ method expects.
func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}
