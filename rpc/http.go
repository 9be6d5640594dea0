package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stablemint/engine"
	"stablemint/observability"
	"stablemint/oracle"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeEngineBusy     = -32010

	codeValidation        = -32030
	codeOracle            = -32031
	codeArithmetic        = -32032
	codeTransferFailed    = -32033
	codeHealthFactor      = -32034
	codeHealthFactorOk    = -32035
	codeNotImproved       = -32036
	codeInsufficientFunds = -32037
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// Server exposes the solvency engine over JSON-RPC 2.0. Mutating methods
// require the shared bearer token when one is configured; read methods are
// open.
type Server struct {
	engine    *engine.Engine
	authToken string
	logger    *slog.Logger
}

func NewServer(eng *engine.Engine, authToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, authToken: strings.TrimSpace(authToken), logger: logger}
}

// Router mounts the JSON-RPC endpoint next to health and metrics handlers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handleRPC)
	return r
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
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
	method := strings.TrimSpace(req.Method)
	handler, ok := s.methods()[method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", method)
		return
	}
	if mutatingMethods[method] && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token", nil)
		return
	}

	start := time.Now()
	result, err := handler(&req)
	observability.Engine().Observe(method, start, err)
	if err != nil {
		status, code := classify(err)
		s.logger.Warn("rpc call failed", "method", method, "error", err)
		writeError(w, status, req.ID, code, err.Error(), errorData(err))
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

// classify maps engine taxonomy errors onto transport status and RPC codes.
func classify(err error) (int, int) {
	switch {
	case errors.Is(err, engine.ErrReentrantCall):
		return http.StatusConflict, codeEngineBusy
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrAssetNotApproved), errors.Is(err, engine.ErrAssetNotWired):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, oracle.ErrStaleOracleData), errors.Is(err, oracle.ErrInvalidOracleData), errors.Is(err, oracle.ErrUnknownFeed):
		return http.StatusServiceUnavailable, codeOracle
	case errors.Is(err, oracle.ErrArithmeticOverflow), errors.Is(err, oracle.ErrDivisionByZero):
		return http.StatusUnprocessableEntity, codeArithmetic
	case errors.Is(err, engine.ErrInsufficientCollateral), errors.Is(err, engine.ErrInsufficientDebt):
		return http.StatusUnprocessableEntity, codeInsufficientFunds
	case errors.Is(err, engine.ErrTransferFailed), errors.Is(err, engine.ErrMintFailed), errors.Is(err, engine.ErrBurnFailed):
		return http.StatusBadGateway, codeTransferFailed
	case errors.Is(err, engine.ErrHealthFactorBroken):
		return http.StatusUnprocessableEntity, codeHealthFactor
	case errors.Is(err, engine.ErrHealthFactorOk):
		return http.StatusUnprocessableEntity, codeHealthFactorOk
	case errors.Is(err, engine.ErrHealthFactorNotImproved):
		return http.StatusUnprocessableEntity, codeNotImproved
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

// errorData surfaces the offending health factor for programmatic callers.
func errorData(err error) interface{} {
	var hfErr *engine.HealthFactorError
	if errors.As(err, &hfErr) && hfErr.Value != nil {
		return map[string]string{"healthFactor": hfErr.Value.Dec()}
	}
	return nil
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}
