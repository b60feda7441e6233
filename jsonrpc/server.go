package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"

	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

const (
	parseErrorCode     = -32700
	invalidRequestCode = -32600
	methodNotFoundCode = -32601
	invalidParamsCode  = -32602
	bridgeErrorCode    = -32000

	maxRequestBodySize = 1 << 20
	readHeaderTimeout  = 10 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is a JSON RPC 2.0 request
type Request struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      interface{}           `json:"id"`
	Method  string                `json:"method"`
	Params  []jsoniter.RawMessage `json:"params,omitempty"`
}

// Response is a JSON RPC 2.0 response
type Response struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ObjectError `json:"error,omitempty"`
}

// ObjectError is the error object of a response. Data holds the bridge result code of failed queries.
type ObjectError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

type handlerFn func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error)

// Server serves the bridge_ endpoint over HTTP
type Server struct {
	handlers map[string]handlerFn
	logger   hclog.Logger

	server   *http.Server
	listener net.Listener
}

// NewServer creates a server for the given endpoint
func NewServer(endpoint *Bridge, logger hclog.Logger) *Server {
	s := &Server{
		handlers: endpointHandlers(endpoint),
		logger:   logger.Named("jsonrpc"),
	}

	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start listens on addr and serves requests in the background
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = lis

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("json rpc server stopped", "err", err)
		}
	}()

	s.logger.Info("json rpc server started", "addr", lis.Addr().String())

	return nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Close gracefully stops the server
func (s *Server) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	resp := s.handle(r.Context(), body)

	raw, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(raw); err != nil {
		s.logger.Debug("failed to write response", "err", err)
	}
}

func (s *Server) handle(ctx context.Context, body []byte) *Response {
	var req Request

	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, &ObjectError{Code: parseErrorCode, Message: err.Error()})
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, &ObjectError{Code: invalidRequestCode, Message: "invalid json rpc request"})
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		return errorResponse(req.ID, &ObjectError{
			Code:    methodNotFoundCode,
			Message: fmt.Sprintf("the method %s does not exist/is not available", req.Method),
		})
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		var objErr *ObjectError
		if errors.As(err, &objErr) {
			return errorResponse(req.ID, objErr)
		}

		s.logger.Debug("request failed", "method", req.Method, "err", err)

		return errorResponse(req.ID, &ObjectError{
			Code:    bridgeErrorCode,
			Message: err.Error(),
			Data:    types.ResultCode(err),
		})
	}

	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func errorResponse(id interface{}, err *ObjectError) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: err}
}

// decodeParams decodes positional params into targets, the first required of them are mandatory
func decodeParams(params []jsoniter.RawMessage, required int, targets ...interface{}) error {
	if len(params) < required || len(params) > len(targets) {
		return &ObjectError{
			Code:    invalidParamsCode,
			Message: fmt.Sprintf("expected between %d and %d params, got %d", required, len(targets), len(params)),
		}
	}

	for i, param := range params {
		if err := json.Unmarshal(param, targets[i]); err != nil {
			return &ObjectError{
				Code:    invalidParamsCode,
				Message: fmt.Sprintf("invalid param %d: %v", i, err),
			}
		}
	}

	return nil
}

func endpointHandlers(b *Bridge) map[string]handlerFn {
	noParams := func(fn func(ctx context.Context) (interface{}, error)) handlerFn {
		return func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			if err := decodeParams(params, 0); err != nil {
				return nil, err
			}

			return fn(ctx)
		}
	}

	return map[string]handlerFn{
		"bridge_params":             noParams(b.Params),
		"bridge_gravityParams":      noParams(b.GravityParams),
		"bridge_tokenMappings":      noParams(b.TokenMappings),
		"bridge_lastRevertedNonce":  noParams(b.LastRevertedNonce),
		"bridge_lastExternalHeight": noParams(b.LastExternalHeight),
		"bridge_valset":             noParams(b.Valset),
		"bridge_externalToken": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var denom string
			if err := decodeParams(params, 1, &denom); err != nil {
				return nil, err
			}

			return b.ExternalToken(ctx, denom)
		},
		"bridge_contractByDenom": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var denom string
			if err := decodeParams(params, 1, &denom); err != nil {
				return nil, err
			}

			return b.ContractByDenom(ctx, denom)
		},
		"bridge_denomByContract": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var contract ethgo.Address
			if err := decodeParams(params, 1, &contract); err != nil {
				return nil, err
			}

			return b.DenomByContract(ctx, contract)
		},
		"bridge_batches": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var filter *string
			if err := decodeParams(params, 0, &filter); err != nil {
				return nil, err
			}

			return b.Batches(ctx, filter)
		},
		"bridge_signedBatch": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var (
				token ethgo.Address
				nonce uint64
			)
			if err := decodeParams(params, 2, &token, &nonce); err != nil {
				return nil, err
			}

			return b.SignedBatch(ctx, token, nonce)
		},
		"bridge_pendingTransfers": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var token ethgo.Address
			if err := decodeParams(params, 1, &token); err != nil {
				return nil, err
			}

			return b.PendingTransfers(ctx, token)
		},
		"bridge_revertedVoucher": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var nonce uint64
			if err := decodeParams(params, 1, &nonce); err != nil {
				return nil, err
			}

			return b.RevertedVoucher(ctx, nonce)
		},
		"bridge_attestation": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var (
				nonce uint64
				space *string
			)
			if err := decodeParams(params, 1, &nonce, &space); err != nil {
				return nil, err
			}

			return b.Attestation(ctx, nonce, space)
		},
		"bridge_invalidClaims": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var space *string
			if err := decodeParams(params, 0, &space); err != nil {
				return nil, err
			}

			return b.InvalidClaims(ctx, space)
		},
		"bridge_balance": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var (
				account ethgo.Address
				asset   string
			)
			if err := decodeParams(params, 2, &account, &asset); err != nil {
				return nil, err
			}

			return b.Balance(ctx, account, asset)
		},
		"bridge_supply": func(ctx context.Context, params []jsoniter.RawMessage) (interface{}, error) {
			var asset string
			if err := decodeParams(params, 1, &asset); err != nil {
				return nil, err
			}

			return b.Supply(ctx, asset)
		},
	}
}
