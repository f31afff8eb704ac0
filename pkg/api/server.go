// Package api exposes the fill engine over REST plus a WebSocket stream of
// fill events. The engine itself stores no orders; callers always present a
// complete signed order with each request.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quillex/limitswap/pkg/exchange"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine *exchange.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
}

// NewServer creates an API server and wires the engine's fill events into
// the WebSocket hub
func NewServer(engine *exchange.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}

	engine.SetFillSink(func(ev exchange.FillEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error("failed to marshal fill event", zap.Error(err))
			return
		}
		s.hub.Broadcast(payload)
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Off-path verification endpoints
	api.HandleFunc("/domain", s.handleGetDomain).Methods("GET")
	api.HandleFunc("/orders/hash", s.handleHashOrder).Methods("POST")
	api.HandleFunc("/orders/verify", s.handleVerifyOrder).Methods("POST")

	// Fill entry point and fill-state query
	api.HandleFunc("/fill", s.handleFill).Methods("POST")
	api.HandleFunc("/orders/{hash}/fill", s.handleGetFillState).Methods("GET")

	// WebSocket fill-event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Code:  exchange.ErrorCode(err),
	})
}

func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	domain := s.engine.Domain()

	separator := ""
	if sep, err := s.engine.DomainSeparator(); err == nil {
		separator = hexutil.Encode(sep)
	}

	s.writeJSON(w, http.StatusOK, DomainInfo{
		Name:              domain.Name,
		Version:           domain.Version,
		ChainID:           domain.ChainID.String(),
		VerifyingContract: domain.VerifyingContract.Hex(),
		DomainSeparator:   separator,
	})
}

func (s *Server) handleHashOrder(w http.ResponseWriter, r *http.Request) {
	var order exchange.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	hash, err := s.engine.OrderHash(&order)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writeJSON(w, http.StatusOK, HashResponse{OrderHash: hash.Hex()})
}

func (s *Server) handleVerifyOrder(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	recovered, valid, err := s.engine.VerifyOrder(&req.Order, req.Signature)
	if err != nil {
		// malformed signatures verify as invalid, they are not server errors
		s.writeJSON(w, http.StatusOK, VerifyResponse{Valid: false})
		return
	}

	s.writeJSON(w, http.StatusOK, VerifyResponse{
		Recovered: recovered.Hex(),
		Valid:     valid,
	})
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.FillOrder(r.Context(), exchange.FillRequest{
		Order:        req.Order,
		Signature:    req.Signature,
		Taker:        req.Taker,
		MakingAmount: req.MakingAmount,
		TakingAmount: req.TakingAmount,
		AllowPartial: req.AllowPartial,
		AuxData:      req.AuxData,
	})
	if err != nil {
		s.writeError(w, fillStatus(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, FillResponse{
		OrderHash:    result.OrderHash.Hex(),
		MakingAmount: result.MakingAmount.String(),
		TakingAmount: result.TakingAmount.String(),
		FilledTotal:  result.FilledTotal.String(),
	})
}

// fillStatus maps taxonomy codes onto HTTP statuses: capacity conflicts are
// 409, everything else the caller got wrong is 400
func fillStatus(err error) int {
	switch exchange.ErrorCode(err) {
	case "Overfill", "PartialFillDenied":
		return http.StatusConflict
	case "Internal":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleGetFillState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash := common.HexToHash(vars["hash"])

	s.writeJSON(w, http.StatusOK, FillStateResponse{
		OrderHash: hash.Hex(),
		Filled:    s.engine.Filled(hash).String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
