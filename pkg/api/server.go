package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/swapline/relayer/pkg/notify"
	"github.com/swapline/relayer/pkg/pool"
	"github.com/swapline/relayer/pkg/relay"
)

// Server handles REST API and WebSocket connections
type Server struct {
	svc    *relay.Service
	engine *relay.Engine
	pools  *pool.Registry
	queue  *relay.Queue
	hub    *notify.Hub
	wsHub  *Hub
	router *mux.Router
	log    *zap.SugaredLogger
}

// NewServer creates a new API server
func NewServer(svc *relay.Service, engine *relay.Engine, pools *pool.Registry,
	queue *relay.Queue, hub *notify.Hub, log *zap.SugaredLogger) *Server {
	s := &Server{
		svc:    svc,
		engine: engine,
		pools:  pools,
		queue:  queue,
		hub:    hub,
		wsHub:  NewWSHub(log),
		router: mux.NewRouter(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order intake and queries
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	// Static pool configuration
	api.HandleFunc("/pools", s.handleGetPools).Methods("GET")

	// Engine progress
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub, the hub bridge and the HTTP listener.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	go s.bridgeNotifications()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

// bridgeNotifications forwards every order transition from the internal
// hub to WebSocket channels: the global "orders" feed and "order:<id>".
func (s *Server) bridgeNotifications() {
	sub := s.hub.Subscribe(notify.TopicGlobal)
	defer sub.Close()
	for ev := range sub.C {
		s.wsHub.BroadcastToChannel(notify.TopicGlobal, ev)
		s.wsHub.BroadcastToChannel(notify.OrderTopic(ev.OrderID), ev)
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.User) {
		respondError(w, http.StatusBadRequest, "invalid user address", "")
		return
	}
	if req.AmountIn == 0 {
		respondError(w, http.StatusBadRequest, "amountIn must be positive", "")
		return
	}

	receipt, err := s.svc.Submit(r.Context(), relay.Submission{
		PoolID:       req.PoolID,
		User:         common.HexToAddress(req.User),
		AmountIn:     req.AmountIn,
		MinAmountOut: req.MinAmountOut,
		IsBaseInput:  req.IsBaseInput,
		Nonce:        req.Nonce,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, SubmitOrderResponse{
		OrderID:              receipt.Order.ID,
		Status:               receipt.Order.Status.String(),
		Fee:                  receipt.Fee.String(),
		EstimatedExecutionMs: receipt.EstimatedExecution.Milliseconds(),
		Sequence:             receipt.Order.Sequence,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ord, err := s.svc.Status(id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, viewOf(ord))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	proof, err := hexutil.Decode(req.Proof)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid proof encoding", err.Error())
		return
	}

	ord, err := s.svc.Cancel(r.Context(), id, proof)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, CancelOrderResponse{
		OrderID:  ord.ID,
		Status:   ord.Status.String(),
		Refunded: true,
	})
}

func (s *Server) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools := s.pools.List()
	response := make([]PoolInfo, len(pools))
	for i, p := range pools {
		response[i] = PoolInfo{
			ID:        p.ID,
			BaseMint:  p.BaseMint,
			QuoteMint: p.QuoteMint,
			FeeBps:    p.FeeBps,
			Enabled:   p.Enabled,
			MinAmount: p.MinAmount,
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, RelayerStatus{
		Cursor:   s.engine.Cursor().Current(),
		Inflight: s.engine.Gate().InUse(),
		QueueLen: s.queue.Len(),
		Metrics:  s.engine.Metrics(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// respondServiceError maps typed relay errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrUnknownOrder):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, relay.ErrDuplicateSubmission):
		respondError(w, http.StatusConflict, "duplicate submission", err.Error())
	case errors.Is(err, relay.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "too late to cancel", err.Error())
	case errors.Is(err, relay.ErrBadCancelProof):
		respondError(w, http.StatusForbidden, "invalid cancel proof", err.Error())
	case errors.Is(err, pool.ErrUnknownPool), errors.Is(err, pool.ErrPoolDisabled):
		respondError(w, http.StatusBadRequest, "pool unavailable", err.Error())
	default:
		s.log.Errorw("request_failed", "err", err)
		respondError(w, http.StatusBadGateway, "relay error", err.Error())
	}
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
