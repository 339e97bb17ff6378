package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swapline/relayer/pkg/crypto"
	"github.com/swapline/relayer/pkg/ledger"
	"github.com/swapline/relayer/pkg/notify"
	"github.com/swapline/relayer/pkg/pool"
	"github.com/swapline/relayer/pkg/relay"
	"github.com/swapline/relayer/pkg/util"
)

// stubGateway accepts placements and never executes; handler tests only
// exercise the intake surface.
type stubGateway struct {
	seq uint64
}

func (g *stubGateway) CurrentSequence(ctx context.Context) (uint64, error)  { return g.seq, nil }
func (g *stubGateway) ExecutedSequence(ctx context.Context) (uint64, error) { return 0, nil }
func (g *stubGateway) FetchOrder(ctx context.Context, seq uint64) (*ledger.OrderRecord, error) {
	return nil, nil
}
func (g *stubGateway) Place(ctx context.Context, req ledger.PlaceRequest) (ledger.PlaceReceipt, error) {
	g.seq++
	return ledger.PlaceReceipt{TxSignature: "place-sig", Sequence: g.seq}, nil
}
func (g *stubGateway) Submit(ctx context.Context, sp ledger.SignedPayload) (*ledger.SubmitResult, error) {
	return nil, &ledger.SubmitError{Class: ledger.Transient, Message: "not running"}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zap.NewNop().Sugar()
	clock := util.RealClock{}
	store := relay.NewStore(time.Minute, clock, nil, log)
	queue := relay.NewQueue()
	hub := notify.NewHub(log)
	gw := &stubGateway{}

	pools := pool.NewRegistry()
	require.NoError(t, pools.Register(&pool.Pool{
		ID: "SOL-USDC", BaseMint: "SOL", QuoteMint: "USDC",
		FeeBps: 30, Enabled: true, MinAmount: 1000,
	}))

	svc := relay.NewService(relay.ServiceConfig{}, store, queue, pools, gw, hub, clock, log)

	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	engine := relay.NewEngine(relay.DefaultEngineConfig(), store, queue, gw, signer, hub, clock, log)

	return NewServer(svc, engine, pools, queue, hub, log)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func submitTestOrder(t *testing.T, s *Server, user string, nonce uint64) SubmitOrderResponse {
	t.Helper()
	rr := doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		PoolID:       "SOL-USDC",
		User:         user,
		AmountIn:     1_000_000,
		MinAmountOut: 950_000,
		IsBaseInput:  true,
		Nonce:        nonce,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp SubmitOrderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestSubmitOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := submitTestOrder(t, s, "0x1111111111111111111111111111111111111111", 1)
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "3000", resp.Fee)
	assert.Equal(t, uint64(1), resp.Sequence)
	assert.Greater(t, resp.EstimatedExecutionMs, int64(0))
}

func TestSubmitOrderValidation(t *testing.T) {
	s := newTestServer(t)

	rr := doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		PoolID: "SOL-USDC", User: "not-an-address", AmountIn: 1_000_000,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		PoolID: "SOL-USDC", User: "0x1111111111111111111111111111111111111111",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "zero amountIn")

	rr = doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		PoolID: "NOPE", User: "0x1111111111111111111111111111111111111111", AmountIn: 1_000_000,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown pool")
}

func TestSubmitOrderDuplicateConflict(t *testing.T) {
	s := newTestServer(t)
	user := "0x1111111111111111111111111111111111111111"
	submitTestOrder(t, s, user, 7)

	rr := doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		PoolID: "SOL-USDC", User: user, AmountIn: 1_000_000, Nonce: 7,
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp := submitTestOrder(t, s, "0x1111111111111111111111111111111111111111", 1)

	rr := doJSON(t, s, http.MethodGet, "/api/v1/orders/"+resp.OrderID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view OrderView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, resp.OrderID, view.OrderID)
	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, uint64(1_000_000), view.AmountIn)

	rr = doJSON(t, s, http.MethodGet, "/api/v1/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	user, err := crypto.GenerateKey()
	require.NoError(t, err)
	resp := submitTestOrder(t, s, user.Address().Hex(), 1)

	hash := ethcrypto.Keccak256Hash([]byte("cancel:" + resp.OrderID))
	proof, err := user.Sign(hash.Bytes())
	require.NoError(t, err)

	// Wrong signer first: forbidden, order stays pending.
	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)
	badProof, err := stranger.Sign(hash.Bytes())
	require.NoError(t, err)
	rr := doJSON(t, s, http.MethodPost, "/api/v1/orders/"+resp.OrderID+"/cancel",
		CancelOrderRequest{Proof: hexutil.Encode(badProof)})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+resp.OrderID+"/cancel",
		CancelOrderRequest{Proof: hexutil.Encode(proof)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cancelResp CancelOrderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cancelResp))
	assert.Equal(t, "cancelled", cancelResp.Status)

	// A second cancel is too late: the order already left Pending.
	rr = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+resp.OrderID+"/cancel",
		CancelOrderRequest{Proof: hexutil.Encode(proof)})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestPoolsAndStatusEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := doJSON(t, s, http.MethodGet, "/api/v1/pools", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var pools []PoolInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pools))
	require.Len(t, pools, 1)
	assert.Equal(t, "SOL-USDC", pools[0].ID)

	rr = doJSON(t, s, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var status RelayerStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Zero(t, status.Cursor)
	assert.Zero(t, status.Inflight)

	rr = doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
