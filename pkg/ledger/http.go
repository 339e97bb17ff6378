package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPGateway talks to a settlement node's relayer API over plain JSON,
// the same wire style the node exposes to frontends.
//
// Endpoints:
//
//	GET  /relayer/v1/sequence          -> {"sequence": N}
//	GET  /relayer/v1/orders/{seq}      -> OrderRecord | 404
//	POST /relayer/v1/orders            -> PlaceReceipt
//	POST /relayer/v1/execute           -> execute response (below)
//	GET  /relayer/v1/tx/{sig}          -> {"confirmed": bool, "amountOut": N}
type HTTPGateway struct {
	baseURL        string
	client         *http.Client
	confirmTimeout time.Duration
	confirmPoll    time.Duration
	log            *zap.SugaredLogger
}

type HTTPGatewayConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	ConfirmTimeout time.Duration
	Logger         *zap.SugaredLogger
}

func NewHTTPGateway(cfg HTTPGatewayConfig) *HTTPGateway {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}
	return &HTTPGateway{
		baseURL:        cfg.BaseURL,
		client:         &http.Client{Timeout: cfg.RequestTimeout},
		confirmTimeout: cfg.ConfirmTimeout,
		confirmPoll:    500 * time.Millisecond,
		log:            cfg.Logger,
	}
}

var _ Gateway = (*HTTPGateway)(nil)

// sequenceResponse mirrors GET /relayer/v1/sequence: the queue tail and
// the settled counter in one read.
type sequenceResponse struct {
	Sequence uint64 `json:"sequence"`
	Executed uint64 `json:"executed"`
}

func (g *HTTPGateway) CurrentSequence(ctx context.Context) (uint64, error) {
	var out sequenceResponse
	if err := g.getJSON(ctx, "/relayer/v1/sequence", &out); err != nil {
		return 0, err
	}
	return out.Sequence, nil
}

func (g *HTTPGateway) ExecutedSequence(ctx context.Context) (uint64, error) {
	var out sequenceResponse
	if err := g.getJSON(ctx, "/relayer/v1/sequence", &out); err != nil {
		return 0, err
	}
	return out.Executed, nil
}

func (g *HTTPGateway) FetchOrder(ctx context.Context, seq uint64) (*OrderRecord, error) {
	var rec OrderRecord
	err := g.getJSON(ctx, fmt.Sprintf("/relayer/v1/orders/%d", seq), &rec)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (g *HTTPGateway) Place(ctx context.Context, req PlaceRequest) (PlaceReceipt, error) {
	var receipt PlaceReceipt
	if err := g.postJSON(ctx, "/relayer/v1/orders", req, &receipt); err != nil {
		return PlaceReceipt{}, err
	}
	return receipt, nil
}

// executeResponse is the node's answer to an execution submission. A
// program-level rejection arrives as HTTP 200 with the error block filled.
type executeResponse struct {
	Signature string `json:"signature"`
	Confirmed bool   `json:"confirmed"`
	AmountOut uint64 `json:"amountOut"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *HTTPGateway) Submit(ctx context.Context, sp SignedPayload) (*SubmitResult, error) {
	var resp executeResponse
	if err := g.postJSON(ctx, "/relayer/v1/execute", sp, &resp); err != nil {
		return nil, AsTransient(err)
	}
	if resp.Error != nil {
		return nil, &SubmitError{
			Class:   ClassifyCode(resp.Error.Code),
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}
	if resp.Confirmed {
		return &SubmitResult{Signature: resp.Signature, Confirmed: true, AmountOut: resp.AmountOut}, nil
	}
	// Accepted but not yet final: poll for confirmation within the bound.
	return g.awaitConfirmation(ctx, resp.Signature)
}

func (g *HTTPGateway) awaitConfirmation(ctx context.Context, sig string) (*SubmitResult, error) {
	deadline := time.Now().Add(g.confirmTimeout)
	for {
		if time.Now().After(deadline) {
			return nil, &SubmitError{Class: Transient, Code: "confirm_timeout",
				Message: fmt.Sprintf("tx %s unconfirmed after %s", sig, g.confirmTimeout)}
		}
		select {
		case <-ctx.Done():
			return nil, AsTransient(ctx.Err())
		case <-time.After(g.confirmPoll):
		}

		var status struct {
			Confirmed bool   `json:"confirmed"`
			AmountOut uint64 `json:"amountOut"`
			Error     string `json:"error,omitempty"`
		}
		if err := g.getJSON(ctx, "/relayer/v1/tx/"+sig, &status); err != nil {
			if isNotFound(err) {
				continue // not indexed yet
			}
			return nil, AsTransient(err)
		}
		if status.Error != "" {
			return nil, &SubmitError{Class: ClassifyCode(status.Error), Code: status.Error,
				Message: "execution reverted on-ledger"}
		}
		if status.Confirmed {
			return &SubmitResult{Signature: sig, Confirmed: true, AmountOut: status.AmountOut}, nil
		}
	}
}

// ==============================
// HTTP helpers
// ==============================

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.status == http.StatusNotFound
}

func (g *HTTPGateway) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	return g.do(req, out)
}

func (g *HTTPGateway) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *HTTPGateway) do(req *http.Request, out interface{}) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode, body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
