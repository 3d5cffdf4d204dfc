// Package brokerclient is the HTTP+JSON transport for the brokerage's
// KIS-style wire protocol (spec §6): rt_cd/msg_cd status fields and
// output/output1/output2 result blocks, carried over resty. Grounded on
// the teacher's internal/trading/provider/trading_system_provider.go
// capability surface (PlaceOrder/GetPositions/GetAccountInfo/
// GetOrderStatus/CancelOrder), but the wire shape itself is new: none of
// the teacher's providers speak this protocol.
package brokerclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/kisquant/daytrader/pkg/errors"
)

// Response is the envelope every KIS-style endpoint returns.
type Response struct {
	RtCd    string          `json:"rt_cd"`
	MsgCd   string          `json:"msg_cd"`
	MsgTxt  string          `json:"msg1"`
	Output  json.RawMessage `json:"output,omitempty"`
	Output1 json.RawMessage `json:"output1,omitempty"`
	Output2 json.RawMessage `json:"output2,omitempty"`
}

// Success reports whether rt_cd signals application-level success.
func (r Response) Success() bool { return r.RtCd == "0" }

// SoftRetryable reports the EGW00201 soft-failure code, or a failure
// response missing every expected output block — a structurally
// incomplete response per spec §4.7.
func (r Response) SoftRetryable() bool {
	if r.MsgCd == "EGW00201" {
		return true
	}

	return !r.Success() && len(r.Output) == 0 && len(r.Output1) == 0 && len(r.Output2) == 0
}

// TokenExpired reports the EGW00123 code or either documented expired-
// token message text.
func (r Response) TokenExpired() bool {
	return r.MsgCd == "EGW00123" || containsAny(r.MsgTxt, "expired token", "기간이 만료된 token")
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(sub) > 0 && indexOf(s, sub) >= 0 {
			return true
		}
	}

	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}

	return -1
}

// APIError wraps a parsed Response that signaled an application-level
// failure, plus the HTTP status code, so callers can classify it without
// re-parsing the body.
type APIError struct {
	StatusCode int
	Response   Response
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brokerage api error: status=%d rt_cd=%s msg_cd=%s msg=%s", e.StatusCode, e.Response.RtCd, e.Response.MsgCd, e.Response.MsgTxt)
}

// Client is a thin resty wrapper over one of the two KIS-style base URLs
// (real or paper), selected at construction.
type Client struct {
	http *resty.Client
}

// New constructs a Client against baseURL.
func New(baseURL string) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL)}
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (Response, int, error) {
	req := c.http.R().SetContext(ctx)

	if token != "" {
		req = req.SetHeader("authorization", "Bearer "+token)
	}

	if body != nil {
		req = req.SetBody(body)
	}

	var resp *resty.Response

	var err error

	switch method {
	case "POST":
		resp, err = req.Post(path)
	case "GET":
		resp, err = req.Get(path)
	default:
		return Response{}, 0, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported http method %q", method)
	}

	if err != nil {
		return Response{}, 0, errors.Wrapf(errors.ErrCodeAPIRetryableFailure, err, "brokerage request to %s failed", path)
	}

	var parsed Response
	if jsonErr := json.Unmarshal(resp.Body(), &parsed); jsonErr != nil {
		return Response{}, resp.StatusCode(), errors.Wrapf(errors.ErrCodeAPINonRetryableFailure, jsonErr, "malformed brokerage response from %s", path)
	}

	return parsed, resp.StatusCode(), nil
}

// call runs one request and returns an *APIError if the envelope does not
// signal success, so LiveClient's classifier has a single error type to
// inspect.
func (c *Client) call(ctx context.Context, method, path, token string, body any) (Response, error) {
	resp, status, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return Response{}, err
	}

	if status >= 500 || status == 429 || !resp.Success() {
		return resp, &APIError{StatusCode: status, Response: resp}
	}

	return resp, nil
}

// OrderRequest is the submit-order request body.
type OrderRequest struct {
	Symbol   string `json:"pdno"`
	Side     string `json:"sll_buy_dvsn_cd"` // "01" sell, "02" buy, KIS-style codes
	Quantity int64  `json:"ord_qty"`
	Price    string `json:"ord_unpr"`
}

// orderOutput is the output block of a successful order submission.
type orderOutput struct {
	OrderID string `json:"ODNO"`
}

// PlaceOrder submits order and returns the brokerage-assigned order id.
func (c *Client) PlaceOrder(ctx context.Context, token string, req OrderRequest) (string, error) {
	resp, err := c.call(ctx, "POST", "/uapi/domestic-stock/v1/trading/order-cash", token, req)
	if err != nil {
		return "", err
	}

	var out orderOutput
	if jsonErr := json.Unmarshal(resp.Output, &out); jsonErr != nil {
		return "", errors.Wrapf(errors.ErrCodeAPINonRetryableFailure, jsonErr, "malformed order output block")
	}

	return out.OrderID, nil
}

// GetOrderStatus queries a previously submitted order's fill state. The
// output1 block's shape (ord_stat_cd/avg_prvs/tot_ccld_qty/ccld_amt_smtl/
// rjct_rson) is parsed by callers — liveclient.LiveClient in production.
func (c *Client) GetOrderStatus(ctx context.Context, token, orderID string) (Response, error) {
	return c.call(ctx, "GET", "/uapi/domestic-stock/v1/trading/inquire-order/"+orderID, token, nil)
}

// CancelOrder cancels orderID.
func (c *Client) CancelOrder(ctx context.Context, token, orderID string) error {
	_, err := c.call(ctx, "POST", "/uapi/domestic-stock/v1/trading/order-rvsecncl", token, map[string]string{"ODNO": orderID})

	return err
}

// GetBalance queries the account's cash and total-asset balance.
func (c *Client) GetBalance(ctx context.Context, token string) (Response, error) {
	return c.call(ctx, "GET", "/uapi/domestic-stock/v1/trading/inquire-balance", token, nil)
}

// GetQuote queries symbol's current market quote.
func (c *Client) GetQuote(ctx context.Context, token, symbol string) (Response, error) {
	return c.call(ctx, "GET", "/uapi/domestic-stock/v1/quotations/inquire-price?pdno="+symbol, token, nil)
}

// GetPosition queries symbol's current held quantity and average price.
func (c *Client) GetPosition(ctx context.Context, token, symbol string) (Response, error) {
	return c.call(ctx, "GET", "/uapi/domestic-stock/v1/trading/inquire-balance?pdno="+symbol, token, nil)
}

// tokenRequest is the auth endpoint's request body (spec §4.7's "acquires
// a new token via the auth endpoint").
type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

// TokenResponse is the auth endpoint's response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// IssueToken requests a fresh OAuth access token for appKey/appSecret. This
// endpoint is unauthenticated (no bearer token) and returns a flat body
// rather than the rt_cd/output envelope every other endpoint uses, so it
// bypasses do/call and parses the response directly.
func (c *Client) IssueToken(ctx context.Context, appKey, appSecret string) (TokenResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tokenRequest{GrantType: "client_credentials", AppKey: appKey, AppSecret: appSecret}).
		Post("/oauth2/tokenP")
	if err != nil {
		return TokenResponse{}, errors.Wrapf(errors.ErrCodeAPIRetryableFailure, err, "token request failed")
	}

	if resp.StatusCode() != 200 {
		return TokenResponse{}, errors.Newf(errors.ErrCodeAPINonRetryableFailure, "token request returned status %d", resp.StatusCode())
	}

	var out TokenResponse
	if jsonErr := json.Unmarshal(resp.Body(), &out); jsonErr != nil {
		return TokenResponse{}, errors.Wrapf(errors.ErrCodeAPINonRetryableFailure, jsonErr, "malformed token response")
	}

	return out, nil
}
