// Package liveclient implements execution.Backend over the brokerage's
// HTTP API for the paper and live trading modes (spec §4.3, §4.7).
// Grounded on the capability shape of the teacher's TradingSystemProvider
// (internal/trading/provider/trading_system_provider.go), composing
// internal/resilience's retry/backoff policy with internal/auth's token
// manager per spec §4.7's stated composition: the refresh-on-expiry,
// retry-once wrapper runs inside the op the outer retry loop calls, so a
// token refresh never itself consumes a retry attempt.
package liveclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kisquant/daytrader/internal/auth"
	"github.com/kisquant/daytrader/internal/brokerclient"
	"github.com/kisquant/daytrader/internal/resilience"
	"github.com/kisquant/daytrader/internal/types"
	"github.com/kisquant/daytrader/pkg/errors"
)

// LiveClient is the paper/live execution.Backend implementation.
type LiveClient struct {
	http    *brokerclient.Client
	auth    *auth.Manager
	retrier *resilience.Retrier
}

var sentinelTokenExpired = errors.New(errors.ErrCodeTokenExpired, "brokerage reported token expiry")

// New constructs a LiveClient over an already-configured brokerclient.Client.
func New(http *brokerclient.Client, authMgr *auth.Manager, retrier *resilience.Retrier) *LiveClient {
	return &LiveClient{http: http, auth: authMgr, retrier: retrier}
}

// classify maps a brokerclient error to a resilience.Classification per
// spec §4.7's retryable/non-retryable partition.
func (c *LiveClient) classify(err error) resilience.Classification {
	apiErr, ok := asAPIError(err)
	if !ok {
		return resilience.Retryable // network/transport errors
	}

	if apiErr.StatusCode >= 500 || apiErr.StatusCode == 429 {
		return resilience.Retryable
	}

	if apiErr.Response.SoftRetryable() {
		return resilience.Retryable
	}

	return resilience.NonRetryable
}

func asAPIError(err error) (*brokerclient.APIError, bool) {
	apiErr, ok := err.(*brokerclient.APIError)

	return apiErr, ok
}

// withAuth runs call with a valid token, refreshing and retrying exactly
// once if the response indicates token expiry, before handing the outcome
// to the outer resilience.Retrier for ordinary transient-failure retries.
func (c *LiveClient) withAuth(ctx context.Context, call func(ctx context.Context, token string) error) error {
	attempt := func() error {
		return c.auth.WithValidToken(func(token string) error {
			err := call(ctx, token)

			apiErr, ok := asAPIError(err)
			if ok && apiErr.Response.TokenExpired() {
				return sentinelTokenExpired
			}

			return err
		})
	}

	op := func(ctx context.Context) error {
		err := attempt()
		if err == sentinelTokenExpired { //nolint:errorlint // sentinel compared by identity, never wrapped
			if refreshErr := c.auth.ForceRefresh(); refreshErr != nil {
				return refreshErr
			}

			err = attempt()
		}

		return err
	}

	return c.retrier.Do(ctx, c.classify, op)
}

// ExecuteOrder submits order over HTTP and records the brokerage order id.
func (c *LiveClient) ExecuteOrder(order *types.Order) (string, error) {
	var orderID string

	err := c.withAuth(context.Background(), func(ctx context.Context, token string) error {
		side := "02"
		if order.Side == types.SideSell {
			side = "01"
		}

		id, err := c.http.PlaceOrder(ctx, token, brokerclient.OrderRequest{
			Symbol:   order.Symbol,
			Side:     side,
			Quantity: order.Quantity,
			Price:    order.Price.String(),
		})
		if err != nil {
			return err
		}

		orderID = id

		return nil
	})

	return orderID, err
}

// orderStatusOutput mirrors brokerclient's inquire-order output1 block.
type orderStatusOutput struct {
	Status      string `json:"ord_stat_cd"`
	FillPrice   string `json:"avg_prvs"`
	FillQty     string `json:"tot_ccld_qty"`
	Fee         string `json:"ccld_amt_smtl"`
	RejectedMsg string `json:"rjct_rson"`
}

// CheckFill queries orderID's current fill status.
func (c *LiveClient) CheckFill(orderID string) (types.Fill, error) {
	var fill types.Fill

	err := c.withAuth(context.Background(), func(ctx context.Context, token string) error {
		resp, err := c.http.GetOrderStatus(ctx, token, orderID)
		if err != nil {
			return err
		}

		var out orderStatusOutput
		if jsonErr := json.Unmarshal(resp.Output1, &out); jsonErr != nil {
			return errors.Wrapf(errors.ErrCodeFillQueryFailed, jsonErr, "malformed order status for %s", orderID)
		}

		fill, err = parseFill(out)

		return err
	})

	return fill, err
}

func parseFill(out orderStatusOutput) (types.Fill, error) {
	switch out.Status {
	case "00", "01":
		return types.Fill{Status: types.FillPending}, nil
	case "03":
		return types.Fill{Status: types.FillRejected, RejectedReason: out.RejectedMsg}, nil
	case "02":
		price, err := decimal.NewFromString(out.FillPrice)
		if err != nil {
			return types.Fill{}, errors.Wrapf(errors.ErrCodeFillQueryFailed, err, "malformed fill price %q", out.FillPrice)
		}

		qty, err := decimal.NewFromString(out.FillQty)
		if err != nil {
			return types.Fill{}, errors.Wrapf(errors.ErrCodeFillQueryFailed, err, "malformed fill quantity %q", out.FillQty)
		}

		fee, err := decimal.NewFromString(out.Fee)
		if err != nil {
			fee = decimal.Zero
		}

		return types.Fill{Status: types.FillFilled, RealPrice: price, Quantity: qty.IntPart(), Fee: fee}, nil
	default:
		return types.Fill{}, errors.Newf(errors.ErrCodeFillQueryFailed, "unrecognized order status code %q", out.Status)
	}
}

// CancelOrder cancels orderID.
func (c *LiveClient) CancelOrder(orderID string) error {
	return c.withAuth(context.Background(), func(ctx context.Context, token string) error {
		return c.http.CancelOrder(ctx, token, orderID)
	})
}

type balanceOutput struct {
	Cash        string `json:"dnca_tot_amt"`
	TotalAssets string `json:"tot_evlu_amt"`
}

// GetBalance queries the account's current cash and total assets.
func (c *LiveClient) GetBalance() (types.Balance, error) {
	var balance types.Balance

	err := c.withAuth(context.Background(), func(ctx context.Context, token string) error {
		resp, err := c.http.GetBalance(ctx, token)
		if err != nil {
			return err
		}

		var out balanceOutput
		if jsonErr := json.Unmarshal(resp.Output2, &out); jsonErr != nil {
			return errors.Wrapf(errors.ErrCodeFillQueryFailed, jsonErr, "malformed balance output")
		}

		cash, err := decimal.NewFromString(out.Cash)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeFillQueryFailed, err, "malformed cash balance %q", out.Cash)
		}

		total, err := decimal.NewFromString(out.TotalAssets)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeFillQueryFailed, err, "malformed total assets %q", out.TotalAssets)
		}

		balance = types.Balance{Cash: cash, TotalAssets: total}

		return nil
	})

	return balance, err
}

type positionOutput struct {
	AveragePrice string `json:"pchs_avg_pric"`
}

// GetAveragePrice queries symbol's current cost-basis average price.
func (c *LiveClient) GetAveragePrice(symbol string) (decimal.Decimal, error) {
	var avg decimal.Decimal

	err := c.withAuth(context.Background(), func(ctx context.Context, token string) error {
		resp, err := c.http.GetPosition(ctx, token, symbol)
		if err != nil {
			return err
		}

		var out positionOutput
		if jsonErr := json.Unmarshal(resp.Output1, &out); jsonErr != nil {
			return errors.Wrapf(errors.ErrCodeFillQueryFailed, jsonErr, "malformed position output for %s", symbol)
		}

		avg, err = decimal.NewFromString(out.AveragePrice)
		if err != nil {
			return errors.Newf(errors.ErrCodePositionNotFound, "no position in %s", symbol)
		}

		return nil
	})

	return avg, err
}

type quoteOutput struct {
	Price string `json:"stck_prpr"`
}

// GetCurrentPrice queries symbol's current quote. at is ignored: the
// brokerage API only exposes the live quote, never a historical one.
func (c *LiveClient) GetCurrentPrice(symbol string, at *time.Time) (decimal.Decimal, error) {
	var price decimal.Decimal

	err := c.withAuth(context.Background(), func(ctx context.Context, token string) error {
		resp, err := c.http.GetQuote(ctx, token, symbol)
		if err != nil {
			return err
		}

		var out quoteOutput
		if jsonErr := json.Unmarshal(resp.Output, &out); jsonErr != nil {
			return errors.Wrapf(errors.ErrCodeMarketDataMissing, jsonErr, "malformed quote output for %s", symbol)
		}

		price, err = decimal.NewFromString(out.Price)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeMarketDataMissing, err, "malformed quote price %q", out.Price)
		}

		return nil
	})

	return price, err
}
