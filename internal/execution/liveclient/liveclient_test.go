package liveclient

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kisquant/daytrader/internal/auth"
	"github.com/kisquant/daytrader/internal/brokerclient"
	"github.com/kisquant/daytrader/internal/brokerclient/testbroker"
	"github.com/kisquant/daytrader/internal/logger"
	"github.com/kisquant/daytrader/internal/resilience"
	"github.com/kisquant/daytrader/internal/types"
)

type LiveClientTestSuite struct {
	suite.Suite

	log *logger.Logger
}

func TestLiveClientSuite(t *testing.T) {
	suite.Run(t, new(LiveClientTestSuite))
}

func (suite *LiveClientTestSuite) SetupTest() {
	lg, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.log = lg
}

func (suite *LiveClientTestSuite) newAuthManager() *auth.Manager {
	path := filepath.Join(suite.T().TempDir(), "token.json")
	refresh := func() (auth.Token, error) {
		return auth.Token{AccessToken: "token", ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
	}

	return auth.NewManager(path, 2*time.Hour, refresh, suite.log)
}

func (suite *LiveClientTestSuite) fastPolicy() resilience.Policy {
	return resilience.Policy{
		MaxRetries:     3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		JitterFraction: 0,
		CallTimeout:    time.Second,
	}
}

// TestTokenExpiryOnSubmitRefreshesAndRetriesOnce exercises spec §8 scenario
// 4: the order endpoint reports EGW00123 on the first attempt; after a
// forced refresh, the retried submission succeeds.
func (suite *LiveClientTestSuite) TestTokenExpiryOnSubmitRefreshesAndRetriesOnce() {
	orderScript := testbroker.NewScript(
		testbroker.ScriptedResponse{Status: http.StatusOK, Body: map[string]any{"rt_cd": "1", "msg_cd": "EGW00123", "msg1": "expired token"}},
		testbroker.ScriptedResponse{Status: http.StatusOK, Body: map[string]any{"rt_cd": "0", "output": map[string]any{"ODNO": "12345"}}},
	)

	server := testbroker.NewServer(orderScript, nil, nil, nil, nil)
	defer server.Close()

	authMgr := suite.newAuthManager()
	retrier := resilience.New(suite.fastPolicy(), suite.log)
	client := New(brokerclient.New(server.URL), authMgr, retrier)

	orderID, err := client.ExecuteOrder(&types.Order{Symbol: "005930", Side: types.SideBuy, Quantity: 10})
	suite.Require().NoError(err)
	suite.Equal("12345", orderID)
	suite.GreaterOrEqual(authMgr.RefreshCount(), 1)
}

// TestRetryExhaustionOnPersistentServerError exercises spec §8 scenario 5:
// every order-status call returns a 500, so CheckFill must exhaust the
// retry budget and surface an error after exactly MaxRetries+1 attempts.
func (suite *LiveClientTestSuite) TestRetryExhaustionOnPersistentServerError() {
	statusScript := testbroker.NewScript(
		testbroker.ScriptedResponse{Status: http.StatusInternalServerError, Body: map[string]any{"rt_cd": "1"}},
	)

	server := testbroker.NewServer(nil, statusScript, nil, nil, nil)
	defer server.Close()

	authMgr := suite.newAuthManager()
	policy := suite.fastPolicy()
	retrier := resilience.New(policy, suite.log)
	client := New(brokerclient.New(server.URL), authMgr, retrier)

	_, err := client.CheckFill("any-order-id")
	suite.Error(err)
	suite.Equal(policy.MaxRetries+1, statusScript.Calls())
}

// TestNonRetryableValidationErrorFailsImmediately exercises the
// non-retryable path: a validation failure must not consume the retry
// budget at all.
func (suite *LiveClientTestSuite) TestNonRetryableValidationErrorFailsImmediately() {
	orderScript := testbroker.NewScript(
		testbroker.ScriptedResponse{Status: http.StatusOK, Body: map[string]any{"rt_cd": "1", "msg_cd": "APBK0919", "msg1": "invalid quantity", "output": map[string]any{}}},
	)

	server := testbroker.NewServer(orderScript, nil, nil, nil, nil)
	defer server.Close()

	authMgr := suite.newAuthManager()
	retrier := resilience.New(suite.fastPolicy(), suite.log)
	client := New(brokerclient.New(server.URL), authMgr, retrier)

	_, err := client.ExecuteOrder(&types.Order{Symbol: "005930", Side: types.SideBuy, Quantity: -1})
	suite.Error(err)
	suite.Equal(1, orderScript.Calls())
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
