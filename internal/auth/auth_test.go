package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kisquant/daytrader/internal/logger"
)

type AuthTestSuite struct {
	suite.Suite
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}

func (suite *AuthTestSuite) tokenPath() string {
	return filepath.Join(suite.T().TempDir(), "token.json")
}

func (suite *AuthTestSuite) logger() *logger.Logger {
	lg, err := logger.NewLogger()
	suite.Require().NoError(err)

	return lg
}

func (suite *AuthTestSuite) TestRefreshesWhenNoTokenFilePresent() {
	calls := 0
	refresher := func() (Token, error) {
		calls++

		return Token{AccessToken: "tok-1", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	m := NewManager(suite.tokenPath(), time.Minute, refresher, suite.logger())

	var seen string

	err := m.WithValidToken(func(token string) error {
		seen = token

		return nil
	})

	suite.Require().NoError(err)
	suite.Equal("tok-1", seen)
	suite.Equal(1, calls)
}

func (suite *AuthTestSuite) TestReusesValidTokenWithoutRefreshing() {
	calls := 0
	refresher := func() (Token, error) {
		calls++

		return Token{AccessToken: "tok-1", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	m := NewManager(suite.tokenPath(), time.Minute, refresher, suite.logger())

	suite.Require().NoError(m.WithValidToken(func(string) error { return nil }))
	suite.Require().NoError(m.WithValidToken(func(string) error { return nil }))

	suite.Equal(1, calls)
}

func (suite *AuthTestSuite) TestRefreshesWhenWithinSkewOfExpiry() {
	calls := 0
	refresher := func() (Token, error) {
		calls++

		return Token{AccessToken: "tok", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute)}, nil
	}

	// skew larger than the token's remaining life forces refresh every call
	m := NewManager(suite.tokenPath(), time.Hour, refresher, suite.logger())

	suite.Require().NoError(m.WithValidToken(func(string) error { return nil }))
	suite.Require().NoError(m.WithValidToken(func(string) error { return nil }))

	suite.Equal(2, calls)
}

func (suite *AuthTestSuite) TestPersistsTokenToFile() {
	path := suite.tokenPath()
	refresher := func() (Token, error) {
		return Token{AccessToken: "tok", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	m := NewManager(path, time.Minute, refresher, suite.logger())
	suite.Require().NoError(m.WithValidToken(func(string) error { return nil }))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Contains(string(data), "tok")
}

func (suite *AuthTestSuite) TestForceRefreshExactlyOnceOnExpiry() {
	calls := 0
	refresher := func() (Token, error) {
		calls++

		return Token{AccessToken: "tok", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	m := NewManager(suite.tokenPath(), time.Minute, refresher, suite.logger())
	suite.Require().NoError(m.WithValidToken(func(string) error { return nil }))

	// simulate a token-expiry response mid-flight: force exactly one more refresh
	suite.Require().NoError(m.ForceRefresh())
	suite.Equal(2, calls)
	suite.Equal(2, m.RefreshCount())
}

func (suite *AuthTestSuite) TestRefreshFailureSurfaces() {
	refresher := func() (Token, error) {
		return Token{}, errors.New("auth endpoint down")
	}

	m := NewManager(suite.tokenPath(), time.Minute, refresher, suite.logger())
	err := m.WithValidToken(func(string) error { return nil })
	suite.Error(err)
}
