package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	l, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(l)
	suite.NotNil(l.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevelFallback() {
	l, err := NewLoggerWithLevel("not-a-level")
	suite.NoError(err)
	suite.NotNil(l)
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	l := &Logger{Logger: nil}
	suite.NoError(l.Sync())
}

func (suite *LoggerTestSuite) TestLoggerLogging() {
	l, err := NewLogger()
	suite.NoError(err)

	l.Info("test info message")
	l.Debug("test debug message")
	l.Warn("test warn message")
}

func (suite *LoggerTestSuite) TestLoggerWith() {
	l, err := NewLogger()
	suite.NoError(err)

	child := l.With()
	suite.NotNil(child)
	child.Info("test message with fields")
}
