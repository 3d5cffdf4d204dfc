package types

// Mode selects which ExecutionBackend and clock discipline the Runner uses.
// The three modes are mutually exclusive.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModePaper    Mode = "paper"
	ModeLive     Mode = "real"
)
