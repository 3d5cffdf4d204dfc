package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// ErrCodeUnknown represents a general unknown error (1-99 range).
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199 range).
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInsufficientData     ErrorCode = 106
	ErrCodeInvalidType          ErrorCode = 107
	ErrCodeMissingParameter     ErrorCode = 109

	// Data/resource errors (200-299 range).
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeHistoricalDataFailed  ErrorCode = 203
	ErrCodeNoDataFound           ErrorCode = 204

	// Indicator/feature errors (300-399 range).
	ErrCodeIndicatorCalculation ErrorCode = 302
	ErrCodeFeatureMissing       ErrorCode = 303
	ErrCodeFeatureVectorLength  ErrorCode = 304

	// Strategy errors (400-499 range).
	ErrCodeStrategyConfigError  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402

	// Execution/trading errors (500-599 range).
	ErrCodeOrderFailed          ErrorCode = 500
	ErrCodePositionNotFound     ErrorCode = 501
	ErrCodeMarketDataMissing    ErrorCode = 502
	ErrCodeInsufficientBalance  ErrorCode = 503
	ErrCodeInsufficientPosition ErrorCode = 504
	ErrCodeOrderRejected        ErrorCode = 505
	ErrCodeFillQueryFailed      ErrorCode = 506

	// Configuration/startup fatal errors (600-699 range).
	ErrCodeConfigFileMissing ErrorCode = 600
	ErrCodeConfigMalformed   ErrorCode = 601
	ErrCodeCalendarMissing   ErrorCode = 602
	ErrCodeCalendarMalformed ErrorCode = 603

	// Market data errors (700-799 range).
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidTimespan       ErrorCode = 703
	ErrCodeInvalidProvider       ErrorCode = 704

	// Callback errors (800-899 range).
	ErrCodeCallbackFailed ErrorCode = 800

	// Time-service errors (900-999 range).
	ErrCodeTimeParseFailed     ErrorCode = 900
	ErrCodeTimeEventExhausted  ErrorCode = 901
	ErrCodeCalendarLookupError ErrorCode = 902

	// External API errors (1000-1099 range): retryable / non-retryable / refresh.
	ErrCodeAPIRetryableFailure    ErrorCode = 1000
	ErrCodeAPINonRetryableFailure ErrorCode = 1001
	ErrCodeAPIRetryExhausted      ErrorCode = 1002
	ErrCodeTokenExpired           ErrorCode = 1003
	ErrCodeTokenRefreshFailed     ErrorCode = 1004

	// Prediction errors (1100-1199 range).
	ErrCodePredictionModelIO ErrorCode = 1100

	// Backtest termination sentinel (1200-1299 range). Not a failure: the
	// distinguished non-error signal for reaching end_date (spec §7).
	ErrCodeBacktestComplete ErrorCode = 1200
)
