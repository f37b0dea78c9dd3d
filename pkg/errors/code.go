package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Authentication errors
// 12000-12999: Problem errors
// 13000-13999: Submission & Judge errors
// 14000-14999: Tracking errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Transport errors (10100-10199)
	NetworkFailure ErrorCode = 10100
	DecodeFailed   ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Authentication Errors (11000-11999) ==========

	InvalidCredentials ErrorCode = 11000
	TokenMissing       ErrorCode = 11001
	TokenExpired       ErrorCode = 11003
	TokenInvalid       ErrorCode = 11004

	// ========== Problem Errors (12000-12999) ==========

	ProblemNotFound ErrorCode = 12000

	// ========== Submission & Judge Errors (13000-13999) ==========

	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	LanguageNotSupported   ErrorCode = 13003
	EmptySourceCode        ErrorCode = 13006

	// Judge (13100-13199)
	UnknownVerdict ErrorCode = 13110

	// ========== Tracking Errors (14000-14999) ==========

	PollTimeout  ErrorCode = 14000
	PollCanceled ErrorCode = 14001
)

// Kind groups error codes by how callers should react to them.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindNetwork
	KindUnknownVerdict
	KindTimeout
	KindCanceled
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network"
	case KindUnknownVerdict:
		return "unknown_verdict"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized, please re-authenticate",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	NetworkFailure: "Network error",
	DecodeFailed:   "Failed to decode response",

	CacheError: "Cache operation failed",
	CacheMiss:  "Cache miss",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	InvalidCredentials: "Invalid username or password",
	TokenMissing:       "Not logged in, please authenticate",
	TokenExpired:       "Token has expired, please re-authenticate",
	TokenInvalid:       "Invalid token",

	ProblemNotFound: "Problem not found",

	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	LanguageNotSupported:   "Programming language not allowed for this problem",
	EmptySourceCode:        "Source code is empty",

	UnknownVerdict: "Judge returned an unrecognized verdict",

	PollTimeout:  "Gave up waiting for the judge",
	PollCanceled: "Polling canceled",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Kind classifies the error code.
func (c ErrorCode) Kind() Kind {
	switch {
	case c == Success:
		return KindNone
	case c >= 10300 && c < 10400, c == InvalidParams, c == LanguageNotSupported, c == EmptySourceCode:
		return KindValidation
	case c >= 11000 && c < 12000, c == Unauthorized, c == Forbidden:
		return KindAuth
	case c == NotFound, c == ProblemNotFound, c == SubmissionNotFound:
		return KindNotFound
	case c == NetworkFailure, c == Timeout, c == ServiceUnavailable, c == TooManyRequests:
		return KindNetwork
	case c == UnknownVerdict:
		return KindUnknownVerdict
	case c == PollTimeout:
		return KindTimeout
	case c == PollCanceled:
		return KindCanceled
	default:
		return KindInternal
	}
}
