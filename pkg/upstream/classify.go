package upstream

import (
	"encoding/json"
	"net/http"

	"meridian-hq/saturn/pkg/quota"
)

// ThrottleHeader is the response header carrying the upstream
// platform's structured throttle feedback for insights calls.
const ThrottleHeader = "X-Fb-Ads-Insights-Throttle"

// Upstream error codes with governance meaning. All other codes are
// business errors and pass through to the caller untouched.
const (
	// CodeUserRequestLimit signals per-user request throttling.
	CodeUserRequestLimit = "17"

	// CodeCallVolumeLimit signals ad-account call volume throttling.
	CodeCallVolumeLimit = "613"

	// CodeRateLimitReached signals app-level rate limiting.
	CodeRateLimitReached = "80000"

	// CodeInvalidToken signals an expired or invalidated access token.
	CodeInvalidToken = "190"
)

// Kind classifies an upstream response for the executor's retry loop.
type Kind int

const (
	// KindSuccess is any 2xx response.
	KindSuccess Kind = iota

	// KindThrottled is an explicit upstream rate-limit signal,
	// retryable with backoff.
	KindThrottled

	// KindCredentialInvalid is an authentication failure, never retried.
	KindCredentialInvalid

	// KindBusiness is any other non-2xx response, returned to the
	// caller as-is and never retried.
	KindBusiness
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindThrottled:
		return "throttled"
	case KindCredentialInvalid:
		return "credential_invalid"
	case KindBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// errorEnvelope is the upstream platform's structured error body.
type errorEnvelope struct {
	Error struct {
		Code        json.Number `json:"code"`
		Subcode     json.Number `json:"error_subcode"`
		Message     string      `json:"message"`
		Type        string      `json:"type"`
		UserTitle   string      `json:"error_user_title"`
		UserMessage string      `json:"error_user_msg"`
		TraceID     string      `json:"fbtrace_id"`
	} `json:"error"`
}

// ParseErrorBody extracts the upstream error code and message from a
// structured error body. Unparseable bodies yield empty values; the
// status code alone still classifies the response.
func ParseErrorBody(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ""
	}
	return env.Error.Code.String(), env.Error.Message
}

// Classify maps a response's status code, structured error code, and
// headers to a governance kind. It is a pure function: all
// upstream-specific knowledge lives here, keeping the retry and quota
// logic generic.
func Classify(statusCode int, errorCode string, headers http.Header) Kind {
	if statusCode >= 200 && statusCode < 300 {
		return KindSuccess
	}

	switch errorCode {
	case CodeUserRequestLimit, CodeCallVolumeLimit, CodeRateLimitReached:
		return KindThrottled
	case CodeInvalidToken:
		return KindCredentialInvalid
	}

	if statusCode == http.StatusTooManyRequests {
		return KindThrottled
	}
	if statusCode == http.StatusUnauthorized {
		return KindCredentialInvalid
	}

	// A throttle header on an error response is a rate-limit signal
	// even without a recognized error code.
	if headers != nil && headers.Get(ThrottleHeader) != "" {
		if info, ok := ParseThrottleHeader(headers); ok && info.Throttled() {
			return KindThrottled
		}
	}

	return KindBusiness
}

// ParseThrottleHeader parses the upstream throttle feedback header.
// The second return value is false when the header is absent or
// malformed.
func ParseThrottleHeader(headers http.Header) (quota.ThrottleInfo, bool) {
	raw := headers.Get(ThrottleHeader)
	if raw == "" {
		return quota.ThrottleInfo{}, false
	}

	var info quota.ThrottleInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return quota.ThrottleInfo{}, false
	}
	return info, true
}
