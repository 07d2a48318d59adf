package extraction

import (
	"errors"
	"strings"
)

// ErrorKind classifies an extraction failure for retry decisions.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindTransient   ErrorKind = "transient"
	KindMalformed   ErrorKind = "malformed"
)

var (
	// ErrParseFailure marks a model response that did not contain the
	// required appointment fields.
	ErrParseFailure = errors.New("extraction: response did not contain valid appointment details")

	// ErrRateLimited marks a provider rejection for quota or throttling.
	// Never retried; it surfaces immediately as an external-service failure.
	ErrRateLimited = errors.New("extraction: model provider rate limited the request")

	// ErrEmptyResponse marks a completion that produced no usable text.
	ErrEmptyResponse = errors.New("extraction: model returned an empty response")
)

var rateLimitMarkers = []string{
	"throttl",
	"rate limit",
	"too many requests",
	"429",
	"quota",
	"resource exhausted",
}

// Classify maps an error from a completion call onto the retry taxonomy.
// Provider SDKs do not share an error type, so rate limiting is detected
// from the well-known status markers each one embeds in its message.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTransient
	}
	if errors.Is(err, ErrParseFailure) || errors.Is(err, ErrEmptyResponse) {
		return KindMalformed
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return KindRateLimited
		}
	}
	return KindTransient
}
