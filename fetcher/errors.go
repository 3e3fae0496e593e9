package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNoData indicates the source answered with a non-2xx status.
// It is an explicit "no data" result rather than a transport failure.
type ErrNoData struct {
	StatusCode int
}

func (e ErrNoData) Error() string {
	return fmt.Sprintf("no_data: http status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrTimeout indicates the request did not complete within the configured timeout.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrDecode indicates a 2xx body that is not a valid record array.
type ErrDecode struct {
	Err error
}

func (e ErrDecode) Error() string {
	return fmt.Errorf("decode: %w", e.Err).Error()
}

func (e ErrDecode) Unwrap() error {
	return e.Err
}

// Outcome is the result variant of a fetch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNoData
	OutcomeTimeout
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoData:
		return "no_data"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "transport_error"
	}
}

// Classify maps a Fetch error to its outcome variant. A nil error is a success.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var noData ErrNoData
	if errors.As(err, &noData) {
		return OutcomeNoData
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return OutcomeTimeout
	}
	return OutcomeTransportError
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var noData ErrNoData
	if errors.As(err, &noData) {
		return "no_data"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var decode ErrDecode
	if errors.As(err, &decode) {
		return "decode"
	}
	return "other"
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if err == nil && (statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices) {
		return ErrNoData{StatusCode: statusCode}
	}
	return err
}
