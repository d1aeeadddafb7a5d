package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// TransportError covers connection failures, request timeouts and non-2xx replies
	TransportError ErrorKind = iota + 1
	// MalformedResponse covers unexpected shapes, non-numeric and negative prices
	MalformedResponse
	// Timeout means the source did not settle before the cycle deadline
	Timeout
	// Cancelled means the caller aborted the cycle
	Cancelled
)

var (
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrTimeout           = errors.New("timeout")
	ErrCancelled         = errors.New("cancelled")
)

var kindNames = map[ErrorKind]string{
	TransportError:    "TransportError",
	MalformedResponse: "MalformedResponse",
	Timeout:           "Timeout",
	Cancelled:         "Cancelled",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case TransportError:
		return ErrTransport
	case MalformedResponse:
		return ErrMalformedResponse
	case Timeout:
		return ErrTimeout
	case Cancelled:
		return ErrCancelled
	}
	return nil
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown error kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// Failure is the typed error every adapter and collector failure is turned into.
// Asset is empty when the failure covers a whole source.
type Failure struct {
	Kind  ErrorKind
	Asset AssetSymbol
	Err   error
}

func NewFailure(kind ErrorKind, asset AssetSymbol, err error) *Failure {
	return &Failure{Kind: kind, Asset: asset, Err: err}
}

func (f *Failure) Error() string {
	msg := f.Kind.String()
	if f.Asset != "" {
		msg += " for " + string(f.Asset)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is makes errors.Is(err, ErrTimeout) and friends match on the failure kind
func (f *Failure) Is(target error) bool {
	return target != nil && target == f.Kind.sentinel()
}

// ForAsset returns a copy of the failure attributed to asset
func (f *Failure) ForAsset(asset AssetSymbol) *Failure {
	return &Failure{Kind: f.Kind, Asset: asset, Err: f.Err}
}

// ForSource returns a copy of the failure covering a whole source, the asset it came from
// is kept in the error text only
func (f *Failure) ForSource() *Failure {
	if f.Asset == "" {
		return f
	}
	err := fmt.Errorf("%s", f.Asset)
	if f.Err != nil {
		err = fmt.Errorf("%s: %w", f.Asset, f.Err)
	}
	return &Failure{Kind: f.Kind, Err: err}
}

type failureJSON struct {
	Kind  ErrorKind   `json:"kind"`
	Asset AssetSymbol `json:"asset,omitempty"`
	Error string      `json:"error,omitempty"`
}

func (f *Failure) MarshalJSON() ([]byte, error) {
	raw := failureJSON{Kind: f.Kind, Asset: f.Asset}
	if f.Err != nil {
		raw.Error = f.Err.Error()
	}
	return json.Marshal(raw)
}

func (f *Failure) UnmarshalJSON(data []byte) error {
	var raw failureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Kind, f.Asset, f.Err = raw.Kind, raw.Asset, nil
	if raw.Error != "" {
		f.Err = errors.New(raw.Error)
	}
	return nil
}

// AsFailure returns err as a *Failure, wrapping anything untyped as a TransportError
func AsFailure(err error, asset AssetSymbol) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		if failure.Asset == "" && asset != "" {
			return failure.ForAsset(asset)
		}
		return failure
	}
	return &Failure{Kind: TransportError, Asset: asset, Err: err}
}
