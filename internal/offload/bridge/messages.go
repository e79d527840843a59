package bridge

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tphakala/audiokit/internal/errors"
)

// RequestKind tags an outbound request
type RequestKind uint8

const (
	KindInvalid RequestKind = iota
	KindProcessSpectrum
	KindCalculateRMS
	KindApplyFilter
	KindProcessBatch
	KindPing
)

func (k RequestKind) String() string {
	switch k {
	case KindProcessSpectrum:
		return "process_spectrum"
	case KindCalculateRMS:
		return "calculate_rms"
	case KindApplyFilter:
		return "apply_filter"
	case KindProcessBatch:
		return "process_batch"
	case KindPing:
		return "ping"
	default:
		return fmt.Sprintf("request_kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known request kind
func (k RequestKind) Valid() bool {
	return k >= KindProcessSpectrum && k <= KindPing
}

// ResponseKind tags an inbound response
type ResponseKind uint8

const (
	RespInvalid ResponseKind = iota
	RespResult
	RespError
	RespReady
)

func (k ResponseKind) String() string {
	switch k {
	case RespResult:
		return "result"
	case RespError:
		return "error"
	case RespReady:
		return "ready"
	default:
		return fmt.Sprintf("response_kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known response kind
func (k ResponseKind) Valid() bool {
	return k >= RespResult && k <= RespReady
}

// Request is the outbound envelope {type, id, data}
type Request struct {
	Kind RequestKind        `msgpack:"type"`
	ID   uint64             `msgpack:"id"`
	Data msgpack.RawMessage `msgpack:"data"`
}

// Response is the inbound envelope {id, result|error}.
// ID 0 is reserved for context-level messages (ready, fatal error).
type Response struct {
	Kind   ResponseKind       `msgpack:"kind"`
	ID     uint64             `msgpack:"id"`
	Result msgpack.RawMessage `msgpack:"result,omitempty"`
	Error  string             `msgpack:"error,omitempty"`
}

// Payload is implemented by every request body; the kind is fixed by the type.
type Payload interface {
	Kind() RequestKind
}

// FilterKind selects a biquad response
type FilterKind string

const (
	FilterLowPass  FilterKind = "lowpass"
	FilterHighPass FilterKind = "highpass"
	FilterBandPass FilterKind = "bandpass"
	FilterNotch    FilterKind = "notch"
	FilterPeaking  FilterKind = "peaking"
)

// FilterParams describes one filter stage
type FilterParams struct {
	Kind       FilterKind `msgpack:"kind" json:"kind"`
	Frequency  float64    `msgpack:"frequency" json:"frequency"`
	SampleRate int        `msgpack:"sample_rate" json:"sample_rate"`
	Q          float64    `msgpack:"q" json:"q"`
	GainDB     float64    `msgpack:"gain_db,omitempty" json:"gain_db,omitempty"`
}

// SpectrumRequest asks for the magnitude spectrum of one buffer
type SpectrumRequest struct {
	Samples    []float32 `msgpack:"samples"`
	SampleRate int       `msgpack:"sample_rate"`
}

func (SpectrumRequest) Kind() RequestKind { return KindProcessSpectrum }

// RMSRequest asks for windowed RMS values
type RMSRequest struct {
	Samples    []float32 `msgpack:"samples"`
	WindowSize int       `msgpack:"window_size"`
}

func (RMSRequest) Kind() RequestKind { return KindCalculateRMS }

// FilterRequest asks for a filtered copy of a buffer
type FilterRequest struct {
	Samples []float32    `msgpack:"samples"`
	Filter  FilterParams `msgpack:"filter"`
}

func (FilterRequest) Kind() RequestKind { return KindApplyFilter }

// BatchRequest asks for the spectra of several buffers in one round trip
type BatchRequest struct {
	Buffers    [][]float32 `msgpack:"buffers"`
	SampleRate int         `msgpack:"sample_rate"`
}

func (BatchRequest) Kind() RequestKind { return KindProcessBatch }

// PingRequest checks liveness
type PingRequest struct{}

func (PingRequest) Kind() RequestKind { return KindPing }

// SpectrumResult carries magnitudes for bins 0..N/2
type SpectrumResult struct {
	Magnitudes []float32 `msgpack:"magnitudes"`
}

// RMSResult carries one RMS value per window
type RMSResult struct {
	Values []float64 `msgpack:"values"`
}

// FilterResult carries the filtered samples
type FilterResult struct {
	Samples []float32 `msgpack:"samples"`
}

// BatchResult carries spectra in request order
type BatchResult struct {
	Spectra [][]float32 `msgpack:"spectra"`
}

// PingResult echoes the worker identity
type PingResult struct {
	Worker string `msgpack:"worker"`
}

// Result is an undecoded response body
type Result struct {
	raw msgpack.RawMessage
}

// NewResult wraps raw msgpack bytes. Used by tests and in-process fakes.
func NewResult(raw []byte) Result {
	return Result{raw: raw}
}

// Decode unmarshals the body into v
func (r Result) Decode(v any) error {
	if err := msgpack.Unmarshal(r.raw, v); err != nil {
		return errors.New(fmt.Errorf("%w: %w", ErrSerialization, err)).
			Component(ComponentBridge).
			Category(errors.CategorySerialization).
			Context("operation", "decode_result").
			Build()
	}
	return nil
}

// EncodePayload marshals a request body
func EncodePayload(p Payload) (msgpack.RawMessage, error) {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrSerialization, err)).
			Component(ComponentBridge).
			Category(errors.CategorySerialization).
			Context("operation", "encode_payload").
			Context("kind", p.Kind().String()).
			Build()
	}
	return data, nil
}

// DecodePayload unmarshals the body of req into the payload type its kind names
func DecodePayload(req Request) (Payload, error) {
	var p Payload
	switch req.Kind {
	case KindProcessSpectrum:
		p = &SpectrumRequest{}
	case KindCalculateRMS:
		p = &RMSRequest{}
	case KindApplyFilter:
		p = &FilterRequest{}
	case KindProcessBatch:
		p = &BatchRequest{}
	case KindPing:
		p = &PingRequest{}
	default:
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)).
			Component(ComponentBridge).
			Category(errors.CategorySerialization).
			Context("request_id", req.ID).
			Build()
	}
	if len(req.Data) > 0 {
		if err := msgpack.Unmarshal(req.Data, p); err != nil {
			return nil, errors.New(fmt.Errorf("%w: %w", ErrSerialization, err)).
				Component(ComponentBridge).
				Category(errors.CategorySerialization).
				Context("operation", "decode_payload").
				Context("kind", req.Kind.String()).
				Build()
		}
	}
	return p, nil
}

// NewResultResponse encodes v as the result for request id
func NewResultResponse(id uint64, v any) (Response, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return Response{}, errors.New(fmt.Errorf("%w: %w", ErrSerialization, err)).
			Component(ComponentBridge).
			Category(errors.CategorySerialization).
			Context("operation", "encode_result").
			Context("request_id", id).
			Build()
	}
	return Response{Kind: RespResult, ID: id, Result: data}, nil
}

// NewErrorResponse builds an error response for request id
func NewErrorResponse(id uint64, err error) Response {
	return Response{Kind: RespError, ID: id, Error: err.Error()}
}
