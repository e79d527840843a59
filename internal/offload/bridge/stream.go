package bridge

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tphakala/audiokit/internal/errors"
)

// Transport carries envelopes between the bridge and its execution context.
// Recv blocks until a response arrives and returns an error once the
// channel is closed or broken.
type Transport interface {
	Send(req Request) error
	Recv() (Response, error)
	Close() error
}

// Stream is a msgpack-framed duplex over a reader/writer pair. msgpack values
// are self-delimiting, so envelopes are written back to back without framing.
// The same type serves the client (Send/Recv) and the worker
// (ReadRequest/WriteResponse) end.
type Stream struct {
	writeMu sync.Mutex
	bw      *bufio.Writer
	enc     *msgpack.Encoder
	dec     *msgpack.Decoder
	r       io.Reader
	w       io.Writer

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps r and w. Close closes both when they implement io.Closer.
func NewStream(r io.Reader, w io.Writer) *Stream {
	bw := bufio.NewWriter(w)
	return &Stream{
		bw:  bw,
		enc: msgpack.NewEncoder(bw),
		dec: msgpack.NewDecoder(bufio.NewReader(r)),
		r:   r,
		w:   w,
	}
}

// Pipe returns two connected in-memory streams: client talks to server.
func Pipe() (client, server *Stream) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	return NewStream(respR, reqW), NewStream(reqR, respW)
}

func (s *Stream) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.enc.Encode(v); err != nil {
		return err
	}
	return s.bw.Flush()
}

// Send writes a request
func (s *Stream) Send(req Request) error {
	if err := s.write(&req); err != nil {
		return fmt.Errorf("send %s request %d: %w", req.Kind, req.ID, err)
	}
	return nil
}

// Recv reads the next response. A response with an unknown kind yields an
// error wrapping ErrUnknownKind; the stream stays usable.
func (s *Stream) Recv() (Response, error) {
	var resp Response
	if err := s.dec.Decode(&resp); err != nil {
		return Response{}, err
	}
	if !resp.Kind.Valid() {
		return resp, errors.New(fmt.Errorf("%w: %s", ErrUnknownKind, resp.Kind)).
			Component(ComponentBridge).
			Category(errors.CategorySerialization).
			Context("request_id", resp.ID).
			Build()
	}
	return resp, nil
}

// ReadRequest reads the next request on the worker end
func (s *Stream) ReadRequest() (Request, error) {
	var req Request
	if err := s.dec.Decode(&req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// WriteResponse writes a response on the worker end
func (s *Stream) WriteResponse(resp Response) error {
	if err := s.write(&resp); err != nil {
		return fmt.Errorf("send %s response %d: %w", resp.Kind, resp.ID, err)
	}
	return nil
}

// Close closes the underlying reader and writer
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if c, ok := s.w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		if c, ok := s.r.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
