package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const Delimiter = '\n'

var (
	ErrReadPacket        = errors.New("failed to read packet from connection")
	ErrUnmarshalPacket   = errors.New("failed to unmarshal packet data")
	ErrMarshalPacket     = errors.New("failed to marshal packet data")
	ErrWritePacket       = errors.New("failed to write packet to connection")
	ErrInconsistentWrite = errors.New("inconsistent data write: bytes written mismatch")
	ErrUnexpectedType    = errors.New("unexpected packet type")
)

// NewData builds a frame carrying payload.
func NewData(t Type, payload interface{}) (*Data, error) {
	d := &Data{Time: time.Now(), Type: t}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Join(ErrMarshalPacket, err)
		}
		d.Payload = b
	}
	return d, nil
}

// Decode unmarshals the payload of d into v.
func (d *Data) Decode(v interface{}) error {
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return errors.Join(ErrUnmarshalPacket, err)
	}
	return nil
}

// Expect returns ErrUnexpectedType unless d is of type t.
func (d *Data) Expect(t Type) error {
	if d.Type != t {
		return errors.Join(ErrUnexpectedType, fmt.Errorf("expect %s but received %s", t, d.Type))
	}
	return nil
}

// Writer frames and numbers outgoing packets. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	sec uint64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(d *Data) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sec++
	frame := *d
	frame.Sec = w.sec
	b, err := json.Marshal(&frame)
	if err != nil {
		return errors.Join(ErrMarshalPacket, err)
	}
	b = append(b, Delimiter)

	n, err := w.w.Write(b)
	if err != nil {
		return errors.Join(ErrWritePacket, err)
	}
	if n != len(b) {
		return errors.Join(ErrInconsistentWrite, fmt.Errorf("%d != %d", n, len(b)))
	}
	return nil
}

// Send builds and writes one frame.
func (w *Writer) Send(t Type, payload interface{}) error {
	d, err := NewData(t, payload)
	if err != nil {
		return err
	}
	return w.Write(d)
}

type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next frame. io.EOF is returned unwrapped when the peer
// closed the stream between frames.
func (r *Reader) Read() (*Data, error) {
	b, err := r.r.ReadBytes(Delimiter)
	if err != nil {
		if errors.Is(err, io.EOF) && len(b) == 0 {
			return nil, io.EOF
		}
		return nil, errors.Join(ErrReadPacket, err)
	}

	d := &Data{}
	if err = json.Unmarshal(b[:len(b)-1], d); err != nil {
		return nil, errors.Join(ErrUnmarshalPacket, err)
	}
	return d, nil
}
