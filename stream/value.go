package stream

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Fixed is the set of fixed width integers the typed helpers move.
type Fixed interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

// WriteValue appends v to the current write in the stream's byte order.
func WriteValue[T Fixed](ctx context.Context, s *Stream, v T) error {
	buf, err := binary.Append(nil, s.config.ByteOrder, v)
	if err != nil {
		return fmt.Errorf("could not encode %T: %w", v, err)
	}
	return s.Write(ctx, buf)
}

// ReadValue reads one value of type T in its own read transfer.
func ReadValue[T Fixed](ctx context.Context, s *Stream) (T, error) {
	var v T
	buf := make([]byte, binary.Size(v))
	err := s.Read(ctx, buf)
	if err != nil {
		return v, err
	}
	_, err = binary.Decode(buf, s.config.ByteOrder, &v)
	if err != nil {
		return v, fmt.Errorf("could not decode %T: %w", v, err)
	}
	return v, nil
}
