package slave

import (
	"github.com/mklimuk/twi"
)

// State is the transaction state of the slave engine.
type State uint8

const (
	Listening State = iota
	Receiving
	RecBufferFull
	EOR
	EORDataNack
	WriteBufferEmpty
	Transmitting
	EOW
	EOWMoreData
	EOWTooManyData
	BusError
	UnknownError
	ProgError
)

var states = [...]struct {
	name  string
	group twi.Group
	err   error
}{
	Listening:        {"listening", twi.GroupIdle, nil},
	Receiving:        {"receiving", twi.GroupBusy, nil},
	RecBufferFull:    {"rec_bf", twi.GroupWaiting, nil},
	EOR:              {"eor", twi.GroupWaiting, nil},
	EORDataNack:      {"eor_data_nack", twi.GroupIdle, twi.ErrDataNack},
	WriteBufferEmpty: {"wrt_be", twi.GroupWaiting, nil},
	Transmitting:     {"transmitting", twi.GroupBusy, nil},
	EOW:              {"eow", twi.GroupIdle, nil},
	EOWMoreData:      {"eow_more_data", twi.GroupIdle, nil},
	EOWTooManyData:   {"eow_too_many_data", twi.GroupIdle, nil},
	BusError:         {"bus_error", twi.GroupIdle, twi.ErrBusError},
	UnknownError:     {"unknown_error", twi.GroupIdle, twi.ErrUnknownStatus},
	ProgError:        {"prog_error", twi.GroupIdle, twi.ErrInvalidState},
}

func (s State) String() string {
	if int(s) >= len(states) {
		return "invalid"
	}
	return states[s].name
}

func (s State) Group() twi.Group { return states[s].group }
func (s State) IsError() bool    { return states[s].err != nil }
func (s State) Err() error       { return states[s].err }

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
