package master

import (
	"github.com/mklimuk/twi"
)

// State is the transaction state of the master engine.
type State uint8

const (
	OK State = iota
	ReadOrWrite
	SlaW
	SlaR
	NoResponse
	Transmitting
	EOW
	EOWDataNack
	ErrorBufferSize
	Receiving
	EORBufferFull
	EOR
	BusError
	UnknownError
	ProgError
)

var states = [...]struct {
	name  string
	group twi.Group
	err   error
}{
	OK:              {"ok", twi.GroupIdle, nil},
	ReadOrWrite:     {"read_or_write", twi.GroupBusy, nil},
	SlaW:            {"sla_w", twi.GroupBusy, nil},
	SlaR:            {"sla_r", twi.GroupBusy, nil},
	NoResponse:      {"no_response", twi.GroupIdle, twi.ErrNoResponse},
	Transmitting:    {"transmitting", twi.GroupBusy, nil},
	EOW:             {"eow", twi.GroupWaiting, nil},
	EOWDataNack:     {"eow_data_nack", twi.GroupIdle, twi.ErrDataNack},
	ErrorBufferSize: {"error_buffer_size", twi.GroupIdle, twi.ErrBufferSize},
	Receiving:       {"receiving", twi.GroupBusy, nil},
	EORBufferFull:   {"eor_bf", twi.GroupWaiting, nil},
	EOR:             {"eor", twi.GroupWaiting, nil},
	BusError:        {"bus_error", twi.GroupIdle, twi.ErrBusError},
	UnknownError:    {"unknown_error", twi.GroupIdle, twi.ErrUnknownStatus},
	ProgError:       {"prog_error", twi.GroupIdle, twi.ErrInvalidState},
}

func (s State) valid() bool {
	return int(s) < len(states)
}

func (s State) String() string {
	if !s.valid() {
		return "invalid"
	}
	return states[s].name
}

func (s State) Group() twi.Group {
	return states[s].group
}

func (s State) IsError() bool {
	return states[s].err != nil
}

// Err returns the sentinel error describing an error state, nil otherwise.
func (s State) Err() error {
	return states[s].err
}

// MarshalText makes states readable in yaml and json status dumps.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
