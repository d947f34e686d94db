package sim

import "fmt"

// Op names a hardware primitive invoked by an engine.
type Op string

const (
	OpEnable           Op = "ENABLE"
	OpDisable          Op = "DISABLE"
	OpInterruptEnable  Op = "INT_ON"
	OpInterruptDisable Op = "INT_OFF"
	OpSetClock         Op = "CLOCK"
	OpStart            Op = "START"
	OpRepeatedStart    Op = "RSTART"
	OpStop             Op = "STOP"
	OpTransmit         Op = "TX"
	OpReceiveAck       Op = "RX_ACK"
	OpReceiveNack      Op = "RX_NACK"
	OpRecover          Op = "RECOVER"
	OpReset            Op = "RESET"
	OpListen           Op = "LISTEN"
	OpTransmitAck      Op = "TX_ACK"
	OpTransmitNack     Op = "TX_NACK"
	OpNotAddressed     Op = "NOT_ADDRESSED"
)

// Call is one recorded primitive invocation.
type Call struct {
	Op  Op
	Arg byte
}

func (c Call) String() string {
	switch c.Op {
	case OpTransmit, OpTransmitAck, OpTransmitNack, OpListen:
		return fmt.Sprintf("%s %#02x", c.Op, c.Arg)
	default:
		return string(c.Op)
	}
}

// Count returns how many calls of op were recorded.
func Count(calls []Call, op Op) int {
	n := 0
	for _, c := range calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

type callLog struct {
	calls []Call
}

func (l *callLog) record(op Op, arg byte) {
	l.calls = append(l.calls, Call{Op: op, Arg: arg})
}

func (l *callLog) snapshot() []Call {
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}
