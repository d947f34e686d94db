package twi

import "fmt"

// Event is the bus status code latched by the hardware after each protocol step.
// Values follow the common TWI status register encoding.
type Event uint8

const (
	EventBusError Event = 0x00

	// master
	EventStart         Event = 0x08
	EventRepeatedStart Event = 0x10
	EventSlaWAck       Event = 0x18
	EventSlaWNack      Event = 0x20
	EventDataSentAck   Event = 0x28
	EventDataSentNack  Event = 0x30
	EventArbitration   Event = 0x38
	EventSlaRAck       Event = 0x40
	EventSlaRNack      Event = 0x48
	EventDataRecvAck   Event = 0x50
	EventDataRecvNack  Event = 0x58

	// slave receiver
	EventSlaveSlaW         Event = 0x60
	EventSlaveDataRecvAck  Event = 0x80
	EventSlaveDataRecvNack Event = 0x88
	EventSlaveStop         Event = 0xA0

	// slave transmitter
	EventSlaveSlaR         Event = 0xA8
	EventSlaveDataSentAck  Event = 0xB8
	EventSlaveDataSentNack Event = 0xC0
	EventSlaveLastDataAck  Event = 0xC8

	// EventNone means no relevant state information is available.
	EventNone Event = 0xF8
)

var eventNames = map[Event]string{
	EventBusError:          "bus error",
	EventStart:             "start sent",
	EventRepeatedStart:     "repeated start sent",
	EventSlaWAck:           "SLA+W acked",
	EventSlaWNack:          "SLA+W nacked",
	EventDataSentAck:       "data sent, acked",
	EventDataSentNack:      "data sent, nacked",
	EventArbitration:       "arbitration lost",
	EventSlaRAck:           "SLA+R acked",
	EventSlaRNack:          "SLA+R nacked",
	EventDataRecvAck:       "data received, ack returned",
	EventDataRecvNack:      "data received, nack returned",
	EventSlaveSlaW:         "own SLA+W received",
	EventSlaveDataRecvAck:  "slave data received, ack returned",
	EventSlaveDataRecvNack: "slave data received, nack returned",
	EventSlaveStop:         "stop or repeated start received",
	EventSlaveSlaR:         "own SLA+R received",
	EventSlaveDataSentAck:  "slave data sent, acked",
	EventSlaveDataSentNack: "slave data sent, nacked",
	EventSlaveLastDataAck:  "slave last data sent, acked",
	EventNone:              "no event",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%#02x)", uint8(e))
}
