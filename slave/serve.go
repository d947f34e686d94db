package slave

import (
	"context"
)

// Handler answers a request written by the master. The reply is staged for
// the master's next read; a nil reply leaves such a read unanswered.
// req is only valid during the call.
type Handler func(req []byte) []byte

// Serve runs the request/reply loop until ctx is done. Requests are
// collected across buffer-full stalls and handed to h after STOP; the reply
// is written when the master reads. A read with no request pending is
// answered with h(nil). Empty writes, as sent by bus scans, are ignored.
func (s *Slave) Serve(ctx context.Context, h Handler) error {
	chunk := make([]byte, s.bufCap)
	req := make([]byte, 0, s.bufCap)
	var reply []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch st := s.State(); {
		case st == RecBufferFull:
			n, _ := s.ReadBuffer(chunk)
			req = append(req, chunk[:n]...)
		case st == EOR:
			// chunk holds a whole buffer so EOR always drains in one call
			n, _ := s.ReadBuffer(chunk)
			req = append(req, chunk[:n]...)
			if len(req) > 0 {
				s.log.Debug("request received", "size", len(req))
				reply = h(req)
			}
			req = req[:0]
		case st == WriteBufferEmpty:
			if reply == nil {
				reply = h(nil)
			}
			if len(reply) == 0 {
				s.StopTransmission()
				continue
			}
			_, err := s.WriteBuffer(reply)
			if err != nil {
				s.log.Warn("could not stage reply", "error", err)
				s.StopTransmission()
			}
			reply = nil
		case st.IsError():
			s.log.Warn("transfer failed", "state", st)
			req = req[:0]
			s.StopTransmission()
		default:
			s.sleep(s.poll)
		}
	}
}
