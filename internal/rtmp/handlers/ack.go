package handlers

// AckAccounting is the narrow slice of session state the acknowledgement
// middleware needs: an inbound byte counter it can add to and drain, and the
// currently negotiated window size. conn.Connection satisfies this with thin
// accessor methods.
type AckAccounting interface {
	AddInboundBytes(n uint32)
	InboundBytes() uint32
	ResetInboundBytes()
	WindowAckSize() uint32
}

// AckSender emits the Acknowledgement control message once the inbound byte
// counter crosses window/8.
type AckSender func(total uint32) error

// AckMiddleware wraps a handler that reads inbound bytes (typically "read one
// chunk and account for n bytes consumed"). After inner runs, it checks the
// accumulated inbound-byte delta against window/8; if exceeded it emits an
// Acknowledgement carrying the running total and resets the counter. read
// reports how many bytes inner consumed off the wire for this invocation.
func AckMiddleware(acc AckAccounting, send AckSender, read func() (n int, err error)) Handler {
	return func() error {
		n, err := read()
		if n > 0 {
			acc.AddInboundBytes(uint32(n))
		}
		if err != nil {
			return err
		}
		window := acc.WindowAckSize()
		if window == 0 {
			return nil
		}
		if acc.InboundBytes() >= window/8 {
			total := acc.InboundBytes()
			if send != nil {
				if sendErr := send(total); sendErr != nil {
					return sendErr
				}
			}
			acc.ResetInboundBytes()
		}
		return nil
	}
}
