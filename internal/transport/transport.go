// Package transport narrows a Modbus client library to the handful of calls
// the polling engine needs. PDU framing, transaction IDs, and socket plumbing
// stay inside the library; callers treat every returned error — transport
// failure or device exception response alike — as "this transaction failed".
package transport

// Client is one Modbus TCP connection to one slave device.
type Client interface {
	// Connect dials the device. It does not retry.
	Connect() error
	// Connected reports the transport's own view of the connection. A
	// half-open TCP socket can still report true here; connection health
	// is tracked separately by the connection manager.
	Connected() bool
	// Close tears the connection down. Safe to call when not connected.
	Close() error

	ReadCoils(address, quantity uint16) ([]bool, error)
	ReadDiscreteInputs(address, quantity uint16) ([]bool, error)
	ReadHoldingRegisters(address, quantity uint16) ([]uint16, error)
	ReadInputRegisters(address, quantity uint16) ([]uint16, error)

	WriteSingleCoil(address uint16, value bool) error
	WriteSingleRegister(address, value uint16) error
	WriteMultipleCoils(address uint16, values []bool) error
	WriteMultipleRegisters(address uint16, values []uint16) error
}
