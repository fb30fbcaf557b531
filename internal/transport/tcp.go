package transport

// Modbus TCP client backed by github.com/goburrow/modbus.

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// TCP adapts a goburrow Modbus TCP client to the Client interface.
type TCP struct {
	handler   *modbus.TCPClientHandler
	client    modbus.Client
	connected bool
}

// NewTCP builds a client for host:port with the given request timeout.
// Nothing is dialed until Connect.
func NewTCP(address string, timeout time.Duration) *TCP {
	handler := modbus.NewTCPClientHandler(address)
	handler.Timeout = timeout
	return &TCP{
		handler: handler,
		client:  modbus.NewClient(handler),
	}
}

// Connect dials the device.
func (t *TCP) Connect() error {
	if err := t.handler.Connect(); err != nil {
		t.connected = false
		return err
	}
	t.connected = true
	return nil
}

// Connected reports whether Connect succeeded and Close has not been called.
// The socket may still be half-open underneath.
func (t *TCP) Connected() bool { return t.connected }

// Close tears the connection down.
func (t *TCP) Close() error {
	t.connected = false
	return t.handler.Close()
}

// ReadCoils reads quantity coils starting at address.
func (t *TCP) ReadCoils(address, quantity uint16) ([]bool, error) {
	data, err := t.client.ReadCoils(address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, int(quantity))
}

// ReadDiscreteInputs reads quantity discrete inputs starting at address.
func (t *TCP) ReadDiscreteInputs(address, quantity uint16) ([]bool, error) {
	data, err := t.client.ReadDiscreteInputs(address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, int(quantity))
}

// ReadHoldingRegisters reads quantity holding registers starting at address.
func (t *TCP) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	data, err := t.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(data, int(quantity))
}

// ReadInputRegisters reads quantity input registers starting at address.
func (t *TCP) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	data, err := t.client.ReadInputRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(data, int(quantity))
}

// WriteSingleCoil writes one coil at address.
func (t *TCP) WriteSingleCoil(address uint16, value bool) error {
	var v uint16
	if value {
		v = 0xFF00
	}
	_, err := t.client.WriteSingleCoil(address, v)
	return err
}

// WriteSingleRegister writes one holding register at address.
func (t *TCP) WriteSingleRegister(address, value uint16) error {
	_, err := t.client.WriteSingleRegister(address, value)
	return err
}

// WriteMultipleCoils writes len(values) coils starting at address.
func (t *TCP) WriteMultipleCoils(address uint16, values []bool) error {
	_, err := t.client.WriteMultipleCoils(address, uint16(len(values)), packBits(values))
	return err
}

// WriteMultipleRegisters writes len(values) registers starting at address.
func (t *TCP) WriteMultipleRegisters(address uint16, values []uint16) error {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(data[2*i:], v)
	}
	_, err := t.client.WriteMultipleRegisters(address, uint16(len(values)), data)
	return err
}

// unpackBits expands a coil-status byte slice (LSB first) into count bools.
func unpackBits(data []byte, count int) ([]bool, error) {
	if len(data)*8 < count {
		return nil, fmt.Errorf("coil response too short: %d bytes for %d bits", len(data), count)
	}
	bits := make([]bool, count)
	for i := range bits {
		bits[i] = data[i/8]>>(uint(i)%8)&1 == 1
	}
	return bits, nil
}

// packBits packs bools into a coil-status byte slice, LSB first.
func packBits(values []bool) []byte {
	data := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			data[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return data
}

// unpackRegisters converts a big-endian byte payload into count registers.
func unpackRegisters(data []byte, count int) ([]uint16, error) {
	if len(data) < 2*count {
		return nil, fmt.Errorf("register response too short: %d bytes for %d registers", len(data), count)
	}
	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return regs, nil
}
