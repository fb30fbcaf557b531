package transport

// Modbus function codes used by the master.

// FunctionCode represents a Modbus function code.
type FunctionCode uint8

const (
	// Bit access
	FcReadCoils          FunctionCode = 0x01
	FcReadDiscreteInputs FunctionCode = 0x02

	// 16-bit register access
	FcReadHoldingRegisters FunctionCode = 0x03
	FcReadInputRegisters   FunctionCode = 0x04

	// Single write
	FcWriteSingleCoil     FunctionCode = 0x05
	FcWriteSingleRegister FunctionCode = 0x06

	// Multiple write
	FcWriteMultipleCoils     FunctionCode = 0x0F
	FcWriteMultipleRegisters FunctionCode = 0x10
)

// String returns a human-readable name for the function code.
func (fc FunctionCode) String() string {
	switch fc {
	case FcReadCoils:
		return "Read_Coils"
	case FcReadDiscreteInputs:
		return "Read_Discrete_Inputs"
	case FcReadHoldingRegisters:
		return "Read_Holding_Registers"
	case FcReadInputRegisters:
		return "Read_Input_Registers"
	case FcWriteSingleCoil:
		return "Write_Single_Coil"
	case FcWriteSingleRegister:
		return "Write_Single_Register"
	case FcWriteMultipleCoils:
		return "Write_Multiple_Coils"
	case FcWriteMultipleRegisters:
		return "Write_Multiple_Registers"
	default:
		return "Unknown"
	}
}

// IsRead returns true for read function codes.
func (fc FunctionCode) IsRead() bool {
	switch fc {
	case FcReadCoils, FcReadDiscreteInputs, FcReadHoldingRegisters, FcReadInputRegisters:
		return true
	default:
		return false
	}
}

// IsWrite returns true for write function codes.
func (fc FunctionCode) IsWrite() bool {
	switch fc {
	case FcWriteSingleCoil, FcWriteSingleRegister, FcWriteMultipleCoils, FcWriteMultipleRegisters:
		return true
	default:
		return false
	}
}

// IsBitOriented returns true for function codes that move coils or discrete
// inputs rather than registers.
func (fc FunctionCode) IsBitOriented() bool {
	switch fc {
	case FcReadCoils, FcReadDiscreteInputs, FcWriteSingleCoil, FcWriteMultipleCoils:
		return true
	default:
		return false
	}
}
