// Package config loads and validates the Modbus master fleet configuration:
// a list of slave devices, each with connection settings and an I/O point
// table mapping Modbus entities onto IEC buffer locations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edgeplc/modmaster/internal/iec"
	"github.com/edgeplc/modmaster/internal/transport"
)

// DefaultCycleTimeMs is used when neither a point nor its device names a
// cycle time.
const DefaultCycleTimeMs = 1000

// IOPoint is one row of a device's polling table. Offset is kept as the
// configured string (decimal or 0x hex) and parsed on demand.
type IOPoint struct {
	FC          int    `json:"fc" yaml:"fc"`
	Offset      string `json:"offset" yaml:"offset"`
	IECLocation string `json:"iec_location" yaml:"iec_location"`
	Length      int    `json:"len" yaml:"len"`
	CycleTimeMs int    `json:"cycle_time_ms,omitempty" yaml:"cycle_time_ms,omitempty"`
}

// Device is one slave device: connection settings plus its point table.
type Device struct {
	Name        string
	Host        string
	Port        int
	CycleTimeMs int
	TimeoutMs   int
	Points      []IOPoint
}

// Target returns the device's host:port dial string.
func (d Device) Target() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// BaseTickMs returns the GCD of the device's point cycle times: the
// fundamental loop period of its worker. Devices whose points carry no valid
// cycle time fall back to DefaultCycleTimeMs.
func (d Device) BaseTickMs() int {
	base := 0
	for _, p := range d.Points {
		if p.CycleTimeMs > 0 {
			base = gcd(base, p.CycleTimeMs)
		}
	}
	if base == 0 {
		return DefaultCycleTimeMs
	}
	return base
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// File schema: an array of device entries, each wrapping the per-protocol
// config object.
type deviceEntry struct {
	Name     string       `json:"name" yaml:"name"`
	Protocol string       `json:"protocol" yaml:"protocol"`
	Config   deviceConfig `json:"config" yaml:"config"`
}

type deviceConfig struct {
	Host        string    `json:"host" yaml:"host"`
	Port        int       `json:"port" yaml:"port"`
	CycleTimeMs int       `json:"cycle_time_ms" yaml:"cycle_time_ms"`
	TimeoutMs   int       `json:"timeout_ms" yaml:"timeout_ms"`
	IOPoints    []IOPoint `json:"io_points" yaml:"io_points"`
}

// Load reads a fleet configuration file (JSON, or YAML for .yaml/.yml),
// applies defaults, and validates it.
func Load(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var entries []deviceEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	devices := make([]Device, 0, len(entries))
	for i, e := range entries {
		if !strings.EqualFold(e.Protocol, "MODBUS") {
			return nil, fmt.Errorf("device %d (%q): unsupported protocol %q", i, e.Name, e.Protocol)
		}
		dev := Device{
			Name:        e.Name,
			Host:        e.Config.Host,
			Port:        e.Config.Port,
			CycleTimeMs: e.Config.CycleTimeMs,
			TimeoutMs:   e.Config.TimeoutMs,
			Points:      e.Config.IOPoints,
		}
		// Points without their own cycle time inherit the device's.
		for j := range dev.Points {
			if dev.Points[j].CycleTimeMs == 0 {
				dev.Points[j].CycleTimeMs = dev.CycleTimeMs
			}
		}
		devices = append(devices, dev)
	}

	if err := Validate(devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Validate checks the whole fleet: unique names and endpoints, legal
// connection settings, and well-formed point tables.
func Validate(devices []Device) error {
	names := make(map[string]bool)
	targets := make(map[string]bool)

	for _, dev := range devices {
		if dev.Name == "" {
			return fmt.Errorf("device with empty name")
		}
		if names[dev.Name] {
			return fmt.Errorf("duplicate device name %q", dev.Name)
		}
		names[dev.Name] = true

		if dev.Host == "" {
			return fmt.Errorf("device %q: empty host", dev.Name)
		}
		if dev.Port <= 0 || dev.Port > 65535 {
			return fmt.Errorf("device %q: invalid port %d", dev.Name, dev.Port)
		}
		target := dev.Target()
		if targets[target] {
			return fmt.Errorf("device %q: duplicate endpoint %s", dev.Name, target)
		}
		targets[target] = true

		if dev.CycleTimeMs <= 0 {
			return fmt.Errorf("device %q: cycle_time_ms must be positive, got %d", dev.Name, dev.CycleTimeMs)
		}
		if dev.TimeoutMs <= 0 {
			return fmt.Errorf("device %q: timeout_ms must be positive, got %d", dev.Name, dev.TimeoutMs)
		}

		if err := validatePoints(dev); err != nil {
			return err
		}
	}
	return nil
}

func validatePoints(dev Device) error {
	base := dev.BaseTickMs()
	for i, p := range dev.Points {
		fc := transport.FunctionCode(p.FC)
		if !fc.IsRead() && !fc.IsWrite() {
			return fmt.Errorf("device %q point %d: unsupported function code %d", dev.Name, i, p.FC)
		}
		if _, err := ParseOffset(p.Offset); err != nil {
			return fmt.Errorf("device %q point %d: %w", dev.Name, i, err)
		}
		if p.Length <= 0 {
			return fmt.Errorf("device %q point %d: len must be positive, got %d", dev.Name, i, p.Length)
		}
		if p.CycleTimeMs <= 0 {
			return fmt.Errorf("device %q point %d: cycle_time_ms must be positive, got %d", dev.Name, i, p.CycleTimeMs)
		}
		// The worker polls each point every cycle_time/base ticks; a cycle
		// time that is not an exact multiple of the base tick would silently
		// poll at a truncated rate, so it is rejected here instead.
		if p.CycleTimeMs%base != 0 {
			return fmt.Errorf("device %q point %d: cycle_time_ms %d is not a multiple of the device base tick %dms",
				dev.Name, i, p.CycleTimeMs, base)
		}

		addr, err := iec.ParseAddress(p.IECLocation)
		if err != nil {
			return fmt.Errorf("device %q point %d: %w", dev.Name, i, err)
		}
		dir := iec.DirRead
		if fc.IsWrite() {
			dir = iec.DirWrite
		}
		if _, err := iec.Resolve(addr, dir); err != nil {
			return fmt.Errorf("device %q point %d: %w", dev.Name, i, err)
		}
		// Coil-oriented codes move bits; register codes move whole elements.
		// A mismatch between the two would transfer garbage, so it is a
		// configuration error.
		if fc.IsBitOriented() != addr.IsBit() {
			return fmt.Errorf("device %q point %d: function code %s does not match location %s",
				dev.Name, i, fc, p.IECLocation)
		}
	}
	return nil
}

// ParseOffset parses a Modbus protocol address given as a decimal or 0x hex
// string.
func ParseOffset(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("offset must be a non-empty string")
	}
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("cannot parse offset %q (decimal or 0x hex): %w", s, err)
	}
	if v > 0xFFFF {
		return 0, fmt.Errorf("offset %q exceeds the Modbus address space", s)
	}
	return uint16(v), nil
}
