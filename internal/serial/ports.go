package serial

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// ListPorts returns available serial ports.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	return result, nil
}

// ErrNoPorts is returned by ChoosePort when nothing is connected.
var ErrNoPorts = errors.New("no serial ports were found")

// MultiplePortsError is returned by ChoosePort when the choice is ambiguous.
type MultiplePortsError struct {
	Ports []string
}

func (e *MultiplePortsError) Error() string {
	return fmt.Sprintf("multiple serial ports were found; select one of %s explicitly",
		strings.Join(e.Ports, ", "))
}

// ChoosePort returns explicit when set. Otherwise it returns the only port
// reported by list.
func ChoosePort(explicit string, list func() ([]PortInfo, error)) (name string, auto bool, err error) {
	if explicit != "" {
		return explicit, false, nil
	}
	if list == nil {
		list = ListPorts
	}
	ports, err := list()
	if err != nil {
		return "", false, fmt.Errorf("could not enumerate serial ports: %w", err)
	}
	switch len(ports) {
	case 0:
		return "", false, ErrNoPorts
	case 1:
		return ports[0].Name, true, nil
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return "", false, &MultiplePortsError{Ports: names}
}
