package serial

import (
	"errors"
	"fmt"
	"sort"

	bugst "go.bug.st/serial"
)

var (
	ErrNoPorts   = errors.New("serial: no serial ports found")
	ErrManyPorts = errors.New("serial: several serial ports found, pick one")
)

// ListPorts returns the serial devices present on this machine.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// DetectPort returns the only serial device present. Zero or several
// devices are an error listing what was found.
func DetectPort() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	return pickPort(ports)
}

func pickPort(ports []string) (string, error) {
	switch len(ports) {
	case 0:
		return "", ErrNoPorts
	case 1:
		return ports[0], nil
	}
	return "", fmt.Errorf("%w: %v", ErrManyPorts, ports)
}
