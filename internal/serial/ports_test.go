package serial

import (
	"errors"
	"testing"
)

func TestChoosePortExplicit(t *testing.T) {
	name, auto, err := ChoosePort("/dev/ttyACM3", func() ([]PortInfo, error) {
		t.Fatal("ports listed despite explicit choice")
		return nil, nil
	})
	if err != nil || name != "/dev/ttyACM3" || auto {
		t.Fatalf("got %q auto=%v err=%v", name, auto, err)
	}
}

func TestChoosePortSingle(t *testing.T) {
	name, auto, err := ChoosePort("", func() ([]PortInfo, error) {
		return []PortInfo{{Name: "/dev/ttyACM0", IsUSB: true}}, nil
	})
	if err != nil || name != "/dev/ttyACM0" || !auto {
		t.Fatalf("got %q auto=%v err=%v", name, auto, err)
	}
}

func TestChoosePortNone(t *testing.T) {
	_, _, err := ChoosePort("", func() ([]PortInfo, error) { return nil, nil })
	if !errors.Is(err, ErrNoPorts) {
		t.Fatalf("expected ErrNoPorts, got %v", err)
	}
}

func TestChoosePortMultiple(t *testing.T) {
	_, _, err := ChoosePort("", func() ([]PortInfo, error) {
		return []PortInfo{{Name: "/dev/ttyACM0"}, {Name: "/dev/ttyUSB1"}}, nil
	})
	var multi *MultiplePortsError
	if !errors.As(err, &multi) {
		t.Fatalf("expected MultiplePortsError, got %v", err)
	}
	if len(multi.Ports) != 2 || multi.Ports[1] != "/dev/ttyUSB1" {
		t.Errorf("unexpected ports %v", multi.Ports)
	}
}

func TestChoosePortEnumerationError(t *testing.T) {
	boom := errors.New("permission denied")
	_, _, err := ChoosePort("", func() ([]PortInfo, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped enumeration error, got %v", err)
	}
}
