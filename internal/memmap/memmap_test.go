package memmap

import (
	"errors"
	"testing"
)

func TestRAMByteAccess(t *testing.T) {
	m := New()
	ram := NewRAM(16)
	m.Register(0x1000, 16, ram)

	if err := m.WriteByte(0x1000, 0xAB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := m.ReadByte(0x1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0xAB {
		t.Errorf("got %#x want %#x", v, 0xAB)
	}
}

func TestWordRoundTripLittleEndian(t *testing.T) {
	m := New()
	ram := NewRAM(16)
	m.Register(0x1000, 16, ram)

	if err := m.WriteWord(0x1000, 0xDEADBEEF); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b0, _ := m.ReadByte(0x1000)
	b1, _ := m.ReadByte(0x1001)
	b2, _ := m.ReadByte(0x1002)
	b3, _ := m.ReadByte(0x1003)
	if b0 != 0xEF || b1 != 0xBE || b2 != 0xAD || b3 != 0xDE {
		t.Errorf("bytes not little-endian: %02x %02x %02x %02x", b0, b1, b2, b3)
	}

	w, err := m.ReadWord(0x1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 0xDEADBEEF {
		t.Errorf("ReadWord got %#x want %#x", w, 0xDEADBEEF)
	}
}

func TestHalfRoundTrip(t *testing.T) {
	m := New()
	ram := NewRAM(16)
	m.Register(0x1000, 16, ram)

	if err := m.WriteHalf(0x1000, 0xBEEF); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := m.ReadHalf(0x1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != 0xBEEF {
		t.Errorf("got %#x want %#x", h, 0xBEEF)
	}
}

func TestUnmappedAccess(t *testing.T) {
	m := New()
	_, err := m.ReadByte(0x5000)
	if err == nil {
		t.Fatal("expected error for unmapped address")
	}
	var uerr *UnmappedAccessError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UnmappedAccessError, got %T", err)
	}
	if uerr.Addr != 0x5000 {
		t.Errorf("Addr=%#x want %#x", uerr.Addr, 0x5000)
	}
}

func TestMultipleRegions(t *testing.T) {
	m := New()
	ram1 := NewRAM(16)
	ram2 := NewRAM(16)
	m.Register(0x1000, 16, ram1)
	m.Register(0x2000, 16, ram2)

	if err := m.WriteByte(0x2000, 0x42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.ReadByte(0x1000); err != nil {
		t.Fatalf("unexpected error reading ram1: %v", err)
	}
	v, err := m.ReadByte(0x2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x42 {
		t.Errorf("got %#x want %#x", v, 0x42)
	}
}
