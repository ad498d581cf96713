package csr

import (
	"errors"
	"testing"
)

func TestAccessClass(t *testing.T) {
	cases := []struct {
		addr Addr
		want Class
	}{
		{Cycle, ClassURO},
		{TimeH, ClassURO},
		{Instret, ClassURO},
		{SStatus, ClassSRW},
		{SATP, ClassSRW},
		{0x7FF, ClassUnknown},
	}
	for _, c := range cases {
		if got := AccessClass(c.addr); got != c.want {
			t.Errorf("AccessClass(%#03x) = %v want %v", c.addr, got, c.want)
		}
	}
}

func TestIsCounter(t *testing.T) {
	if bit, ok := IsCounter(Cycle); !ok || bit != SCounterEnCYBit {
		t.Errorf("Cycle: bit=%d ok=%v", bit, ok)
	}
	if bit, ok := IsCounter(TimeH); !ok || bit != SCounterEnTMBit {
		t.Errorf("TimeH: bit=%d ok=%v", bit, ok)
	}
	if bit, ok := IsCounter(InstretH); !ok || bit != SCounterEnIRBit {
		t.Errorf("InstretH: bit=%d ok=%v", bit, ok)
	}
	if _, ok := IsCounter(SStatus); ok {
		t.Errorf("SStatus should not be a counter CSR")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	var f File
	if err := f.Set(SEPC, 0x80400000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := f.Get(SEPC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x80400000 {
		t.Errorf("got %#x want %#x", v, 0x80400000)
	}
}

func TestGetWideCounters(t *testing.T) {
	var f File
	f.Cycle = 0x100000002
	lo, _ := f.Get(Cycle)
	hi, _ := f.Get(CycleH)
	if lo != 2 || hi != 1 {
		t.Errorf("Cycle lo=%#x hi=%#x want lo=2 hi=1", lo, hi)
	}
}

func TestUnknownCSR(t *testing.T) {
	var f File
	_, err := f.Get(0x7FF)
	if err == nil {
		t.Fatal("expected error for unrecognized CSR")
	}
	var uerr *UnknownCSRError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UnknownCSRError, got %T", err)
	}
	if uerr.Addr != 0x7FF {
		t.Errorf("Addr=%#x want %#x", uerr.Addr, 0x7FF)
	}
}

func TestSetURORejected(t *testing.T) {
	var f File
	if err := f.Set(Cycle, 1); err == nil {
		t.Fatal("expected error setting a read-only counter CSR")
	}
}
