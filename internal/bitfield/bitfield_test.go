package bitfield

import "testing"

func TestGet32(t *testing.T) {
	w := uint32(0xABCD1234)
	if v := Get32(w, 31, 24); v != 0xAB {
		t.Errorf("Get32(31,24) got %#x want %#x", v, 0xAB)
	}
	if v := Get32(w, 15, 0); v != 0x1234 {
		t.Errorf("Get32(15,0) got %#x want %#x", v, 0x1234)
	}
	if v := Get32(w, 0, 0); v != 0 {
		t.Errorf("Get32(0,0) got %#x want 0", v)
	}
}

func TestWith32(t *testing.T) {
	w := uint32(0x00000000)
	w = With32(w, 7, 0, 0xFF)
	if w != 0xFF {
		t.Errorf("With32 got %#x want %#x", w, 0xFF)
	}
	w = With32(w, 15, 8, 0xAB)
	if w != 0xABFF {
		t.Errorf("With32 got %#x want %#x", w, 0xABFF)
	}
}

func TestBit(t *testing.T) {
	w := uint32(0b1010)
	if Bit(w, 1) != 1 {
		t.Errorf("Bit(1) got 0 want 1")
	}
	if Bit(w, 0) != 0 {
		t.Errorf("Bit(0) got 1 want 0")
	}
}

func TestSignExtend(t *testing.T) {
	if v := int32(SignExtend(0xFFF, 12)); v != -1 {
		t.Errorf("SignExtend(0xFFF,12) got %d want -1", v)
	}
	if v := int32(SignExtend(0x7FF, 12)); v != 2047 {
		t.Errorf("SignExtend(0x7FF,12) got %d want 2047", v)
	}
}

func TestIImm(t *testing.T) {
	// ADDI x1, x0, -1: imm field all ones.
	word := uint32(0xFFF00093)
	if v := int32(IImm(word)); v != -1 {
		t.Errorf("IImm got %d want -1", v)
	}
}

func TestSImm(t *testing.T) {
	// SW x1, -4(x2): imm = -4.
	word := uint32(0xFE112E23)
	if v := int32(SImm(word)); v != -4 {
		t.Errorf("SImm got %d want -4", v)
	}
}

func TestBImm(t *testing.T) {
	// beq x0, x0, 16
	word := uint32(0x00000863)
	if v := int32(BImm(word)); v != 16 {
		t.Errorf("BImm got %d want 16", v)
	}
}

func TestUImm(t *testing.T) {
	word := uint32(0x12345037) // lui x0, 0x12345
	if v := UImm(word); v != 0x12345000 {
		t.Errorf("UImm got %#x want %#x", v, 0x12345000)
	}
}

func TestJImm(t *testing.T) {
	// JAL x0, 0: all imm bits zero.
	word := uint32(0x0000006F)
	if v := int32(JImm(word)); v != 0 {
		t.Errorf("JImm got %d want 0", v)
	}
}

func TestCSRIndex(t *testing.T) {
	// CSRRS x1, 0x100, x0
	word := uint32(0x100020F3)
	if v := CSRIndex(word); v != 0x100 {
		t.Errorf("CSRIndex got %#x want %#x", v, 0x100)
	}
}
