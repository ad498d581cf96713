package sv32

import (
	"errors"
	"testing"

	"github.com/rv32ima-sim/core/internal/memmap"
)

// newTestMem returns a flat 64 KiB physical address space starting at 0,
// enough room for the small page-table layouts built below.
func newTestMem() *memmap.Map {
	mem := memmap.New()
	mem.Register(0, 0x10000, memmap.NewRAM(0x10000))
	return mem
}

// buildTwoLevel wires a root table at physical 0x2000 (ppn=2) whose
// vpn1=1 slot points at a second-level table at 0x3000 (ppn=3), whose
// vpn0=1 slot holds leafPTE pointing at physical page ppn=5 (0x5000).
// vaddr 0x00401000 resolves vpn1=1, vpn0=1, offset=0 against this layout.
func buildTwoLevel(t *testing.T, mem *memmap.Map, leafPTE uint32) {
	t.Helper()
	const nonLeaf = 0xC01 // V=1, ppn0=3 -> points at the 0x3000 table
	if err := mem.WriteWord(0x2004, nonLeaf); err != nil {
		t.Fatalf("writing root pte: %v", err)
	}
	if err := mem.WriteWord(0x3004, leafPTE); err != nil {
		t.Fatalf("writing leaf pte: %v", err)
	}
}

const testVAddr = 0x00401000
const testSATP = 0x80000002 // mode=1, root ppn=2

func TestTranslateIdentityWhenDisabled(t *testing.T) {
	mem := newTestMem()
	phys, err := Translate(0x12345678, AccessRead, 0, false, false, false, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phys != 0x12345678 {
		t.Errorf("got %#x want identity", phys)
	}
}

func TestTranslateLeaf4KiB(t *testing.T) {
	mem := newTestMem()
	const leaf = 0x14DF // V,R,W,X,U,A,D set, ppn0=5
	buildTwoLevel(t, mem, leaf)

	phys, err := Translate(testVAddr, AccessRead, testSATP, true, false, false, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phys != 0x5000 {
		t.Errorf("got %#x want %#x", phys, 0x5000)
	}
}

func TestTranslateSuperpage(t *testing.T) {
	mem := newTestMem()
	// Root table at 0x2000 (satp ppn=2); vpn1=2 slot is itself a leaf
	// (R set), ppn1=7, ppn0=0 (aligned).
	const superLeaf = 0x7000C3 // V,R,A,D set, ppn1=7, ppn0=0
	if err := mem.WriteWord(0x2008, superLeaf); err != nil {
		t.Fatalf("writing superpage pte: %v", err)
	}
	vaddr := uint32(0x00800123) // vpn1=2, offset-within-superpage=0x123
	phys, err := Translate(vaddr, AccessRead, testSATP, false, false, false, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := uint32(0x1C00123); phys != want {
		t.Errorf("got %#x want %#x", phys, want)
	}
}

func TestTranslateSuperpageMisaligned(t *testing.T) {
	mem := newTestMem()
	// Same as above but ppn0 != 0: misaligned superpage.
	const misaligned = 0x7004C3 // V,R,A,D plus ppn0=1 (bit10 set)
	if err := mem.WriteWord(0x2008, misaligned); err != nil {
		t.Fatalf("writing pte: %v", err)
	}
	vaddr := uint32(0x00800123)
	_, err := Translate(vaddr, AccessRead, testSATP, false, false, false, mem)
	if !errors.Is(err, ErrPageFault) {
		t.Fatalf("expected ErrPageFault, got %v", err)
	}
}

func TestTranslateUserAccessToSupervisorPage(t *testing.T) {
	mem := newTestMem()
	const leaf = 0x14CF // V,R,W,X,A,D set, U clear, ppn0=5
	buildTwoLevel(t, mem, leaf)
	_, err := Translate(testVAddr, AccessRead, testSATP, true, false, false, mem)
	if !errors.Is(err, ErrPageFault) {
		t.Fatalf("expected ErrPageFault, got %v", err)
	}
}

func TestTranslateWriteToReadOnlyPage(t *testing.T) {
	mem := newTestMem()
	const leaf = 0x14CB // V,R,X,A,D set, W clear, ppn0=5
	buildTwoLevel(t, mem, leaf)
	_, err := Translate(testVAddr, AccessWrite, testSATP, false, false, false, mem)
	if !errors.Is(err, ErrPageFault) {
		t.Fatalf("expected ErrPageFault, got %v", err)
	}
}

func TestTranslateExecuteNonExecutablePage(t *testing.T) {
	mem := newTestMem()
	const leaf = 0x14C7 // V,R,W,A,D set, X clear, ppn0=5
	buildTwoLevel(t, mem, leaf)
	_, err := Translate(testVAddr, AccessExecute, testSATP, false, false, false, mem)
	if !errors.Is(err, ErrPageFault) {
		t.Fatalf("expected ErrPageFault, got %v", err)
	}
}

func TestTranslateAccessedBitRequired(t *testing.T) {
	mem := newTestMem()
	const leaf = 0x149F // V,R,W,X,U,D set, A clear, ppn0=5
	buildTwoLevel(t, mem, leaf)
	_, err := Translate(testVAddr, AccessRead, testSATP, true, false, false, mem)
	if !errors.Is(err, ErrPageFault) {
		t.Fatalf("expected ErrPageFault, got %v", err)
	}
}

func TestTranslateDirtyBitRequiredOnWrite(t *testing.T) {
	mem := newTestMem()
	const leaf = 0x145F // V,R,W,X,U,A set, D clear, ppn0=5
	buildTwoLevel(t, mem, leaf)
	_, err := Translate(testVAddr, AccessWrite, testSATP, true, false, false, mem)
	if !errors.Is(err, ErrPageFault) {
		t.Fatalf("expected ErrPageFault, got %v", err)
	}
}

func TestTranslateSupervisorSUMGating(t *testing.T) {
	mem := newTestMem()
	const leaf = 0x14DF // V,R,W,X,U,A,D set, ppn0=5
	buildTwoLevel(t, mem, leaf)

	if _, err := Translate(testVAddr, AccessRead, testSATP, false, false, false, mem); !errors.Is(err, ErrPageFault) {
		t.Errorf("expected fault without sum, got %v", err)
	}
	if _, err := Translate(testVAddr, AccessRead, testSATP, false, true, false, mem); err != nil {
		t.Errorf("expected success with sum set, got %v", err)
	}
	if _, err := Translate(testVAddr, AccessExecute, testSATP, false, true, false, mem); !errors.Is(err, ErrPageFault) {
		t.Errorf("expected execute on U page from S-mode to always fault, got %v", err)
	}
}

func TestTranslatePhysicalOverflow(t *testing.T) {
	mem := newTestMem()
	const satp = 0x803FFFFF // mode=1, ppn=0x3FFFFF (max 22-bit value)
	_, err := Translate(testVAddr, AccessRead, satp, false, false, false, mem)
	var operr *PhysicalOverflowError
	if !errors.As(err, &operr) {
		t.Fatalf("expected *PhysicalOverflowError, got %T (%v)", err, err)
	}
}
