// Package decode classifies a 32-bit RV32IMA instruction word into a
// coarse format and a refined opcode. Decode is a pure function: it has
// no side effects and never touches hart state.
package decode

import (
	"fmt"

	"github.com/rv32ima-sim/core/internal/bitfield"
)

// Format is the coarse instruction class, derived from the low 7 bits
// of the instruction word.
type Format int

const (
	FormatLoad Format = iota
	FormatStore
	FormatBranch
	FormatJump
	FormatAMO
	FormatOpImm
	FormatOp
	FormatSystem
	FormatOpUI // LUI, AUIPC
	FormatFence
)

func (f Format) String() string {
	switch f {
	case FormatLoad:
		return "LOAD"
	case FormatStore:
		return "STORE"
	case FormatBranch:
		return "BRANCH"
	case FormatJump:
		return "JUMP"
	case FormatAMO:
		return "AMO"
	case FormatOpImm:
		return "OP_IMM"
	case FormatOp:
		return "OP"
	case FormatSystem:
		return "SYSTEM"
	case FormatOpUI:
		return "OP_UI"
	case FormatFence:
		return "OP_FENCE"
	default:
		return "UNKNOWN"
	}
}

// Opcode is the refined, fully disambiguated instruction identity.
type Opcode int

const (
	OpInvalid Opcode = iota

	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	OpSB
	OpSH
	OpSW

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpJAL
	OpJALR

	OpLRW
	OpSCW
	OpAMOSWAPW
	OpAMOADDW
	OpAMOXORW
	OpAMOANDW
	OpAMOORW
	OpAMOMINW
	OpAMOMAXW
	OpAMOMINUW
	OpAMOMAXUW

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	OpECALL
	OpEBREAK
	OpSRET
	OpWFI
	OpSFENCEVMA
	OpSINVALVMA
	OpSFENCEWINVAL
	OpSFENCEINVALIR

	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	OpLUI
	OpAUIPC

	OpFENCE
	OpFENCEI
)

// Base opcode field values (instruction bits [6:0]).
const (
	baseLoad   = 0x03
	baseFence  = 0x0F
	baseOpImm  = 0x13
	baseAUIPC  = 0x17
	baseStore  = 0x23
	baseAMO    = 0x2F
	baseOp     = 0x33
	baseLUI    = 0x37
	baseBranch = 0x63
	baseJALR   = 0x67
	baseJAL    = 0x6F
	baseSystem = 0x73
)

// Decoded is the result of classifying an instruction word.
type Decoded struct {
	Word   uint32
	Format Format
	Opcode Opcode
	RD     uint32
	RS1    uint32
	RS2    uint32
	Funct3 uint32
	IImm   uint32
	SImm   uint32
	BImm   uint32
	UImm   uint32
	JImm   uint32
	Shamt  uint32 // low 5 bits of rs2 field, for shift-immediate
}

// Error is returned when a word cannot be classified into any known
// instruction. The executor converts this into an illegal-instruction
// trap rather than a host fault.
type Error struct {
	Word uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode: unclassifiable instruction word %#08x", e.Word)
}

// Decode classifies word into a format and opcode.
func Decode(word uint32) (Decoded, error) {
	base := bitfield.Get32(word, 6, 0)
	funct3 := bitfield.Get32(word, 14, 12)
	funct7 := bitfield.Get32(word, 31, 25)

	d := Decoded{
		Word:   word,
		RD:     bitfield.Get32(word, 11, 7),
		RS1:    bitfield.Get32(word, 19, 15),
		RS2:    bitfield.Get32(word, 24, 20),
		Funct3: funct3,
		IImm:   bitfield.IImm(word),
		SImm:   bitfield.SImm(word),
		BImm:   bitfield.BImm(word),
		UImm:   bitfield.UImm(word),
		JImm:   bitfield.JImm(word),
		Shamt:  bitfield.Get32(word, 24, 20),
	}

	switch base {
	case baseLoad:
		d.Format = FormatLoad
		switch funct3 {
		case 0b000:
			d.Opcode = OpLB
		case 0b001:
			d.Opcode = OpLH
		case 0b010:
			d.Opcode = OpLW
		case 0b100:
			d.Opcode = OpLBU
		case 0b101:
			d.Opcode = OpLHU
		default:
			return d, &Error{Word: word}
		}
	case baseStore:
		d.Format = FormatStore
		switch funct3 {
		case 0b000:
			d.Opcode = OpSB
		case 0b001:
			d.Opcode = OpSH
		case 0b010:
			d.Opcode = OpSW
		default:
			return d, &Error{Word: word}
		}
	case baseBranch:
		d.Format = FormatBranch
		switch funct3 {
		case 0b000:
			d.Opcode = OpBEQ
		case 0b001:
			d.Opcode = OpBNE
		case 0b100:
			d.Opcode = OpBLT
		case 0b101:
			d.Opcode = OpBGE
		case 0b110:
			d.Opcode = OpBLTU
		case 0b111:
			d.Opcode = OpBGEU
		default:
			return d, &Error{Word: word}
		}
	case baseJAL:
		d.Format = FormatJump
		d.Opcode = OpJAL
	case baseJALR:
		if funct3 != 0 {
			return d, &Error{Word: word}
		}
		d.Format = FormatJump
		d.Opcode = OpJALR
	case baseAMO:
		d.Format = FormatAMO
		if funct3 != 0b010 {
			return d, &Error{Word: word}
		}
		switch bitfield.Get32(word, 31, 27) {
		case 0b00010:
			d.Opcode = OpLRW
		case 0b00011:
			d.Opcode = OpSCW
		case 0b00001:
			d.Opcode = OpAMOSWAPW
		case 0b00000:
			d.Opcode = OpAMOADDW
		case 0b00100:
			d.Opcode = OpAMOXORW
		case 0b01100:
			d.Opcode = OpAMOANDW
		case 0b01000:
			d.Opcode = OpAMOORW
		case 0b10000:
			d.Opcode = OpAMOMINW
		case 0b10100:
			d.Opcode = OpAMOMAXW
		case 0b11000:
			d.Opcode = OpAMOMINUW
		case 0b11100:
			d.Opcode = OpAMOMAXUW
		default:
			return d, &Error{Word: word}
		}
	case baseOpImm:
		d.Format = FormatOpImm
		switch funct3 {
		case 0b000:
			d.Opcode = OpADDI
		case 0b010:
			d.Opcode = OpSLTI
		case 0b011:
			d.Opcode = OpSLTIU
		case 0b100:
			d.Opcode = OpXORI
		case 0b110:
			d.Opcode = OpORI
		case 0b111:
			d.Opcode = OpANDI
		case 0b001:
			d.Opcode = OpSLLI
		case 0b101:
			if bitfield.Bit(word, 30) == 1 {
				d.Opcode = OpSRAI
			} else {
				d.Opcode = OpSRLI
			}
		default:
			return d, &Error{Word: word}
		}
	case baseOp:
		d.Format = FormatOp
		if bitfield.Bit(funct7, 0) == 1 {
			// M-extension sub-table.
			switch funct3 {
			case 0b000:
				d.Opcode = OpMUL
			case 0b001:
				d.Opcode = OpMULH
			case 0b010:
				d.Opcode = OpMULHSU
			case 0b011:
				d.Opcode = OpMULHU
			case 0b100:
				d.Opcode = OpDIV
			case 0b101:
				d.Opcode = OpDIVU
			case 0b110:
				d.Opcode = OpREM
			case 0b111:
				d.Opcode = OpREMU
			default:
				return d, &Error{Word: word}
			}
			break
		}
		switch funct3 {
		case 0b000:
			if funct7 == 0b0100000 {
				d.Opcode = OpSUB
			} else if funct7 == 0 {
				d.Opcode = OpADD
			} else {
				return d, &Error{Word: word}
			}
		case 0b001:
			d.Opcode = OpSLL
		case 0b010:
			d.Opcode = OpSLT
		case 0b011:
			d.Opcode = OpSLTU
		case 0b100:
			d.Opcode = OpXOR
		case 0b101:
			if funct7 == 0b0100000 {
				d.Opcode = OpSRA
			} else if funct7 == 0 {
				d.Opcode = OpSRL
			} else {
				return d, &Error{Word: word}
			}
		case 0b110:
			d.Opcode = OpOR
		case 0b111:
			d.Opcode = OpAND
		default:
			return d, &Error{Word: word}
		}
	case baseLUI:
		d.Format = FormatOpUI
		d.Opcode = OpLUI
	case baseAUIPC:
		d.Format = FormatOpUI
		d.Opcode = OpAUIPC
	case baseFence:
		d.Format = FormatFence
		switch funct3 {
		case 0b000:
			d.Opcode = OpFENCE
		case 0b001:
			d.Opcode = OpFENCEI
		default:
			return d, &Error{Word: word}
		}
	case baseSystem:
		d.Format = FormatSystem
		switch funct3 {
		case 0b000:
			imm := bitfield.CSRIndex(word)
			switch imm {
			case 0x000:
				d.Opcode = OpECALL
			case 0x001:
				d.Opcode = OpEBREAK
			case 0x102:
				d.Opcode = OpSRET
			case 0x105:
				d.Opcode = OpWFI
			default:
				switch funct7 {
				case 0b0001001:
					d.Opcode = OpSFENCEVMA
				case 0b0001011:
					d.Opcode = OpSINVALVMA
				case 0b0001100:
					// rs2 distinguishes SFENCE.W.INVAL (rs2=0) from
					// SFENCE.INVAL.IR (rs2=1).
					if d.RS2 == 0 {
						d.Opcode = OpSFENCEWINVAL
					} else {
						d.Opcode = OpSFENCEINVALIR
					}
				default:
					return d, &Error{Word: word}
				}
			}
		case 0b001:
			d.Opcode = OpCSRRW
		case 0b010:
			d.Opcode = OpCSRRS
		case 0b011:
			d.Opcode = OpCSRRC
		case 0b101:
			d.Opcode = OpCSRRWI
		case 0b110:
			d.Opcode = OpCSRRSI
		case 0b111:
			d.Opcode = OpCSRRCI
		default:
			return d, &Error{Word: word}
		}
	default:
		return d, &Error{Word: word}
	}

	return d, nil
}
