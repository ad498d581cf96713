package decode

import "fmt"

// Disassemble renders a decoded instruction as RISC-V assembly text.
// This is debug/test tooling only: it has no bearing on guest-observable
// behavior and is not part of the instruction-accurate core.
func Disassemble(d Decoded) string {
	r := func(n uint32) string { return fmt.Sprintf("x%d", n) }
	switch d.Opcode {
	case OpLB, OpLH, OpLW, OpLBU, OpLHU:
		return fmt.Sprintf("%s %s, %d(%s)", loadMnemonic(d.Opcode), r(d.RD), int32(d.IImm), r(d.RS1))
	case OpSB, OpSH, OpSW:
		return fmt.Sprintf("%s %s, %d(%s)", storeMnemonic(d.Opcode), r(d.RS2), int32(d.SImm), r(d.RS1))
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		return fmt.Sprintf("%s %s, %s, %d", branchMnemonic(d.Opcode), r(d.RS1), r(d.RS2), int32(d.BImm))
	case OpJAL:
		return fmt.Sprintf("jal %s, %d", r(d.RD), int32(d.JImm))
	case OpJALR:
		return fmt.Sprintf("jalr %s, %d(%s)", r(d.RD), int32(d.IImm), r(d.RS1))
	case OpLUI:
		return fmt.Sprintf("lui %s, %#x", r(d.RD), d.UImm>>12)
	case OpAUIPC:
		return fmt.Sprintf("auipc %s, %#x", r(d.RD), d.UImm>>12)
	case OpECALL:
		return "ecall"
	case OpEBREAK:
		return "ebreak"
	case OpSRET:
		return "sret"
	case OpWFI:
		return "wfi"
	case OpFENCE:
		return "fence"
	case OpFENCEI:
		return "fence.i"
	case OpCSRRW, OpCSRRS, OpCSRRC:
		return fmt.Sprintf("%s %s, %#x, %s", csrMnemonic(d.Opcode), r(d.RD), d.IImm, r(d.RS1))
	case OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return fmt.Sprintf("%s %s, %#x, %d", csrMnemonic(d.Opcode), r(d.RD), d.IImm, d.RS1)
	case OpLRW:
		return fmt.Sprintf("lr.w %s, (%s)", r(d.RD), r(d.RS1))
	case OpSCW:
		return fmt.Sprintf("sc.w %s, %s, (%s)", r(d.RD), r(d.RS2), r(d.RS1))
	default:
		if mnem, ok := regRegMnemonic[d.Opcode]; ok {
			return fmt.Sprintf("%s %s, %s, %s", mnem, r(d.RD), r(d.RS1), r(d.RS2))
		}
		if mnem, ok := regImmMnemonic[d.Opcode]; ok {
			return fmt.Sprintf("%s %s, %s, %d", mnem, r(d.RD), r(d.RS1), int32(d.IImm))
		}
		if mnem, ok := shiftImmMnemonic[d.Opcode]; ok {
			return fmt.Sprintf("%s %s, %s, %d", mnem, r(d.RD), r(d.RS1), d.Shamt&0x1f)
		}
		if mnem, ok := amoMnemonic[d.Opcode]; ok {
			return fmt.Sprintf("%s %s, %s, (%s)", mnem, r(d.RD), r(d.RS2), r(d.RS1))
		}
		return fmt.Sprintf("<unknown %#08x>", d.Word)
	}
}

func loadMnemonic(op Opcode) string {
	switch op {
	case OpLB:
		return "lb"
	case OpLH:
		return "lh"
	case OpLW:
		return "lw"
	case OpLBU:
		return "lbu"
	case OpLHU:
		return "lhu"
	}
	return "?"
}

func storeMnemonic(op Opcode) string {
	switch op {
	case OpSB:
		return "sb"
	case OpSH:
		return "sh"
	case OpSW:
		return "sw"
	}
	return "?"
}

func branchMnemonic(op Opcode) string {
	switch op {
	case OpBEQ:
		return "beq"
	case OpBNE:
		return "bne"
	case OpBLT:
		return "blt"
	case OpBGE:
		return "bge"
	case OpBLTU:
		return "bltu"
	case OpBGEU:
		return "bgeu"
	}
	return "?"
}

func csrMnemonic(op Opcode) string {
	switch op {
	case OpCSRRW:
		return "csrrw"
	case OpCSRRS:
		return "csrrs"
	case OpCSRRC:
		return "csrrc"
	case OpCSRRWI:
		return "csrrwi"
	case OpCSRRSI:
		return "csrrsi"
	case OpCSRRCI:
		return "csrrci"
	}
	return "?"
}

var regRegMnemonic = map[Opcode]string{
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
}

var regImmMnemonic = map[Opcode]string{
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu",
	OpXORI: "xori", OpORI: "ori", OpANDI: "andi",
}

var shiftImmMnemonic = map[Opcode]string{
	OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
}

var amoMnemonic = map[Opcode]string{
	OpAMOSWAPW: "amoswap.w", OpAMOADDW: "amoadd.w", OpAMOXORW: "amoxor.w",
	OpAMOANDW: "amoand.w", OpAMOORW: "amoor.w", OpAMOMINW: "amomin.w",
	OpAMOMAXW: "amomax.w", OpAMOMINUW: "amominu.w", OpAMOMAXUW: "amomaxu.w",
}
