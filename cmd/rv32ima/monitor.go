package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peterh/liner"

	"github.com/rv32ima-sim/core/internal/decode"
	"github.com/rv32ima-sim/core/internal/hart"
	"github.com/rv32ima-sim/core/internal/memmap"
)

// monitor is the optional interactive console, grounded on the
// teacher's command/reader.ConsoleReader: a liner.State prompting for
// commands, fed to a small dispatcher, run on its own goroutine. Unlike
// the teacher's parser-driven command set (built for mainframe device
// control), this dispatcher is a handful of direct cases: the spec's
// domain has no device tree of commands to parse.
type monitor struct {
	line *liner.State
	cmds chan string
}

func newMonitor() *monitor {
	m := &monitor{
		line: liner.NewLiner(),
		cmds: make(chan string),
	}
	m.line.SetCtrlCAborts(true)
	return m
}

func (m *monitor) run() {
	defer m.line.Close()
	defer close(m.cmds)
	for {
		cmd, err := m.line.Prompt("rv32ima> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				m.cmds <- "quit"
				return
			}
			slog.Error("monitor: reading line", "err", err)
			return
		}
		m.line.AppendHistory(cmd)
		m.cmds <- strings.TrimSpace(cmd)
	}
}

// handle executes one monitor command against a paused hart. It
// returns true if the loop should resume stepping.
func handle(cmd string, h *hart.Hart, mem *memmap.Map) (resume bool, quit bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false, false
	}
	switch fields[0] {
	case "cont", "c":
		return true, false
	case "quit", "q":
		return false, true
	case "regs":
		for i := 0; i < 32; i += 4 {
			fmt.Printf("x%-2d=%08x x%-2d=%08x x%-2d=%08x x%-2d=%08x\n",
				i, h.X[i], i+1, h.X[i+1], i+2, h.X[i+2], i+3, h.X[i+3])
		}
		fmt.Printf("pc=%08x priv=%s\n", h.PC, h.Priv)
	case "csr":
		fmt.Printf("sstatus=%08x sepc=%08x scause=%08x stval=%08x satp=%08x\n",
			h.CSR.SStatus, h.CSR.SEPC, h.CSR.SCause, h.CSR.STval, h.CSR.SATP)
	case "dis":
		word, err := mem.ReadWord(h.PC)
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		d, err := decode.Decode(word)
		if err != nil {
			fmt.Printf("%08x: <invalid %08x>\n", h.PC, word)
			break
		}
		fmt.Printf("%08x: %s\n", h.PC, decode.Disassemble(d))
	default:
		fmt.Println("commands: cont, quit, regs, csr, dis")
	}
	return false, false
}
