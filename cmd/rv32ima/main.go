// Command rv32ima boots a Linux kernel image under the RV32IMA Sv32
// hart. It loads the three boot images into guest RAM at their fixed
// addresses, wires the console callbacks to the host terminal, and
// runs the hart to completion or fatal error.
//
// Grounded on the teacher's main.go: getopt flag parsing, a slog
// logger built over a custom handler, SIGINT/SIGTERM shutdown, with
// the teacher's channel/telnet/config-file startup replaced by direct
// image loading since this spec's external interface is flags only.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rv32ima-sim/core/internal/hart"
	"github.com/rv32ima-sim/core/internal/memmap"
	"github.com/rv32ima-sim/core/internal/rvlog"
)

const (
	ramBase    = 0x80000000
	kernelAddr = 0x80400000
	initrdAddr = 0x84400000
	dtbAddr    = 0x87000000

	defaultRAMSize  = 128 << 20
	defaultTimebase = 10_000_000 // 10 MHz, the qemu virt default
)

// Config holds the boot parameters assembled from getopt flags: the
// three image paths, the guest RAM size, the timer frequency, and the
// diagnostic/host-interface switches. Grounded on the teacher's flag
// parsing in main.go, which likewise reads its flags into plain fields
// before ever touching a device.
type Config struct {
	KernelPath string
	InitrdPath string
	DTBPath    string
	LogPath    string
	RAMSize    uint32
	TimebaseHz uint64
	Trace      bool
	Monitor    bool
}

func main() {
	os.Exit(run())
}

// parseConfig parses the command line into a Config. ok is false if the
// process should exit immediately (help requested or a flag error was
// already reported).
func parseConfig() (cfg Config, ok bool) {
	optKernel := getopt.StringLong("kernel", 'k', "", "Kernel image path")
	optInitrd := getopt.StringLong("initrd", 'i', "", "Initramfs archive path")
	optDTB := getopt.StringLong("dtb", 'd', "", "Device tree blob path")
	optRAM := getopt.StringLong("ram", 'r', "", "Guest RAM size in bytes (default 128 MiB)")
	optTimebase := getopt.StringLong("timebase", 't', "", "Timer frequency in Hz (default 10000000)")
	optLog := getopt.StringLong("log", 'l', "", "Log file")
	optTrace := getopt.BoolLong("trace", 0, "Log per-step pc/mnemonic/register-delta trace")
	optMonitor := getopt.BoolLong("monitor", 0, "Attach an interactive console monitor")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		return Config{}, false
	}

	cfg = Config{
		KernelPath: *optKernel,
		InitrdPath: *optInitrd,
		DTBPath:    *optDTB,
		LogPath:    *optLog,
		RAMSize:    defaultRAMSize,
		TimebaseHz: defaultTimebase,
		Trace:      *optTrace,
		Monitor:    *optMonitor,
	}

	if *optRAM != "" {
		n, err := strconv.ParseUint(*optRAM, 0, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rv32ima: invalid -ram value:", err)
			return Config{}, false
		}
		cfg.RAMSize = uint32(n)
	}
	if *optTimebase != "" {
		n, err := strconv.ParseUint(*optTimebase, 0, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rv32ima: invalid -timebase value:", err)
			return Config{}, false
		}
		cfg.TimebaseHz = n
	}
	return cfg, true
}

func run() int {
	cfg, ok := parseConfig()
	if !ok {
		return 0
	}

	var logWriter io.Writer
	if cfg.LogPath != "" {
		f, err := os.Create(cfg.LogPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rv32ima: create log file:", err)
			return 1
		}
		defer f.Close()
		logWriter = f
	}
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	if cfg.Trace {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(rvlog.NewHandler(logWriter, &slog.HandlerOptions{Level: level}, cfg.Trace))
	slog.SetDefault(logger)

	if cfg.KernelPath == "" {
		logger.Error("no kernel image specified")
		return 1
	}

	mem := memmap.New()
	ram := memmap.NewRAM(cfg.RAMSize)
	mem.Register(ramBase, cfg.RAMSize, ram)

	if err := loadImage(ram, cfg.KernelPath, kernelAddr); err != nil {
		logger.Error("loading kernel", "err", err)
		return 1
	}
	if cfg.InitrdPath != "" {
		if err := loadImage(ram, cfg.InitrdPath, initrdAddr); err != nil {
			logger.Error("loading initrd", "err", err)
			return 1
		}
	}
	if cfg.DTBPath != "" {
		if err := loadImage(ram, cfg.DTBPath, dtbAddr); err != nil {
			logger.Error("loading dtb", "err", err)
			return 1
		}
	}

	con := newConsole()
	defer con.restore()

	var shuttingDown atomic.Bool
	cb := hart.Callbacks{
		PutChar: con.putchar,
		GetChar: con.getchar,
		Shutdown: func() {
			shuttingDown.Store(true)
		},
	}
	h := hart.New(mem, cb, cfg.TimebaseHz)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var mon *monitor
	if cfg.Monitor {
		mon = newMonitor()
		go mon.run()
	}

	logger.Info("rv32ima started", "ram", cfg.RAMSize, "timebase_hz", cfg.TimebaseHz)

	paused := false
	for {
		select {
		case <-sigCh:
			logger.Info("shutting down on signal")
			return 0
		default:
		}

		if mon != nil {
			select {
			case cmd, ok := <-mon.cmds:
				if !ok {
					return 0
				}
				resume, quit := handle(cmd, h, mem)
				if quit {
					return 0
				}
				if !resume {
					paused = true
					continue
				}
				paused = false
			default:
			}
			if paused {
				continue
			}
		}

		var pc uint32
		var mnemonic string
		var before [32]uint32
		if cfg.Trace {
			pc = h.PC
			mnemonic = h.Disassemble()
			before = h.X
		}

		if err := h.Step(); err != nil {
			logger.Error("fatal emulator error", "err", err)
			return 1
		}
		if cfg.Trace {
			logger.Debug("step", "pc", fmt.Sprintf("%#08x", pc), "instr", mnemonic, "deltas", registerDeltas(before, h.X))
		}
		if shuttingDown.Load() {
			logger.Info("guest requested shutdown")
			return 0
		}
	}
}

// registerDeltas renders the registers that changed between before and
// after as "xN:old->new" pairs, for the -trace step log.
func registerDeltas(before, after [32]uint32) string {
	var parts []string
	for i := 0; i < 32; i++ {
		if before[i] != after[i] {
			parts = append(parts, fmt.Sprintf("x%d:%#x->%#x", i, before[i], after[i]))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func loadImage(ram *memmap.RAM, path string, guestAddr uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	offset := guestAddr - ramBase
	if uint64(offset)+uint64(len(data)) > uint64(ram.Size()) {
		return errors.New("rv32ima: image does not fit in configured RAM")
	}
	ram.Load(offset, data)
	return nil
}
