package main

import (
	"os"

	"golang.org/x/term"
)

// console adapts the controlling TTY into the hart's non-blocking
// getchar/putchar collaborator pair. Grounded on tinyrange-cc's
// cmd/agents raw-mode setup (term.MakeRaw/term.Restore guarded by an
// isTerminal check), generalized from its PTY-passthrough use into a
// single-byte non-blocking reader feeding a channel so Step's getchar
// callback never blocks, per the spec's non-blocking collaborator
// contract.
type console struct {
	isTerminal bool
	oldState   *term.State
	bytes      chan byte
}

func newConsole() *console {
	c := &console{
		isTerminal: term.IsTerminal(int(os.Stdin.Fd())),
		bytes:      make(chan byte, 256),
	}
	if c.isTerminal {
		st, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			c.oldState = st
		}
	}
	go c.pump()
	return c
}

func (c *console) pump() {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			c.bytes <- buf[0]
		}
		if err != nil {
			return
		}
	}
}

func (c *console) getchar() int8 {
	select {
	case b := <-c.bytes:
		return int8(b)
	default:
		return -1
	}
}

func (c *console) putchar(b byte) {
	os.Stdout.Write([]byte{b})
}

func (c *console) restore() {
	if c.isTerminal && c.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), c.oldState)
	}
}
