package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/pharos-os/pharos/kernel"
)

// runMonitor is a minimal inspection REPL over the installed image:
// enough to eyeball mappings, registers and stack memory after an exec.
func runMonitor(k *kernel.Kernel, proc *kernel.Process) error {
	rl, err := readline.New("pharos> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "maps":
			for _, r := range proc.Space.Regions() {
				fmt.Println(r)
			}
		case "regs":
			for _, r := range k.Arch.RegDump(proc.Frame) {
				fmt.Printf("%4s 0x%x\n", r.Name, r.Val)
			}
		case "read":
			if len(fields) < 3 {
				fmt.Println("usage: read <addr> <len>")
				continue
			}
			addr, err1 := strconv.ParseUint(fields[1], 0, 64)
			size, err2 := strconv.ParseUint(fields[2], 0, 64)
			if err1 != nil || err2 != nil || size > 4096 {
				fmt.Println("usage: read <addr> <len>")
				continue
			}
			buf := make([]byte, size)
			if err := proc.Space.Copyin(addr, buf); err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println(hex.Dump(buf))
		case "exit", "q":
			return nil
		default:
			fmt.Println("commands: maps regs read exit")
		}
	}
}
