package arch

import (
	"testing"

	"github.com/pharos-os/pharos/models"
)

func TestGetArch(t *testing.T) {
	for _, name := range []string{"arm64", "riscv64", "x86_64"} {
		a, err := GetArch(name)
		if err != nil {
			t.Fatal(err)
		}
		if a.Name != name {
			t.Fatalf("wanted %s, got %s", name, a.Name)
		}
	}
	if _, err := GetArch("mips"); err == nil {
		t.Fatal("Failed to error on unknown arch.")
	}
}

// Every frame implementation must zero all registers SetEntry does not
// explicitly set, so nothing leaks from a prior image.
func TestSetEntryZeroes(t *testing.T) {
	for _, a := range All() {
		frame := a.NewTrapFrame()

		// Dirty every register first.
		frame.SetEntry(1, 2, 3, 4)
		frame.SetEntry(0x401000, 0x7fffff00, 2, 0x7fffff10)

		want := map[string]uint64{
			a.EntryRegs[0]: 0x401000,
			a.EntryRegs[1]: 0x7fffff00,
			a.EntryRegs[2]: 2,
			a.EntryRegs[3]: 0x7fffff10,
		}
		for _, reg := range frame.Regs() {
			expect, ok := want[reg.Name]
			if !ok && reg.Val != 0 {
				t.Fatalf("%s: register %s not zeroed: %#x", a.Name, reg.Name, reg.Val)
			}
			if ok && reg.Val != expect {
				t.Fatalf("%s: register %s = %#x, wanted %#x", a.Name, reg.Name, reg.Val, expect)
			}
		}
		if frame.PC() != 0x401000 {
			t.Fatalf("%s: PC() = %#x", a.Name, frame.PC())
		}
		if frame.SP() != 0x7fffff00 {
			t.Fatalf("%s: SP() = %#x", a.Name, frame.SP())
		}
	}
}

func TestPTECodecRoundTrip(t *testing.T) {
	pas := []uint64{0x1000, 0x7f000, 0x1234_5000}
	prots := []int{
		models.ProtRead,
		models.ProtRead | models.ProtWrite,
		models.ProtRead | models.ProtExec,
		models.ProtRead | models.ProtWrite | models.ProtExec,
	}
	for _, a := range All() {
		for _, pa := range pas {
			for _, prot := range prots {
				pte := a.PTE.Encode(pa, prot|models.ProtUser)
				if !a.PTE.Valid(pte) {
					t.Fatalf("%s: entry for %#x not valid", a.Name, pa)
				}
				if !a.PTE.User(pte) {
					t.Fatalf("%s: entry for %#x not user", a.Name, pa)
				}
				if got := a.PTE.Addr(pte); got != pa {
					t.Fatalf("%s: address round trip %#x -> %#x", a.Name, pa, got)
				}
			}
			kpte := a.PTE.Encode(pa, models.ProtRead)
			if a.PTE.User(kpte) {
				t.Fatalf("%s: kernel entry for %#x has user set", a.Name, pa)
			}
		}
	}
}

func TestPTEInvalidZero(t *testing.T) {
	for _, a := range All() {
		if a.PTE.Valid(0) {
			t.Fatalf("%s: zero entry is valid", a.Name)
		}
	}
}

func TestRegDumpSorted(t *testing.T) {
	for _, a := range All() {
		frame := a.NewTrapFrame()
		regs := a.RegDump(frame)
		if len(regs) != len(frame.Regs()) {
			t.Fatalf("%s: RegDump dropped registers", a.Name)
		}
	}
}
