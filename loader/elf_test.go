package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/pharos-os/pharos/models"
	"github.com/pharos-os/pharos/testutil"
)

const testMachine = 243 // EM_RISCV

func TestNewImage(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_EXEC, 0x401000)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R|testutil.PF_X, 0x401000, []byte{0x13, 0x00, 0x00, 0x00}, 0)
	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}
	if img.Entry() != 0x401000 {
		t.Fatalf("entry = %#x", img.Entry())
	}
	if img.PIE() {
		t.Fatal("static executable reported as PIE")
	}
	if len(img.LoadSegments()) != 1 {
		t.Fatal("wrong loadable segment count")
	}
}

func TestNewImageRejects(t *testing.T) {
	good := testutil.NewBuilder(testMachine, testutil.ET_EXEC, 0x401000).Bytes()

	short := make([]byte, 20)
	copy(short, good)
	if _, err := NewImage(short, testMachine); errors.Cause(err) != models.ErrInvalidElf {
		t.Fatal("Failed to reject short header.")
	}

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 0x7e
	if _, err := NewImage(badMagic, testMachine); errors.Cause(err) != models.ErrInvalidElf {
		t.Fatal("Failed to reject bad magic.")
	}

	badClass := append([]byte(nil), good...)
	badClass[4] = 1
	if _, err := NewImage(badClass, testMachine); errors.Cause(err) != models.ErrInvalidElf {
		t.Fatal("Failed to reject 32-bit class.")
	}

	badOrder := append([]byte(nil), good...)
	badOrder[5] = 2
	if _, err := NewImage(badOrder, testMachine); errors.Cause(err) != models.ErrInvalidElf {
		t.Fatal("Failed to reject big-endian data.")
	}

	if _, err := NewImage(good, 183); errors.Cause(err) != models.ErrInvalidElf {
		t.Fatal("Failed to reject wrong machine.")
	}

	relo := testutil.NewBuilder(testMachine, 1, 0).Bytes()
	if _, err := NewImage(relo, testMachine); errors.Cause(err) != models.ErrInvalidElf {
		t.Fatal("Failed to reject non-executable type.")
	}
}

// A phnum that runs past the end of the file yields the in-bounds subset,
// never a read past the buffer.
func TestTruncatedPhdrTable(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_EXEC, 0x401000)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R, 0x401000, []byte{1}, 0)
	raw := b.Bytes()
	raw[56] = 200 // e_phnum
	img, err := NewImage(raw, testMachine)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(img.ProgHeaders()); got >= 200 {
		t.Fatalf("parsed %d headers from a truncated table", got)
	}
}

// An e_phoff close to 2^64 must not wrap the per-entry bounds check into
// a slice panic; the table offset is rejected outright.
func TestPhoffPastFile(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_EXEC, 0x401000)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R|testutil.PF_X, 0x401000, []byte{0x73}, 0)
	raw := b.Bytes()

	for _, phoff := range []uint64{
		^uint64(0) - 55,
		^uint64(0),
		uint64(len(raw)) + 1,
	} {
		bad := append([]byte(nil), raw...)
		binary.LittleEndian.PutUint64(bad[32:], phoff) // e_phoff
		if _, err := NewImage(bad, testMachine); errors.Cause(err) != models.ErrInvalidElf {
			t.Fatalf("Failed to reject phoff %#x.", phoff)
		}
	}

	// Exactly at the end of the file: an empty table, not an error.
	edge := append([]byte(nil), raw...)
	binary.LittleEndian.PutUint64(edge[32:], uint64(len(raw)))
	img, err := NewImage(edge, testMachine)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.ProgHeaders()) != 0 {
		t.Fatal("parsed headers from past the file")
	}
}

func TestInterp(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_DYN, 0x1000)
	b.AddSegment(testutil.PT_INTERP, testutil.PF_R, 0x200, []byte("/lib/ld.so\x00"), 0)
	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}
	if img.Interp() != "/lib/ld.so" {
		t.Fatalf("interp = %q", img.Interp())
	}
	if !img.PIE() {
		t.Fatal("ET_DYN not reported as PIE")
	}
}

func TestNeededLibraries(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_DYN, 0x1000)
	strtab := []byte("\x00libc.so\x00libm.so\x00")
	strtabOff := b.Append(strtab)

	var dyn []byte
	dyn = append(dyn, testutil.Dyn(DT_STRTAB, strtabOff)...)
	dyn = append(dyn, testutil.Dyn(DT_STRSZ, uint64(len(strtab)))...)
	dyn = append(dyn, testutil.Dyn(DT_NEEDED, 1)...)
	dyn = append(dyn, testutil.Dyn(DT_NEEDED, 9)...)
	// One name offset past the declared string-table size.
	dyn = append(dyn, testutil.Dyn(DT_NEEDED, uint64(len(strtab))+50)...)
	dyn = append(dyn, testutil.Dyn(DT_NULL, 0)...)
	b.AddSegment(testutil.PT_DYNAMIC, testutil.PF_R, 0x2000, dyn, 0)

	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"libc.so", "libm.so"}
	if diff := cmp.Diff(want, img.NeededLibraries()); diff != "" {
		t.Fatalf("needed libraries mismatch (-want +got):\n%s", diff)
	}
}

func TestNeededLibrariesBadStrtab(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_DYN, 0x1000)
	var dyn []byte
	dyn = append(dyn, testutil.Dyn(DT_STRTAB, 1<<40)...) // past the file
	dyn = append(dyn, testutil.Dyn(DT_STRSZ, 64)...)
	dyn = append(dyn, testutil.Dyn(DT_NEEDED, 1)...)
	dyn = append(dyn, testutil.Dyn(DT_NULL, 0)...)
	b.AddSegment(testutil.PT_DYNAMIC, testutil.PF_R, 0x2000, dyn, 0)

	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}
	if libs := img.NeededLibraries(); libs != nil {
		t.Fatalf("got libraries %v from a bad string table", libs)
	}
}

type pageRecorder struct {
	pages map[uint64][]byte
	prots map[uint64]int
}

func newPageRecorder() *pageRecorder {
	return &pageRecorder{pages: make(map[uint64][]byte), prots: make(map[uint64]int)}
}

func (r *pageRecorder) mapPage(va uint64, prot int) ([]byte, error) {
	if _, ok := r.pages[va]; ok {
		return nil, errors.Errorf("double map at %#x", va)
	}
	buf := make([]byte, pageSize)
	r.pages[va] = buf
	r.prots[va] = prot
	return buf, nil
}

func TestLoad(t *testing.T) {
	code := bytes.Repeat([]byte{0x73}, 100)
	b := testutil.NewBuilder(testMachine, testutil.ET_EXEC, 0x401000)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R|testutil.PF_X, 0x401000, code, 0)
	// bss tail: 8 file bytes, two pages of memory.
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R|testutil.PF_W, 0x403000, []byte("datadata"), 2*pageSize)
	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}

	rec := newPageRecorder()
	info, err := Load(img, 0, rec.mapPage)
	if err != nil {
		t.Fatal(err)
	}
	if info.Entry != 0x401000 || info.Base != 0 {
		t.Fatalf("info = %+v", info)
	}
	if info.Brk != 0x405000 {
		t.Fatalf("brk = %#x", info.Brk)
	}
	if len(rec.pages) != 3 {
		t.Fatalf("mapped %d pages, wanted 3", len(rec.pages))
	}
	if !bytes.Equal(rec.pages[0x401000][:100], code) {
		t.Fatal("text bytes not copied")
	}
	if !bytes.Equal(rec.pages[0x403000][:8], []byte("datadata")) {
		t.Fatal("data bytes not copied")
	}
	for _, c := range rec.pages[0x403000][8:] {
		if c != 0 {
			t.Fatal("bss not zeroed")
		}
	}
	if rec.prots[0x401000] != models.ProtRead|models.ProtExec {
		t.Fatal("text prot wrong")
	}
	if rec.prots[0x403000] != models.ProtRead|models.ProtWrite {
		t.Fatal("data prot wrong")
	}
}

func TestLoadBias(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_DYN, 0x1000)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R|testutil.PF_X, 0x1000, []byte{1, 2, 3}, 0)
	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}
	rec := newPageRecorder()
	info, err := Load(img, 0x400000, rec.mapPage)
	if err != nil {
		t.Fatal(err)
	}
	if info.Entry != 0x401000 {
		t.Fatalf("biased entry = %#x", info.Entry)
	}
	if _, ok := rec.pages[0x401000]; !ok {
		t.Fatal("segment not mapped at biased address")
	}
}

// Headers with a zero vaddr or zero memsz describe nothing loadable and
// produce no mappings.
func TestLoadSkipsEmpty(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_EXEC, 0x401000)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R, 0, []byte{1, 2, 3}, 0)
	b.AddPhdrRaw(testutil.PT_LOAD, testutil.PF_R, 0, 0x500000, 0, 0)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R|testutil.PF_X, 0x401000, []byte{0x73}, 0)
	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}
	rec := newPageRecorder()
	if _, err := Load(img, 0, rec.mapPage); err != nil {
		t.Fatal(err)
	}
	if len(rec.pages) != 1 {
		t.Fatalf("mapped %d pages, wanted 1", len(rec.pages))
	}
	if _, ok := rec.pages[0x401000]; !ok {
		t.Fatal("real segment not mapped")
	}
}

func TestLoadMapFailure(t *testing.T) {
	b := testutil.NewBuilder(testMachine, testutil.ET_EXEC, 0x401000)
	b.AddSegment(testutil.PT_LOAD, testutil.PF_R, 0x401000, []byte{1}, 0)
	img, err := NewImage(b.Bytes(), testMachine)
	if err != nil {
		t.Fatal(err)
	}
	fail := func(va uint64, prot int) ([]byte, error) {
		return nil, errors.WithStack(models.ErrOutOfMemory)
	}
	if _, err := Load(img, 0, fail); errors.Cause(err) != models.ErrOutOfMemory {
		t.Fatal("Failed to propagate mapping error.")
	}
}
