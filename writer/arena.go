// Package writer lays a compiled session out as the binary model file and
// its satellite sequence group files.
package writer

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/utils"
)

const ALIGNMENT = 4

// Label names a position of the arena that may not be written yet
type Label int

type fixup struct {
	at    int
	label Label
	// offsets are stored relative to base, 0 for the blob start
	base  int
	width int
}

// Arena is a forward only little endian buffer. Cross references are written
// as labels and patched with byte offsets once everything is laid out.
type Arena struct {
	buf    []byte
	labels []int
	fixups []fixup
	log    *utils.Logger
	err    error
}

func NewArena(log *utils.Logger) *Arena {
	return &Arena{log: log}
}

func (a *Arena) Len() int { return len(a.buf) }

func (a *Arena) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Align pads the buffer with zeroes up to the next section boundary
func (a *Arena) Align() {
	for len(a.buf)%ALIGNMENT != 0 {
		a.buf = append(a.buf, 0)
	}
}

// Reserve appends n zero bytes and returns where they start
func (a *Arena) Reserve(n int) int {
	at := len(a.buf)
	a.buf = append(a.buf, make([]byte, n)...)
	return at
}

func (a *Arena) NewLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Mark binds l to the current end of the buffer
func (a *Arena) Mark(l Label) {
	a.labels[l] = len(a.buf)
}

// Here returns a label already bound to the current end of the buffer
func (a *Arena) Here() Label {
	l := a.NewLabel()
	a.Mark(l)
	return l
}

// Bind places l wherever to is placed
func (a *Arena) Bind(l, to Label) {
	a.labels[l] = a.labels[to]
}

func (a *Arena) Bound(l Label) bool {
	return a.labels[l] != -1
}

// Ref writes a 32 bit offset of l from the blob start
func (a *Arena) Ref(l Label) {
	a.fixups = append(a.fixups, fixup{at: a.Reserve(4), label: l, width: 4})
}

// RefFrom writes a 16 bit offset of l relative to base
func (a *Arena) RefFrom(l Label, base int) {
	a.fixups = append(a.fixups, fixup{at: a.Reserve(2), label: l, base: base, width: 2})
}

// OptRef writes the offset of l, or 0 when l is not set
func (a *Arena) OptRef(l Label, set bool) {
	if set {
		a.Ref(l)
	} else {
		a.I32(0)
	}
}

func (a *Arena) I32(v int) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		a.fail(errors.Errorf("Value %d does not fit 32 bits", v))
	}
	a.U32(uint32(int32(v)))
}

func (a *Arena) U32(v uint32) {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, v)
}

func (a *Arena) I16(v int16) {
	a.buf = binary.LittleEndian.AppendUint16(a.buf, uint16(v))
}

func (a *Arena) U16(v uint16) {
	a.buf = binary.LittleEndian.AppendUint16(a.buf, v)
}

func (a *Arena) U8(v byte) {
	a.buf = append(a.buf, v)
}

func (a *Arena) F32(v float32) {
	a.U32(math.Float32bits(v))
}

func (a *Arena) Vec3(v mgl32.Vec3) {
	a.F32(v[0])
	a.F32(v[1])
	a.F32(v[2])
}

// Quat writes x, y, z, w
func (a *Arena) Quat(q mgl32.Quat) {
	a.Vec3(q.V)
	a.F32(q.W)
}

func (a *Arena) Bytes(b []byte) {
	a.buf = append(a.buf, b...)
}

// Name writes s into a NUL terminated field of size bytes
func (a *Arena) Name(s string, size int) {
	if enc, err := utils.StringToBytes(s, false); err != nil {
		a.fail(err)
	} else if len(enc) >= size {
		a.log.Warnf("%s is too long (limit is %d symbols), truncated", s, size-1)
	}
	b, err := utils.NameToBytes(s, size)
	if err != nil {
		a.fail(err)
		b = make([]byte, size)
	}
	a.buf = append(a.buf, b...)
}

// ZString writes s followed by a NUL and returns the written length
func (a *Arena) ZString(s string) int {
	b, err := utils.StringToBytes(s, true)
	if err != nil {
		a.fail(err)
		return 0
	}
	a.buf = append(a.buf, b...)
	return len(b)
}

// PatchI32 overwrites a 32 bit value written earlier
func (a *Arena) PatchI32(at, v int) {
	binary.LittleEndian.PutUint32(a.buf[at:], uint32(int32(v)))
}

// Finish resolves every reference and returns the blob
func (a *Arena) Finish() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	for _, f := range a.fixups {
		at := a.labels[f.label]
		if at == -1 {
			return nil, errors.Errorf("Reference at 0x%x to a label that was never placed", f.at)
		}
		off := at - f.base
		switch f.width {
		case 2:
			if off < 0 || off > math.MaxUint16 {
				return nil, errors.Errorf("Offset 0x%x at 0x%x does not fit 16 bits", off, f.at)
			}
			binary.LittleEndian.PutUint16(a.buf[f.at:], uint16(off))
		default:
			binary.LittleEndian.PutUint32(a.buf[f.at:], uint32(int32(off)))
		}
	}
	return a.buf, nil
}
