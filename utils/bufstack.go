package utils

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// BufStack is a read cursor over a part of a file. Sub buffers remember where
// they were taken from, so the layout of a parsed file can be printed as a tree.
type BufStack struct {
	parent         *BufStack
	childs         []*BufStack
	buf            []byte
	relativeOffset int
	absoluteOffset int
	size           int
	pos            int
	kind           string
	name           string
}

// BufStackError is raised by reads past the end of the buffer
type BufStackError struct {
	Buf    *BufStack
	Offset int
	Amount int
}

func (e *BufStackError) Error() string {
	return fmt.Sprintf("read of %d bytes at 0x%x out of %s", e.Amount, e.Offset, e.Buf.StringChain())
}

func NewBufStack(kind string, b []byte) *BufStack {
	return &BufStack{
		buf:  b,
		size: len(b),
		kind: kind,
	}
}

func (bs *BufStack) addChild(childBs *BufStack) {
	index := sort.Search(len(bs.childs), func(i int) bool {
		return bs.childs[i].relativeOffset > childBs.relativeOffset
	})
	bs.childs = append(bs.childs, nil)
	copy(bs.childs[index+1:], bs.childs[index:])
	bs.childs[index] = childBs
}

func (bs *BufStack) check(off, amount int) {
	if off < 0 || amount < 0 || off+amount > len(bs.buf) {
		panic(&BufStackError{Buf: bs, Offset: off, Amount: amount})
	}
}

// SubBuf starts a child buffer at offset, relative to bs
func (bs *BufStack) SubBuf(kind string, offset int) *BufStack {
	bs.check(offset, 0)
	childBs := &BufStack{
		parent:         bs,
		relativeOffset: offset,
		absoluteOffset: bs.absoluteOffset + offset,
		kind:           kind,
		buf:            bs.buf[offset:],
	}
	bs.addChild(childBs)
	return childBs
}

func (bs *BufStack) SetName(name string) *BufStack {
	bs.name = name
	return bs
}

func (bs *BufStack) SetSize(size int) *BufStack {
	bs.check(0, size)
	bs.size = size
	return bs
}

func (bs *BufStack) Name() string        { return bs.name }
func (bs *BufStack) Size() int           { return bs.size }
func (bs *BufStack) Pos() int            { return bs.pos }
func (bs *BufStack) Seek(pos int)        { bs.check(pos, 0); bs.pos = pos }
func (bs *BufStack) Skip(amount int)     { bs.Read(amount) }
func (bs *BufStack) ReadLU32() uint32    { return binary.LittleEndian.Uint32(bs.Read(4)) }
func (bs *BufStack) ReadLU16() uint16    { return binary.LittleEndian.Uint16(bs.Read(2)) }
func (bs *BufStack) ReadLI32() int       { return int(int32(bs.ReadLU32())) }
func (bs *BufStack) ReadLI16() int       { return int(int16(bs.ReadLU16())) }
func (bs *BufStack) ReadLF() float32     { return math.Float32frombits(bs.ReadLU32()) }
func (bs *BufStack) LU16(off int) uint16 { bs.check(off, 2); return binary.LittleEndian.Uint16(bs.buf[off:]) }
func (bs *BufStack) Byte(off int) byte   { bs.check(off, 1); return bs.buf[off] }

func (bs *BufStack) String() string {
	return fmt.Sprintf("buf<%v>(%v)[o:0x%x,s:0x%x,ao:0x%x,ae:0x%x]",
		bs.kind, bs.name, bs.relativeOffset, bs.size, bs.absoluteOffset, bs.absoluteOffset+bs.size)
}

func (bs *BufStack) StringChain() string {
	s := bs.String()
	if bs.parent != nil {
		s += fmt.Sprintf("::%s", bs.parent.String())
	}
	return s
}

func (bs *BufStack) stringTree(pad int) string {
	sPad := ""
	for i := 0; i < pad; i++ {
		sPad += ".  "
	}
	s := sPad + bs.String() + "\n"
	pos := 0
	for i, child := range bs.childs {
		if pos >= 0 && child.relativeOffset > pos {
			s += fmt.Sprintf("%s.  gap [o:0x%x,s:0x%x,ao:0x%x,ae:0x%x]\n",
				sPad, pos, child.relativeOffset-pos, bs.absoluteOffset+pos, child.absoluteOffset)
		}
		s += child.stringTree(pad + 1)
		if child.size != 0 {
			pos = child.relativeOffset + child.size
		} else {
			pos = -1
		}
		if child.size > 0 && i != len(bs.childs)-1 {
			if child.relativeOffset+child.size > bs.childs[i+1].relativeOffset {
				s += fmt.Sprintf("%s. [OVERLAP]\n", sPad)
			}
		}
	}
	return s
}

// StringTree prints bs and every sub buffer taken from it, with gaps and overlaps
func (bs *BufStack) StringTree() string {
	return bs.stringTree(0)
}

func (bs *BufStack) Read(amount int) []byte {
	bs.check(bs.pos, amount)
	oldPos := bs.pos
	bs.pos += amount
	return bs.buf[oldPos:bs.pos]
}

func (bs *BufStack) ReadVec3() mgl32.Vec3 {
	return mgl32.Vec3{bs.ReadLF(), bs.ReadLF(), bs.ReadLF()}
}

// ReadQuat reads x, y, z, w
func (bs *BufStack) ReadQuat() mgl32.Quat {
	v := bs.ReadVec3()
	return mgl32.Quat{V: v, W: bs.ReadLF()}
}

// ReadStringBuffer reads a NUL padded name field of size bytes
func (bs *BufStack) ReadStringBuffer(size int) string {
	return BytesToString(bs.Read(size))
}

// ReadZString reads a NUL terminated string of at most limit bytes
func (bs *BufStack) ReadZString(limit int) string {
	l := 0
	for i := 0; ; i++ {
		if i == limit {
			l = i
			break
		}
		if bs.Byte(bs.pos+i) == 0 {
			l = i + 1
			break
		}
	}
	return BytesToString(bs.Read(l))
}

// Recover turns a BufStackError panic into err, other panics pass through
func Recover(err *error) {
	if r := recover(); r != nil {
		if bse, ok := r.(*BufStackError); ok {
			*err = bse
			return
		}
		panic(r)
	}
}
