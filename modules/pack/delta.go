package pack

import (
	"bytes"
	"fmt"
)

// Delta instructions: the high bit of the opcode byte selects COPY
// (1) vs INSERT (0), per the classic Git delta format §4.6 describes.
const (
	opCopy   = 0x80
	opInsert = 0x7f // mask: low 7 bits carry the insert length directly
)

// EncodeDeltaHeader renders the two size varints (base size, then result
// size) that precede delta instruction bytes.
func EncodeDeltaHeader(baseSize, resultSize int64) []byte {
	var buf bytes.Buffer
	buf.Write(encodeSizeVarint(baseSize))
	buf.Write(encodeSizeVarint(resultSize))
	return buf.Bytes()
}

// encodeSizeVarint is the 7-bit-per-byte, least-significant-first varint
// used for delta base/result sizes (distinct from the object header's
// 4-bit-first varint).
func encodeSizeVarint(n int64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n > 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func decodeSizeVarint(b []byte) (int64, int, error) {
	var n int64
	var shift uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		n |= int64(c&0x7f) << shift
		if c&0x80 == 0 {
			return n, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("pack: %w: truncated delta size varint", errTruncated)
}

// CopyOp is a COPY instruction: copy Size bytes from the base object
// starting at Offset.
type CopyOp struct {
	Offset int64
	Size   int64
}

// InsertOp is an INSERT instruction: append Data verbatim. Data may be
// any length; EncodeDelta splits it into instructions of at most 127
// bytes each, per the format's 7-bit length field.
type InsertOp struct {
	Data []byte
}

// Op is either a CopyOp or an InsertOp.
type Op interface{ isOp() }

func (CopyOp) isOp()   {}
func (InsertOp) isOp() {}

// EncodeDelta builds the full delta payload (header + instructions) that
// transforms base into target, using ops produced by Diff.
func EncodeDelta(baseSize, targetSize int64, ops []Op) []byte {
	var buf bytes.Buffer
	buf.Write(EncodeDeltaHeader(baseSize, targetSize))
	for _, op := range ops {
		switch o := op.(type) {
		case CopyOp:
			buf.Write(encodeCopyOp(o))
		case InsertOp:
			for len(o.Data) > 0 {
				n := len(o.Data)
				if n > 127 {
					n = 127
				}
				buf.WriteByte(byte(n))
				buf.Write(o.Data[:n])
				o.Data = o.Data[n:]
			}
		}
	}
	return buf.Bytes()
}

// encodeCopyOp renders a COPY instruction, omitting offset/size bytes
// that are zero as the format permits, and splitting any copy whose size
// exceeds the 3-byte (0xffffff) size field into multiple instructions.
func encodeCopyOp(o CopyOp) []byte {
	var buf bytes.Buffer
	size := o.Size
	offset := o.Offset
	for size > 0 {
		chunk := size
		if chunk > 0xffffff {
			chunk = 0xffffff
		}
		opcode := byte(opCopy)
		var args []byte
		ofs := offset
		for i := 0; i < 4; i++ {
			b := byte(ofs & 0xff)
			if b != 0 {
				opcode |= 1 << uint(i)
				args = append(args, b)
			}
			ofs >>= 8
		}
		sz := chunk
		for i := 0; i < 3; i++ {
			b := byte(sz & 0xff)
			if b != 0 {
				opcode |= 1 << uint(4+i)
				args = append(args, b)
			}
			sz >>= 8
		}
		buf.WriteByte(opcode)
		buf.Write(args)
		offset += chunk
		size -= chunk
	}
	return buf.Bytes()
}

// ApplyDelta reconstructs the target object from base and a delta
// payload produced by EncodeDelta (or a real Git pack's REF_DELTA/
// OFS_DELTA body).
func ApplyDelta(base, delta []byte) ([]byte, error) {
	baseSize, n, err := decodeSizeVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]
	if int64(len(base)) != baseSize {
		return nil, fmt.Errorf("pack: delta base size mismatch: header says %d, have %d", baseSize, len(base))
	}
	resultSize, n, err := decodeSizeVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]

	out := make([]byte, 0, resultSize)
	for len(delta) > 0 {
		opcode := delta[0]
		delta = delta[1:]
		if opcode&opCopy != 0 {
			var offset, size int64
			for i := 0; i < 4; i++ {
				if opcode&(1<<uint(i)) != 0 {
					if len(delta) == 0 {
						return nil, fmt.Errorf("pack: %w: truncated copy offset", errTruncated)
					}
					offset |= int64(delta[0]) << uint(8*i)
					delta = delta[1:]
				}
			}
			for i := 0; i < 3; i++ {
				if opcode&(1<<uint(4+i)) != 0 {
					if len(delta) == 0 {
						return nil, fmt.Errorf("pack: %w: truncated copy size", errTruncated)
					}
					size |= int64(delta[0]) << uint(8*i)
					delta = delta[1:]
				}
			}
			if size == 0 {
				size = 0x10000
			}
			if offset+size > int64(len(base)) {
				return nil, fmt.Errorf("pack: copy instruction out of bounds: offset=%d size=%d base=%d", offset, size, len(base))
			}
			out = append(out, base[offset:offset+size]...)
		} else if opcode != 0 {
			n := int(opcode & opInsert)
			if len(delta) < n {
				return nil, fmt.Errorf("pack: %w: truncated insert", errTruncated)
			}
			out = append(out, delta[:n]...)
			delta = delta[n:]
		} else {
			return nil, fmt.Errorf("pack: reserved delta opcode 0")
		}
	}
	if int64(len(out)) != resultSize {
		return nil, fmt.Errorf("pack: delta result size mismatch: header says %d, produced %d", resultSize, len(out))
	}
	return out, nil
}

// Diff produces a greedy COPY/INSERT op sequence turning base into
// target, using an index of base's aligned 16-byte blocks that is probed
// at every target offset (the same block-matching idea Git's own delta
// generator uses, simplified to a fixed block size and no rolling hash).
func Diff(base, target []byte) []Op {
	const blockSize = 16
	index := make(map[string][]int)
	for i := 0; i+blockSize <= len(base); i += blockSize {
		key := string(base[i : i+blockSize])
		index[key] = append(index[key], i)
	}

	var ops []Op
	var pending bytes.Buffer
	flushInsert := func() {
		if pending.Len() > 0 {
			ops = append(ops, InsertOp{Data: append([]byte(nil), pending.Bytes()...)})
			pending.Reset()
		}
	}

	i := 0
	for i < len(target) {
		matched := false
		if i+blockSize <= len(target) {
			key := string(target[i : i+blockSize])
			if candidates, ok := index[key]; ok {
				best := -1
				bestLen := 0
				for _, c := range candidates {
					l := matchLen(base[c:], target[i:])
					if l > bestLen {
						bestLen = l
						best = c
					}
				}
				if best >= 0 && bestLen >= blockSize {
					flushInsert()
					ops = append(ops, CopyOp{Offset: int64(best), Size: int64(bestLen)})
					i += bestLen
					matched = true
				}
			}
		}
		if !matched {
			pending.WriteByte(target[i])
			i++
		}
	}
	flushInsert()
	return ops
}

func matchLen(a, b []byte) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
