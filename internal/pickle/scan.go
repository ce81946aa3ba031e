package pickle

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Op is one decoded opcode position in a stream.
type Op struct {
	Code byte
	// Pos is the offset of the opcode byte, End the offset just past its
	// inline argument.
	Pos, End int
	// Arg is the raw inline argument.
	Arg []byte
}

// Name returns the symbolic opcode name.
func (o Op) Name() string { return OpName(o.Code) }

// Scan walks the opcodes of data without executing them, stopping after STOP.
// It is used by stream level preprocessing and by Python 2 detection.
func Scan(data []byte) ([]Op, error) {
	var ops []Op
	pos := 0
	for pos < len(data) {
		op, err := scanOne(data, pos)
		if err != nil {
			return ops, err
		}
		ops = append(ops, op)
		pos = op.End
		if op.Code == opStop {
			break
		}
	}
	return ops, nil
}

func scanOne(data []byte, pos int) (Op, error) {
	code := data[pos]
	info, ok := opTable[code]
	if !ok {
		return Op{}, fmt.Errorf("unknown opcode %#02x at offset %d", code, pos)
	}
	start := pos + 1
	end := start
	switch info.arg {
	case argNone:
	case argLine:
		i := bytes.IndexByte(data[start:], '\n')
		if i < 0 {
			return Op{}, fmt.Errorf("unterminated %s argument at offset %d", info.name, pos)
		}
		end = start + i + 1
	case argTwoLines:
		i := bytes.IndexByte(data[start:], '\n')
		if i < 0 {
			return Op{}, fmt.Errorf("unterminated %s argument at offset %d", info.name, pos)
		}
		j := bytes.IndexByte(data[start+i+1:], '\n')
		if j < 0 {
			return Op{}, fmt.Errorf("unterminated %s argument at offset %d", info.name, pos)
		}
		end = start + i + 1 + j + 1
	case argFixed:
		end = start + info.n
	case argLen1:
		if start+1 > len(data) {
			return Op{}, fmt.Errorf("truncated %s at offset %d", info.name, pos)
		}
		end = start + 1 + int(data[start])
	case argLen4:
		if start+4 > len(data) {
			return Op{}, fmt.Errorf("truncated %s at offset %d", info.name, pos)
		}
		end = start + 4 + int(binary.LittleEndian.Uint32(data[start:]))
	case argLen8:
		if start+8 > len(data) {
			return Op{}, fmt.Errorf("truncated %s at offset %d", info.name, pos)
		}
		n := binary.LittleEndian.Uint64(data[start:])
		if n > uint64(len(data)) {
			return Op{}, fmt.Errorf("truncated %s at offset %d", info.name, pos)
		}
		end = start + 8 + int(n)
	}
	if end > len(data) {
		return Op{}, fmt.Errorf("truncated %s at offset %d", info.name, pos)
	}
	return Op{Code: code, Pos: pos, End: end, Arg: data[start:end]}, nil
}

// DetectPython2 reports whether the stream was written by a Python 2
// interpreter: a protocol below 2, or any Python 2 byte string opcode.
func DetectPython2(data []byte) bool {
	ops, _ := Scan(data)
	for _, op := range ops {
		switch op.Code {
		case opProto:
			if len(op.Arg) == 1 {
				if op.Arg[0] < 2 {
					return true
				}
				if op.Arg[0] > 2 {
					return false
				}
			}
		case opBinString, opShortBinString:
			return true
		}
	}
	return false
}

// Protocol returns the protocol announced by a leading PROTO opcode, or 0.
func Protocol(data []byte) int {
	if len(data) >= 2 && data[0] == opProto {
		return int(data[1])
	}
	return 0
}
