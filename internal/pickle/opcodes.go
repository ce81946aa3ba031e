package pickle

// Opcodes of pickle protocols 0 to 5.
const (
	opMark           byte = '('
	opStop           byte = '.'
	opPop            byte = '0'
	opPopMark        byte = '1'
	opDup            byte = '2'
	opFloat          byte = 'F'
	opInt            byte = 'I'
	opBinInt         byte = 'J'
	opBinInt1        byte = 'K'
	opLong           byte = 'L'
	opBinInt2        byte = 'M'
	opNone           byte = 'N'
	opPersID         byte = 'P'
	opBinPersID      byte = 'Q'
	opReduce         byte = 'R'
	opString         byte = 'S'
	opBinString      byte = 'T'
	opShortBinString byte = 'U'
	opUnicode        byte = 'V'
	opBinUnicode     byte = 'X'
	opAppend         byte = 'a'
	opBuild          byte = 'b'
	opGlobal         byte = 'c'
	opDict           byte = 'd'
	opEmptyDict      byte = '}'
	opAppends        byte = 'e'
	opGet            byte = 'g'
	opBinGet         byte = 'h'
	opInst           byte = 'i'
	opLongBinGet     byte = 'j'
	opList           byte = 'l'
	opEmptyList      byte = ']'
	opObj            byte = 'o'
	opPut            byte = 'p'
	opBinPut         byte = 'q'
	opLongBinPut     byte = 'r'
	opSetItem        byte = 's'
	opTuple          byte = 't'
	opEmptyTuple     byte = ')'
	opSetItems       byte = 'u'
	opBinFloat       byte = 'G'

	// protocol 2
	opProto    byte = 0x80
	opNewObj   byte = 0x81
	opExt1     byte = 0x82
	opExt2     byte = 0x83
	opExt4     byte = 0x84
	opTuple1   byte = 0x85
	opTuple2   byte = 0x86
	opTuple3   byte = 0x87
	opNewTrue  byte = 0x88
	opNewFalse byte = 0x89
	opLong1    byte = 0x8a
	opLong4    byte = 0x8b

	// protocol 3
	opBinBytes      byte = 'B'
	opShortBinBytes byte = 'C'

	// protocol 4
	opShortBinUnicode byte = 0x8c
	opBinUnicode8     byte = 0x8d
	opBinBytes8       byte = 0x8e
	opEmptySet        byte = 0x8f
	opAddItems        byte = 0x90
	opFrozenSet       byte = 0x91
	opNewObjEx        byte = 0x92
	opStackGlobal     byte = 0x93
	opMemoize         byte = 0x94
	opFrame           byte = 0x95

	// protocol 5
	opByteArray8     byte = 0x96
	opNextBuffer     byte = 0x97
	opReadOnlyBuffer byte = 0x98
)

// argKind describes the inline argument that follows an opcode, which is all
// a scanner needs to step over it.
type argKind int

const (
	argNone     argKind = iota
	argLine             // up to and including '\n'
	argTwoLines         // GLOBAL / INST: module\nname\n
	argFixed            // fixed number of bytes
	argLen1             // 1 byte length then payload
	argLen4             // 4 byte length then payload
	argLen8             // 8 byte length then payload
)

type opInfo struct {
	name string
	arg  argKind
	n    int
}

var opTable = map[byte]opInfo{
	opMark:            {"MARK", argNone, 0},
	opStop:            {"STOP", argNone, 0},
	opPop:             {"POP", argNone, 0},
	opPopMark:         {"POP_MARK", argNone, 0},
	opDup:             {"DUP", argNone, 0},
	opFloat:           {"FLOAT", argLine, 0},
	opInt:             {"INT", argLine, 0},
	opBinInt:          {"BININT", argFixed, 4},
	opBinInt1:         {"BININT1", argFixed, 1},
	opLong:            {"LONG", argLine, 0},
	opBinInt2:         {"BININT2", argFixed, 2},
	opNone:            {"NONE", argNone, 0},
	opPersID:          {"PERSID", argLine, 0},
	opBinPersID:       {"BINPERSID", argNone, 0},
	opReduce:          {"REDUCE", argNone, 0},
	opString:          {"STRING", argLine, 0},
	opBinString:       {"BINSTRING", argLen4, 0},
	opShortBinString:  {"SHORT_BINSTRING", argLen1, 0},
	opUnicode:         {"UNICODE", argLine, 0},
	opBinUnicode:      {"BINUNICODE", argLen4, 0},
	opAppend:          {"APPEND", argNone, 0},
	opBuild:           {"BUILD", argNone, 0},
	opGlobal:          {"GLOBAL", argTwoLines, 0},
	opDict:            {"DICT", argNone, 0},
	opEmptyDict:       {"EMPTY_DICT", argNone, 0},
	opAppends:         {"APPENDS", argNone, 0},
	opGet:             {"GET", argLine, 0},
	opBinGet:          {"BINGET", argFixed, 1},
	opInst:            {"INST", argTwoLines, 0},
	opLongBinGet:      {"LONG_BINGET", argFixed, 4},
	opList:            {"LIST", argNone, 0},
	opEmptyList:       {"EMPTY_LIST", argNone, 0},
	opObj:             {"OBJ", argNone, 0},
	opPut:             {"PUT", argLine, 0},
	opBinPut:          {"BINPUT", argFixed, 1},
	opLongBinPut:      {"LONG_BINPUT", argFixed, 4},
	opSetItem:         {"SETITEM", argNone, 0},
	opTuple:           {"TUPLE", argNone, 0},
	opEmptyTuple:      {"EMPTY_TUPLE", argNone, 0},
	opSetItems:        {"SETITEMS", argNone, 0},
	opBinFloat:        {"BINFLOAT", argFixed, 8},
	opProto:           {"PROTO", argFixed, 1},
	opNewObj:          {"NEWOBJ", argNone, 0},
	opExt1:            {"EXT1", argFixed, 1},
	opExt2:            {"EXT2", argFixed, 2},
	opExt4:            {"EXT4", argFixed, 4},
	opTuple1:          {"TUPLE1", argNone, 0},
	opTuple2:          {"TUPLE2", argNone, 0},
	opTuple3:          {"TUPLE3", argNone, 0},
	opNewTrue:         {"NEWTRUE", argNone, 0},
	opNewFalse:        {"NEWFALSE", argNone, 0},
	opLong1:           {"LONG1", argLen1, 0},
	opLong4:           {"LONG4", argLen4, 0},
	opBinBytes:        {"BINBYTES", argLen4, 0},
	opShortBinBytes:   {"SHORT_BINBYTES", argLen1, 0},
	opShortBinUnicode: {"SHORT_BINUNICODE", argLen1, 0},
	opBinUnicode8:     {"BINUNICODE8", argLen8, 0},
	opBinBytes8:       {"BINBYTES8", argLen8, 0},
	opEmptySet:        {"EMPTY_SET", argNone, 0},
	opAddItems:        {"ADDITEMS", argNone, 0},
	opFrozenSet:       {"FROZENSET", argNone, 0},
	opNewObjEx:        {"NEWOBJ_EX", argNone, 0},
	opStackGlobal:     {"STACK_GLOBAL", argNone, 0},
	opMemoize:         {"MEMOIZE", argNone, 0},
	opFrame:           {"FRAME", argFixed, 8},
	opByteArray8:      {"BYTEARRAY8", argLen8, 0},
	opNextBuffer:      {"NEXT_BUFFER", argNone, 0},
	opReadOnlyBuffer:  {"READONLY_BUFFER", argNone, 0},
}

// OpName returns the symbolic name of op, or "" for unknown opcodes.
func OpName(op byte) string {
	return opTable[op].name
}
