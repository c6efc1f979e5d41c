package jit

import "strings"

// Disassemble renders synthesised bytecode as one mnemonic per line,
// in the same "walk PUSHn immediates by width" style as
// core/vm/shortcut_generator.go's getPushSize. It exists for debugging
// and for tests that want to assert on the emitted opcode sequence
// without hand-decoding hex.
func Disassemble(code []byte) string {
	var sb strings.Builder
	for pc := 0; pc < len(code); {
		op := OpCode(code[pc])
		sb.WriteString(op.String())
		if n := pushImmediateLen(op); n > 0 {
			if pc+1+n > len(code) {
				n = len(code) - pc - 1
			}
			sb.WriteString(" 0x")
			for _, b := range code[pc+1 : pc+1+n] {
				sb.WriteString(hexByte(b))
			}
			pc += 1 + n
		} else {
			pc++
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
