package encoder

import (
	"fmt"
	"io"

	"github.com/Hypersonic/sdfjit/internal/mcode"
)

// Disassemble writes the diagnostic listing described in §6: for each
// instruction, its mnemonic and operands, then a byte-offset-annotated hex
// dump of the bytes the Encoder produced for it. This output is not a
// stable API — it exists for debugging a miscompile, not for tooling to
// parse.
func Disassemble(w io.Writer, m *mcode.MCode, e *Encoder) {
	for i, ins := range m.Instructions {
		span := e.Spans[i]
		fmt.Fprintf(w, "%4d  %-40s  ; offset 0x%x, %d bytes\n", i, ins.String(), span.Offset, span.Length)
		bytes := e.Code[span.Offset : span.Offset+span.Length]
		for j := 0; j < len(bytes); j += 8 {
			end := j + 8
			if end > len(bytes) {
				end = len(bytes)
			}
			fmt.Fprintf(w, "      %4x: ", span.Offset+j)
			for _, b := range bytes[j:end] {
				fmt.Fprintf(w, "%02x ", b)
			}
			fmt.Fprintln(w)
		}
	}
}

// TotalLength reports the sum of per-instruction span lengths, which must
// equal len(e.Code) (§8's "encoded byte length equals the sum of
// per-instruction lengths" testable property).
func TotalLength(e *Encoder) int {
	total := 0
	for _, s := range e.Spans {
		total += s.Length
	}
	return total
}
