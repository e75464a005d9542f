package util

import (
	"fmt"
	"io"
)

// HexDump writes b to w as a classic 8-column hex dump with a byte-offset
// gutter, used for the constant pool dump printed after the disassembly
// listing.
func HexDump(w io.Writer, b []byte) {
	const numCols = 8
	for i := 0; i < len(b); i += numCols {
		end := i + numCols
		if end > len(b) {
			end = len(b)
		}
		fmt.Fprintf(w, "%4x: ", i)
		for j := i; j < end; j++ {
			fmt.Fprintf(w, "%02x ", b[j])
		}
		fmt.Fprintln(w)
	}
}
