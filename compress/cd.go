package compress

import "fmt"

// cdCompress implements the calldata-RLE black-box compressor. ABI-encoded
// calldata alternates long runs of zero padding with a handful of
// non-zero words, so the wire format is a simple token stream tuned for
// exactly that shape:
//
//	0x00 <n>        n (1-255) zero bytes
//	<n> <n bytes>   n (1-255) literal bytes, n != 0
//
// Runs longer than 255 bytes are split across multiple tokens. The
// format is deliberately this simple (no backreferences, no bit-packed
// headers) because cdForwarder has to reconstruct it again inside raw
// EVM bytecode with nothing but CALLDATACOPY and pointer arithmetic —
// see forwarder.go.
func cdCompress(data []byte) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(data) {
		if data[i] == 0 {
			j := i
			for j < len(data) && data[j] == 0 && j-i < 255 {
				j++
			}
			out = append(out, 0x00, byte(j-i))
			i = j
			continue
		}
		j := i
		for j < len(data) && data[j] != 0 && j-i < 255 {
			j++
		}
		out = append(out, byte(j-i))
		out = append(out, data[i:j]...)
		i = j
	}
	return out, nil
}

// cdDecompress reverses cdCompress.
func cdDecompress(data []byte) ([]byte, error) {
	out := []byte{}
	i := 0
	for i < len(data) {
		ctrl := data[i]
		i++
		if ctrl == 0 {
			if i >= len(data) {
				return nil, fmt.Errorf("compress: cd: truncated zero-run")
			}
			runLen := int(data[i])
			i++
			out = append(out, make([]byte, runLen)...)
			continue
		}
		litLen := int(ctrl)
		if i+litLen > len(data) {
			return nil, fmt.Errorf("compress: cd: truncated literal run")
		}
		out = append(out, data[i:i+litLen]...)
		i += litLen
	}
	return out, nil
}
