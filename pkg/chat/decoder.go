package chat

import "unicode/utf8"

// utf8Decoder turns a byte stream into text without splitting a multi-byte
// rune across two chunks.
type utf8Decoder struct {
	pending []byte
}

// Decode returns the complete text in p plus any bytes held back from the
// previous call. A trailing partial rune is kept for the next call.
func (d *utf8Decoder) Decode(p []byte) string {
	buf := append(d.pending, p...)
	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	d.pending = append([]byte(nil), buf[cut:]...)
	return string(buf[:cut])
}

// Flush returns whatever is still held back, valid or not.
func (d *utf8Decoder) Flush() string {
	s := string(d.pending)
	d.pending = nil
	return s
}
