package lzw

import (
	"errors"
	"strings"
	"testing"

	"github.com/elliotnunn/unsqueeze/internal/errs"
)

// encode is a plain LZW encoder with the same table discipline.
func encode(s string, maxCode, firstCode int) []int {
	dict := map[string]int{}
	next := firstCode
	var out []int
	w := ""
	for i := 0; i < len(s); i++ {
		wc := w + s[i:i+1]
		if _, ok := dict[wc]; ok || len(wc) == 1 {
			w = wc
			continue
		}
		out = append(out, code(dict, w))
		if next <= maxCode {
			dict[wc] = next
			next++
		}
		w = s[i : i+1]
	}
	if w != "" {
		out = append(out, code(dict, w))
	}
	return out
}

func code(dict map[string]int, w string) int {
	if len(w) == 1 {
		return int(w[0])
	}
	return dict[w]
}

func decode(d *Decoder, codes []int) string {
	var sb strings.Builder
	for _, c := range codes {
		d.Write(c, true, func(b uint8) { sb.WriteByte(b) })
	}
	return sb.String()
}

func TestRoundTrip(t *testing.T) {
	cases := map[string]string{
		"classic": "TOBEORNOTTOBEORTOBEORNOT",
		"kwkwk":   "aaaaaaaaaaaaaaaaaaaaaaa",
		"mixed":   strings.Repeat("abcab", 40) + "zzzzzzzzz",
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			codes := encode(s, 4095, 257)
			var got string
			err := errs.Catch(func() { got = decode(New(4095, 256, 4096, 257), codes) })
			if err != nil || got != s {
				t.Errorf("got %q, %v", got, err)
			}
		})
	}
}

func TestFullTableStopsGrowing(t *testing.T) {
	s := strings.Repeat("the quick brown fox ", 10)
	codes := encode(s, 260, 257)
	d := New(260, 256, 64, 257)
	var got string
	if err := errs.Catch(func() { got = decode(d, codes) }); err != nil || got != s {
		t.Fatalf("got %q, %v", got, err)
	}
	if !d.Full() || d.Free() != 261 {
		t.Errorf("free %d", d.Free())
	}
}

func TestErrors(t *testing.T) {
	cases := map[string]func(){
		"undefined": func() {
			d := New(4095, 256, 100, 257)
			d.Write('a', true, func(uint8) {})
			d.Write(300, true, func(uint8) {})
		},
		"reserved": func() {
			d := New(4095, 256, 100, 257)
			d.Write(256, true, func(uint8) {})
		},
		"stack": func() {
			d := New(4095, 256, 3, 257)
			decode(d, encode("aaaaaaaaaaaaaaa", 4095, 257))
		},
		"after-reset": func() {
			d := New(4095, 256, 100, 257)
			decode(d, []int{'a', 'b', 257})
			d.Reset(257)
			d.Write(257, true, func(uint8) {})
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			if err := errs.Catch(fn); !errors.Is(err, errs.ErrDecompression) {
				t.Errorf("got %v", err)
			}
		})
	}
}
