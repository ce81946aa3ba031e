package deobf

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strconv"

	"github.com/jiang0681/unrpyc/internal/rpyc"
)

// MaxLayers bounds how many encodings Peel removes.
const MaxLayers = 10

// Decryptor undoes one encoding layer. It returns nil when the data cannot be
// in its encoding or decoding changes nothing.
type Decryptor struct {
	Name    string
	Decrypt func(data []byte, alphabet map[byte]bool) []byte
}

var decryptors = []Decryptor{
	{Name: "zlib", Decrypt: decryptZlib},
	{Name: "hex", Decrypt: decryptHex},
	{Name: "base64", Decrypt: decryptBase64},
	{Name: "string-escape", Decrypt: decryptStringEscape},
}

// RegisterDecryptor appends d to the layer decoders tried by Peel.
func RegisterDecryptor(d Decryptor) {
	decryptors = append(decryptors, d)
}

// Peel removes encoding layers until data scans as a pickle. It reports the
// layers removed, outermost first.
func Peel(data []byte) ([]byte, []string, bool) {
	var layers []string
	for i := 0; i < MaxLayers; i++ {
		if LooksLikePickle(data) {
			return data, layers, true
		}
		alphabet := make(map[byte]bool)
		for _, b := range data {
			alphabet[b] = true
		}
		progressed := false
		for _, d := range decryptors {
			out := d.Decrypt(data, alphabet)
			if out == nil || bytes.Equal(out, data) {
				continue
			}
			data = out
			layers = append(layers, d.Name)
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}
	if LooksLikePickle(data) {
		return data, layers, true
	}
	return nil, layers, false
}

func only(alphabet map[byte]bool, allowed string) bool {
	for b := range alphabet {
		if !bytes.ContainsRune([]byte(allowed), rune(b)) {
			return false
		}
	}
	return true
}

func decryptZlib(data []byte, _ map[byte]bool) []byte {
	out, err := rpyc.Inflate(data)
	if err != nil {
		return nil
	}
	return out
}

func decryptHex(data []byte, alphabet map[byte]bool) []byte {
	if !only(alphabet, "abcdefABCDEF0123456789") {
		return nil
	}
	out, err := hex.DecodeString(string(data))
	if err != nil {
		return nil
	}
	return out
}

func decryptBase64(data []byte, alphabet map[byte]bool) []byte {
	if !only(alphabet, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789+/=\n") {
		return nil
	}
	out, err := base64.StdEncoding.DecodeString(string(bytes.ReplaceAll(data, []byte("\n"), nil)))
	if err != nil {
		return nil
	}
	return out
}

// decryptStringEscape undoes Python's string-escape codec applied to
// printable ASCII.
func decryptStringEscape(data []byte, alphabet map[byte]bool) []byte {
	for b := range alphabet {
		if b < 0x20 || b >= 0x80 {
			return nil
		}
	}
	if !alphabet['\\'] {
		return nil
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != '\\' || i+1 == len(data) {
			out = append(out, c)
			continue
		}
		i++
		switch e := data[i]; e {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(data) && j < i+3 && data[j] >= '0' && data[j] <= '7' {
				j++
			}
			n, _ := strconv.ParseUint(string(data[i:j]), 8, 16)
			out = append(out, byte(n))
			i = j - 1
		case 'x':
			if i+3 > len(data) {
				return nil
			}
			n, err := strconv.ParseUint(string(data[i+1:i+3]), 16, 8)
			if err != nil {
				return nil
			}
			out = append(out, byte(n))
			i += 2
		case '\\', '\'', '"':
			out = append(out, e)
		default:
			out = append(out, '\\', e)
		}
	}
	return out
}
