package ihex

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// record formats a HEX record with a valid checksum.
func record(addr uint16, kind byte, data ...byte) string {
	raw := []byte{byte(len(data)), byte(addr >> 8), byte(addr), kind}
	raw = append(raw, data...)

	var sum byte
	for _, b := range raw {
		sum += b
	}

	return fmt.Sprintf(":%X%02X", raw, -sum)
}

func TestRead(t *testing.T) {
	assert := assert.New(t)

	input := strings.Join([]string{
		":10010000214601360121470136007EFE09D2190140",
		"",
		":00000001FF",
		"garbage after the end",
	}, "\n")

	flash := make([]byte, 0x200)
	Erase(flash)

	image, err := Read(strings.NewReader(input), flash)
	assert.NoError(err)
	assert.Equal(Image{Low: 0x100, High: 0x110, Bytes: 16}, image)
	assert.Equal([]byte{0x21, 0x46, 0x01, 0x36}, flash[0x100:0x104])
	assert.Equal(byte(ERASED_BYTE), flash[0xff])
	assert.Equal(byte(ERASED_BYTE), flash[0x110])
}

func TestRead_ExtendedAddress(t *testing.T) {
	assert := assert.New(t)

	input := strings.Join([]string{
		record(0, RECORD_LINEAR, 0x00, 0x01),
		record(0x0010, RECORD_DATA, 0xaa, 0xbb),
		record(0, RECORD_SEGMENT, 0x10, 0x00),
		record(0x0002, RECORD_DATA, 0xcc),
		record(0, RECORD_START_LINEAR, 0x00, 0x00, 0x01, 0x00),
		record(0, RECORD_EOF),
	}, "\r\n")

	flash := make([]byte, 0x20000)
	image, err := Read(strings.NewReader(input), flash)
	assert.NoError(err)
	assert.Equal(byte(0xaa), flash[0x10010])
	assert.Equal(byte(0xbb), flash[0x10011])
	assert.Equal(byte(0xcc), flash[0x10002])
	assert.Equal(Image{Low: 0x10002, High: 0x10012, Start: 0x100, Bytes: 3}, image)
}

func TestRead_Crossing64K(t *testing.T) {
	assert := assert.New(t)

	input := strings.Join([]string{
		record(0xfffe, RECORD_DATA, 1, 2, 3, 4),
		record(0, RECORD_EOF),
	}, "\n")

	flash := make([]byte, 0x20000)
	Erase(flash)
	image, err := Read(strings.NewReader(input), flash)
	assert.NoError(err)
	assert.Equal(Image{Low: 0xfffe, High: 0x10002, Bytes: 4}, image)
	assert.Equal([]byte{ERASED_BYTE, 1, 2, 3, 4, ERASED_BYTE}, flash[0xfffd:0x10003])
}

func TestRead_Errors(t *testing.T) {
	table := []struct {
		name  string
		input string
		line  int
		err   error
	}{
		{"checksum", ":0100000000FE\n:00000001FF", 1, ErrChecksum},
		{"no_colon", "0100000000FF", 1, ErrFormat},
		{"odd_hex", ":0100000000F", 1, ErrFormat},
		{"short", ":00000001", 1, ErrFormat},
		{"length", record(0, RECORD_DATA, 1, 2)[:9] + "FF", 1, ErrFormat},
		{"type", record(0, 0x07), 1, ErrRecordType},
		{"range", record(0x00fe, RECORD_DATA, 1, 2, 3), 1, ErrRange},
		{"wrap", record(0, RECORD_LINEAR, 0xff, 0xff) + "\n" +
			record(0xfff8, RECORD_DATA, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15), 2, ErrRange},
		{"linear", record(0, RECORD_LINEAR, 1), 1, ErrFormat},
		{"start", record(0, RECORD_START_SEGMENT, 1), 1, ErrFormat},
		{"second_line", record(0, RECORD_DATA, 1) + "\n:zz", 2, ErrFormat},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			_, err := Read(strings.NewReader(entry.input), make([]byte, 0x100))
			assert.ErrorIs(err, entry.err)

			var el *ErrLine
			if assert.True(errors.As(err, &el)) {
				assert.Equal(entry.line, el.Line)
			}
		})
	}
}

func TestRead_NoEOF(t *testing.T) {
	assert := assert.New(t)

	image, err := Read(strings.NewReader(record(0, RECORD_DATA, 0x0c, 0x94)), make([]byte, 0x100))
	assert.ErrorIs(err, ErrNoEOF)
	assert.Equal(2, image.Bytes)

	image, err = Read(strings.NewReader(""), make([]byte, 0x100))
	assert.ErrorIs(err, ErrNoEOF)
	assert.Equal(Image{}, image)
}
