// Package ihex reads Intel HEX firmware images.
package ihex

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marcinbor85/gohex"
)

// Record types.
const (
	RECORD_DATA          = 0x00
	RECORD_EOF           = 0x01
	RECORD_SEGMENT       = 0x02 // Extended segment address.
	RECORD_START_SEGMENT = 0x03
	RECORD_LINEAR        = 0x04 // Extended linear address.
	RECORD_START_LINEAR  = 0x05
)

const (
	RECORD_MIN_LEN = 5    // Length, address, type and checksum bytes.
	ERASED_BYTE    = 0xff // Value of unprogrammed flash.
)

// Image is the result of reading a HEX file into program memory.
type Image struct {
	Low   uint32 // Lowest byte address written.
	High  uint32 // One past the highest byte address written.
	Start uint32 // Start address record, if any.
	Bytes int    // Data bytes written.
}

// Erase fills program memory with the erased value.
func Erase(flash []byte) {
	for n := range flash {
		flash[n] = ERASED_BYTE
	}
}

// Read loads a HEX file into 'flash'. Reading stops at the end of file
// record. A file without one still loads, and returns ErrNoEOF.
//
// Records are checked line by line, then handed to gohex in extended linear
// form for assembly into data segments.
func Read(input io.Reader, flash []byte) (image Image, err error) {
	var linear bytes.Buffer
	image.Start, err = normalize(input, uint64(len(flash)), &linear)
	if err != nil && !errors.Is(err, ErrNoEOF) {
		return
	}

	mem := gohex.NewMemory()
	perr := mem.ParseIntelHex(&linear)
	if perr != nil {
		err = fmt.Errorf("%w: %w", ErrFormat, perr)
		return
	}

	image.Low = ^uint32(0)
	for _, seg := range mem.GetDataSegments() {
		copy(flash[seg.Address:], seg.Data)
		image.Low = min(image.Low, seg.Address)
		image.High = max(image.High, seg.Address+uint32(len(seg.Data)))
		image.Bytes += len(seg.Data)
	}
	if image.Bytes == 0 {
		image.Low = 0
	}

	return
}

// normalize checks every record of 'input' against a program memory of
// 'size' bytes, and writes its data as extended linear address and data
// records to 'output', always ending with an end of file record.
func normalize(input io.Reader, size uint64, output io.Writer) (start uint32, err error) {
	scanner := bufio.NewScanner(input)
	enc := encoder{output: output, upper: -1}
	defer enc.record(0, RECORD_EOF, nil)

	var base uint64
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if len(text) == 0 {
			continue
		}

		var record []byte
		record, err = decode(text)
		if err != nil {
			err = &ErrLine{Line: line, Err: err}
			return
		}

		count := int(record[0])
		addr := uint64(record[1])<<8 | uint64(record[2])
		kind := record[3]
		data := record[4 : 4+count]

		switch kind {
		case RECORD_DATA:
			target := base + addr
			if target+uint64(count) > size {
				err = &ErrLine{Line: line, Err: ErrRange}
				return
			}
			enc.data(uint32(target), data)
		case RECORD_EOF:
			return
		case RECORD_SEGMENT:
			if count != 2 {
				err = &ErrLine{Line: line, Err: ErrFormat}
				return
			}
			base = (uint64(data[0])<<8 | uint64(data[1])) << 4
		case RECORD_LINEAR:
			if count != 2 {
				err = &ErrLine{Line: line, Err: ErrFormat}
				return
			}
			base = (uint64(data[0])<<8 | uint64(data[1])) << 16
		case RECORD_START_SEGMENT, RECORD_START_LINEAR:
			if count != 4 {
				err = &ErrLine{Line: line, Err: ErrFormat}
				return
			}
			start = uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		default:
			err = &ErrLine{Line: line, Err: ErrRecordType}
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	err = ErrNoEOF
	return
}

// encoder writes records, with an extended linear address record whenever
// the upper 16 address bits change.
type encoder struct {
	output io.Writer
	upper  int
}

func (enc *encoder) data(addr uint32, data []byte) {
	for len(data) > 0 {
		if upper := int(addr >> 16); upper != enc.upper {
			enc.upper = upper
			enc.record(0, RECORD_LINEAR, []byte{byte(upper >> 8), byte(upper)})
		}
		n := min(len(data), 0x10000-int(addr&0xffff))
		enc.record(uint16(addr), RECORD_DATA, data[:n])
		addr += uint32(n)
		data = data[n:]
	}
}

func (enc *encoder) record(addr uint16, kind byte, data []byte) {
	raw := []byte{byte(len(data)), byte(addr >> 8), byte(addr), kind}
	raw = append(raw, data...)

	var sum byte
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, -sum)

	fmt.Fprintf(enc.output, ":%s\n", strings.ToUpper(hex.EncodeToString(raw)))
}

// decode checks and decodes one ":"-prefixed record line.
func decode(text string) (record []byte, err error) {
	if text[0] != ':' {
		err = ErrFormat
		return
	}

	record, err = hex.DecodeString(text[1:])
	if err != nil {
		err = ErrFormat
		return
	}

	if len(record) < RECORD_MIN_LEN || len(record) != RECORD_MIN_LEN+int(record[0]) {
		err = ErrFormat
		return
	}

	var sum byte
	for _, b := range record {
		sum += b
	}
	if sum != 0 {
		err = ErrChecksum
		return
	}

	return
}
