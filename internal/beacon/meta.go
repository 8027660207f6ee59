package beacon

import (
	"encoding/binary"
	"fmt"
)

// Meta is encoded into memberlist NodeMeta (must fit in 512 bytes).
type Meta struct {
	Kind        string // transport kind peers should dial
	Coordinates string // kind-specific address
	Uptime      uint64 // nanoseconds since the beacon started
	Version     string
}

// Encode serializes Meta to binary.
// Format: [kindLen:1][kind][coordLen:2][coordinates][uptime:8][versionLen:1][version]
func (m *Meta) Encode() []byte {
	kind := clip([]byte(m.Kind), 255)
	coords := clip([]byte(m.Coordinates), 0xffff)
	version := clip([]byte(m.Version), 255)

	buf := make([]byte, 0, 1+len(kind)+2+len(coords)+8+1+len(version))
	buf = append(buf, byte(len(kind)))
	buf = append(buf, kind...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(coords)))
	buf = append(buf, coords...)
	buf = binary.BigEndian.AppendUint64(buf, m.Uptime)
	buf = append(buf, byte(len(version)))
	buf = append(buf, version...)
	return buf
}

func clip(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// DecodeMeta deserializes Meta from binary.
func DecodeMeta(data []byte) (Meta, error) {
	var m Meta
	pos := 0

	if pos+1 > len(data) {
		return m, fmt.Errorf("truncated kind length")
	}
	n := int(data[pos])
	pos++
	if pos+n > len(data) {
		return m, fmt.Errorf("truncated kind")
	}
	m.Kind = string(data[pos : pos+n])
	pos += n

	if pos+2 > len(data) {
		return m, fmt.Errorf("truncated coordinates length")
	}
	n = int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	if pos+n > len(data) {
		return m, fmt.Errorf("truncated coordinates")
	}
	m.Coordinates = string(data[pos : pos+n])
	pos += n

	if pos+8 > len(data) {
		return m, fmt.Errorf("truncated uptime")
	}
	m.Uptime = binary.BigEndian.Uint64(data[pos:])
	pos += 8

	if pos+1 > len(data) {
		return m, fmt.Errorf("truncated version length")
	}
	n = int(data[pos])
	pos++
	if pos+n > len(data) {
		return m, fmt.Errorf("truncated version")
	}
	m.Version = string(data[pos : pos+n])
	return m, nil
}
