package rpm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// RPM header tag numbers this scanner cares about. See
// https://rpm-software-management.github.io/rpm/manual/tags.html — these
// are RPM's own stable wire-format constants, not something this module
// invents.
const (
	tagName      = 1000
	tagVersion   = 1001
	tagRelease   = 1002
	tagEpoch     = 1003
	tagArch      = 1022
	tagSourceRPM = 1044
)

const (
	typeChar        = 1
	typeInt8        = 2
	typeInt16       = 3
	typeInt32       = 4
	typeInt64       = 5
	typeString      = 6
	typeBin         = 7
	typeStringArray = 8
	typeI18nString  = 9
)

const entryInfoSize = 16 // 4 uint32s: tag, type, offset, count

type entryInfo struct {
	Tag    int32
	Type   uint32
	Offset int32
	Count  uint32
}

func loadEntry(b []byte) entryInfo {
	return entryInfo{
		Tag:    int32(binary.BigEndian.Uint32(b[0:4])),
		Type:   binary.BigEndian.Uint32(b[4:8]),
		Offset: int32(binary.BigEndian.Uint32(b[8:12])),
		Count:  binary.BigEndian.Uint32(b[12:16]),
	}
}

// headerFields extracts the handful of scalar/string tags this scanner
// needs from a raw RPM header blob: Name/Version/Release/Epoch/Arch/
// SourceRPM, skipping full botched-entry validation since this reads
// trusted local data, never untrusted layers.
func headerFields(blob []byte) (map[int32]any, error) {
	if len(blob) < 8 {
		return nil, fmt.Errorf("rpm: header blob too short")
	}
	tagsCt := binary.BigEndian.Uint32(blob[0:4])
	dataSz := binary.BigEndian.Uint32(blob[4:8])
	tagsSz := int64(tagsCt) * entryInfoSize
	if int64(8)+tagsSz+int64(dataSz) > int64(len(blob)) {
		return nil, fmt.Errorf("rpm: header blob size mismatch")
	}

	tags := blob[8 : 8+tagsSz]
	data := blob[8+tagsSz : 8+tagsSz+int64(dataSz)]

	out := make(map[int32]any, tagsCt)
	for i := uint32(0); i < tagsCt; i++ {
		e := loadEntry(tags[i*entryInfoSize:])
		if e.Offset < 0 || int64(e.Offset) > int64(len(data)) {
			continue
		}
		val, err := readValue(data, e)
		if err != nil {
			continue
		}
		out[e.Tag] = val
	}
	return out, nil
}

func readValue(data []byte, e entryInfo) (any, error) {
	b := data[e.Offset:]
	switch e.Type {
	case typeString:
		i := bytes.IndexByte(b, 0)
		if i < 0 {
			return nil, fmt.Errorf("rpm: unterminated string")
		}
		return string(b[:i]), nil
	case typeI18nString, typeStringArray:
		parts := bytes.SplitN(b, []byte{0}, int(e.Count)+1)
		if len(parts) == 0 {
			return nil, fmt.Errorf("rpm: empty string array")
		}
		return string(parts[0]), nil
	case typeInt32:
		if len(b) < 4 {
			return nil, fmt.Errorf("rpm: short int32")
		}
		return int32(binary.BigEndian.Uint32(b[0:4])), nil
	case typeInt8, typeChar:
		if len(b) < 1 {
			return nil, fmt.Errorf("rpm: short int8")
		}
		return b[0], nil
	case typeInt16:
		if len(b) < 2 {
			return nil, fmt.Errorf("rpm: short int16")
		}
		return binary.BigEndian.Uint16(b[0:2]), nil
	case typeInt64:
		if len(b) < 8 {
			return nil, fmt.Errorf("rpm: short int64")
		}
		return binary.BigEndian.Uint64(b[0:8]), nil
	default:
		return nil, fmt.Errorf("rpm: unsupported tag type %d", e.Type)
	}
}

func stringField(fields map[int32]any, tag int32) string {
	if v, ok := fields[tag].(string); ok {
		return v
	}
	return ""
}
