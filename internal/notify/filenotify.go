package notify

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
)

// fileNotifyHeader is the fixed part of FILE_NOTIFY_INFORMATION:
// NextEntryOffset, Action and FileNameLength, all little-endian DWORDs.
const fileNotifyHeader = 12

// DecodeFileNotify walks the FILE_NOTIFY_INFORMATION chain in buf. A zero
// NextEntryOffset ends the chain. Decoding stops at the first record whose
// offset or name length points outside buf; the records decoded so far are
// returned with ok=false. Records with an unknown action are skipped.
func DecodeFileNotify(buf []byte) (records []Record, ok bool) {
	pos := 0
	for {
		if pos < 0 || pos+fileNotifyHeader > len(buf) {
			return records, false
		}
		next := binary.LittleEndian.Uint32(buf[pos:])
		action := model.Action(binary.LittleEndian.Uint32(buf[pos+4:]))
		nameLen := int(binary.LittleEndian.Uint32(buf[pos+8:]))

		start := pos + fileNotifyHeader
		if nameLen < 0 || nameLen%2 != 0 || start+nameLen > len(buf) {
			return records, false
		}

		if action.Valid() && nameLen > 0 {
			records = append(records, Record{
				Action: action,
				Name:   decodeUTF16(buf[start : start+nameLen]),
			})
		}

		if next == 0 {
			return records, true
		}
		if next%4 != 0 || int(next) < fileNotifyHeader || pos+int(next) >= len(buf) {
			return records, false
		}
		pos += int(next)
	}
}

func decodeUTF16(b []byte) string {
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(u))
}
