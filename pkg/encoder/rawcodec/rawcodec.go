// Package rawcodec provides a compact binary wire codec for wirebus.
//
// Importing the package registers the codec under the name "raw".
//
// Wire layout, all integers unsigned varints (protobuf-style, 7 bits of
// data per byte, MSB marks continuation):
//
//	len(channel) ‖ channel ‖ packetCount ‖ packetCount × (len(packet) ‖ packet)
package rawcodec

import (
	"encoding/binary"
	"errors"

	"github.com/bft-labs/wirebus/pkg/encoder"
)

// Name is the registry name of this codec.
const Name = "raw"

// MaxPacketLen caps a single decoded packet length. Anything larger is
// treated as malformed rather than allocated.
const MaxPacketLen = 64 << 20

var errFrameTooLarge = errors.New("rawcodec: packet exceeds maximum length")

func init() {
	encoder.Register(Name, Codec{})
}

// Codec encodes frames with uvarint length framing.
type Codec struct{}

// Encode serializes the frame to the binary layout above.
func (Codec) Encode(f encoder.Frame) ([]byte, error) {
	size := uvarintLen(uint64(len(f.Channel))) + len(f.Channel) +
		uvarintLen(uint64(len(f.Packets)))
	for _, p := range f.Packets {
		if len(p) > MaxPacketLen {
			return nil, errFrameTooLarge
		}
		size += uvarintLen(uint64(len(p))) + len(p)
	}

	buf := make([]byte, 0, size)
	buf = binary.AppendUvarint(buf, uint64(len(f.Channel)))
	buf = append(buf, f.Channel...)
	buf = binary.AppendUvarint(buf, uint64(len(f.Packets)))
	for _, p := range f.Packets {
		buf = binary.AppendUvarint(buf, uint64(len(p)))
		buf = append(buf, p...)
	}
	return buf, nil
}

// Decode parses the binary layout. Truncated input, oversized lengths,
// or trailing garbage yield ok=false.
func (Codec) Decode(data []byte) (encoder.Frame, bool) {
	nameLen, n := binary.Uvarint(data)
	if n <= 0 || nameLen == 0 || nameLen > uint64(len(data)-n) {
		return encoder.Frame{}, false
	}
	data = data[n:]
	channel := string(data[:nameLen])
	data = data[nameLen:]

	count, n := binary.Uvarint(data)
	if n <= 0 || count > uint64(len(data)) {
		return encoder.Frame{}, false
	}
	data = data[n:]

	packets := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		plen, n := binary.Uvarint(data)
		if n <= 0 || plen > MaxPacketLen || plen > uint64(len(data)-n) {
			return encoder.Frame{}, false
		}
		data = data[n:]
		packets = append(packets, append([]byte(nil), data[:plen]...))
		data = data[plen:]
	}
	if len(data) != 0 {
		return encoder.Frame{}, false
	}
	return encoder.Frame{Channel: channel, Packets: packets}, true
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
