// Package jsoncodec provides the default JSON wire codec for wirebus.
//
// Importing the package registers the codec under the name "json".
package jsoncodec

import (
	"encoding/json"

	"github.com/bft-labs/wirebus/pkg/encoder"
)

// Name is the registry name of this codec.
const Name = "json"

func init() {
	encoder.Register(Name, Codec{})
}

// frame is the JSON wire representation. Packets are base64-encoded by
// encoding/json's []byte handling.
type frame struct {
	Channel string   `json:"channel"`
	Packets [][]byte `json:"packets"`
}

// Codec encodes frames as a JSON object with channel and packets fields.
type Codec struct{}

// Encode serializes the frame to JSON.
func (Codec) Encode(f encoder.Frame) ([]byte, error) {
	return json.Marshal(frame{Channel: f.Channel, Packets: f.Packets})
}

// Decode parses a JSON frame. Input that is not a frame-shaped JSON
// object, or that carries an empty channel name, yields ok=false.
func (Codec) Decode(data []byte) (encoder.Frame, bool) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return encoder.Frame{}, false
	}
	if f.Channel == "" {
		return encoder.Frame{}, false
	}
	return encoder.Frame{Channel: f.Channel, Packets: f.Packets}, true
}
