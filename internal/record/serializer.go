package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Serializer converts record values to and from their on-disk bytes.
type Serializer interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Serializer names accepted by SerializerByName.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMsgPack = "msgpack"
)

var (
	JSON    Serializer = jsonSerializer{}
	YAML    Serializer = yamlSerializer{}
	MsgPack Serializer = msgpackSerializer{}
)

// SerializerByName returns the serializer registered under name.
func SerializerByName(name string) (Serializer, error) {
	switch name {
	case "", FormatJSON:
		return JSON, nil
	case FormatYAML:
		return YAML, nil
	case FormatMsgPack:
		return MsgPack, nil
	default:
		return nil, fmt.Errorf("record: unknown serializer %q", name)
	}
}

type jsonSerializer struct{}

func (jsonSerializer) Name() string                       { return FormatJSON }
func (jsonSerializer) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type yamlSerializer struct{}

func (yamlSerializer) Name() string                       { return FormatYAML }
func (yamlSerializer) Marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlSerializer) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// msgpackSerializer honours `json` struct tags so record types only need one
// set of field names across formats.
type msgpackSerializer struct{}

func (msgpackSerializer) Name() string { return FormatMsgPack }

func (msgpackSerializer) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackSerializer) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
