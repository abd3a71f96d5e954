package usage

import (
	"encoding/json"
	"fmt"
)

// Prop is a single prop value passed to a component instance
type Prop struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Instance is one occurrence of a component in application source
type Instance struct {
	FilePath string `json:"filePath"`
	Props    []Prop `json:"props"`
}

// CompactInstance is the on-disk form of Instance. CompactInstance and CompactProp
// hold the single key table of the encoding:
// a=filePath, b=name, c=props, d=type, e=value
type CompactInstance struct {
	FilePath string        `json:"a"`
	Props    []CompactProp `json:"c"`
}

type CompactProp struct {
	Name  string `json:"b"`
	Type  string `json:"d"`
	Value string `json:"e"`
}

// Decode converts a compact record into an Instance, keeping prop order
func Decode(c CompactInstance) Instance {
	res := Instance{FilePath: c.FilePath, Props: make([]Prop, len(c.Props))}
	for i, p := range c.Props {
		res.Props[i] = Prop{Name: p.Name, Type: p.Type, Value: p.Value}
	}
	return res
}

// Encode converts an Instance into its compact record
func Encode(inst Instance) CompactInstance {
	res := CompactInstance{FilePath: inst.FilePath, Props: make([]CompactProp, len(inst.Props))}
	for i, p := range inst.Props {
		res.Props[i] = CompactProp{Name: p.Name, Type: p.Type, Value: p.Value}
	}
	return res
}

// DecodeAll parses a JSON array of compact records
func DecodeAll(data []byte) ([]Instance, error) {
	var compact []CompactInstance
	if err := json.Unmarshal(data, &compact); err != nil {
		return nil, fmt.Errorf("failed to parse instances: %w", err)
	}
	res := make([]Instance, len(compact))
	for i, c := range compact {
		res[i] = Decode(c)
	}
	return res, nil
}

// EncodeAll renders instances as a JSON array of compact records
func EncodeAll(instances []Instance) ([]byte, error) {
	compact := make([]CompactInstance, len(instances))
	for i, inst := range instances {
		compact[i] = Encode(inst)
	}
	data, err := json.Marshal(compact)
	if err != nil {
		return nil, fmt.Errorf("failed to encode instances: %w", err)
	}
	return data, nil
}
