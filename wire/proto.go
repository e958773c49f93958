package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// field is one decoded protobuf field. Varint and fixed values share num.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64
	bytes []byte
}

func (f field) is(num protowire.Number, typ protowire.Type) bool {
	return f.num == num && f.typ == typ
}

// decodeFields walks a serialized message and calls fn for every field.
func decodeFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.value, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.value = uint64(v)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func sizeVarintField(num protowire.Number, v uint64) int {
	if v == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeVarint(v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func sizeStringField(num protowire.Number, s string) int {
	if s == "" {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(len(s))
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func sizeMessageField(num protowire.Number, size int) int {
	return protowire.SizeTag(num) + protowire.SizeBytes(size)
}

func appendMessageHeader(b []byte, num protowire.Number, size int) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendVarint(b, uint64(size))
}

func int32Varint(v int32) uint64 {
	return uint64(int64(v))
}

func boolVarint(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func marshal(size int, appendTo func([]byte) []byte) ([]byte, error) {
	return appendTo(make([]byte, 0, size)), nil
}

// Empty

func (m *Empty) Marshal() ([]byte, error) { return []byte{}, nil }

func (m *Empty) Unmarshal(b []byte) error {
	return decodeFields(b, func(field) error { return nil })
}

// Parameter

func (m *Parameter) size() int {
	return sizeVarintField(1, int32Varint(int32(m.DataType))) + sizeStringField(2, m.Name)
}

func (m *Parameter) appendTo(b []byte) []byte {
	b = appendVarintField(b, 1, int32Varint(int32(m.DataType)))
	return appendStringField(b, 2, m.Name)
}

func (m *Parameter) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *Parameter) Unmarshal(b []byte) error {
	*m = Parameter{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.VarintType):
			m.DataType = DataType(int32(f.value))
		case f.is(2, protowire.BytesType):
			m.Name = string(f.bytes)
		}
		return nil
	})
}

// FieldDescription

func (m *FieldDescription) size() int {
	n := sizeVarintField(1, int32Varint(int32(m.DataType))) + sizeStringField(2, m.Name)
	for _, tag := range m.Tags {
		n += protowire.SizeTag(3) + protowire.SizeBytes(len(tag))
	}
	return n
}

func (m *FieldDescription) appendTo(b []byte) []byte {
	b = appendVarintField(b, 1, int32Varint(int32(m.DataType)))
	b = appendStringField(b, 2, m.Name)
	for _, tag := range m.Tags {
		// repeated strings keep empty elements
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, tag)
	}
	return b
}

func (m *FieldDescription) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *FieldDescription) Unmarshal(b []byte) error {
	*m = FieldDescription{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.VarintType):
			m.DataType = DataType(int32(f.value))
		case f.is(2, protowire.BytesType):
			m.Name = string(f.bytes)
		case f.is(3, protowire.BytesType):
			m.Tags = append(m.Tags, string(f.bytes))
		}
		return nil
	})
}

// FunctionDefinition

func (m *FunctionDefinition) size() int {
	n := sizeStringField(1, m.Name) +
		sizeVarintField(2, int32Varint(int32(m.FunctionType))) +
		sizeVarintField(3, int32Varint(int32(m.ReturnType)))
	for i := range m.Params {
		n += sizeMessageField(4, m.Params[i].size())
	}
	return n + sizeVarintField(5, int32Varint(m.FunctionID))
}

func (m *FunctionDefinition) appendTo(b []byte) []byte {
	b = appendStringField(b, 1, m.Name)
	b = appendVarintField(b, 2, int32Varint(int32(m.FunctionType)))
	b = appendVarintField(b, 3, int32Varint(int32(m.ReturnType)))
	for i := range m.Params {
		b = appendMessageHeader(b, 4, m.Params[i].size())
		b = m.Params[i].appendTo(b)
	}
	return appendVarintField(b, 5, int32Varint(m.FunctionID))
}

func (m *FunctionDefinition) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *FunctionDefinition) Unmarshal(b []byte) error {
	*m = FunctionDefinition{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			m.Name = string(f.bytes)
		case f.is(2, protowire.VarintType):
			m.FunctionType = FunctionType(int32(f.value))
		case f.is(3, protowire.VarintType):
			m.ReturnType = DataType(int32(f.value))
		case f.is(4, protowire.BytesType):
			var p Parameter
			if err := p.Unmarshal(f.bytes); err != nil {
				return err
			}
			m.Params = append(m.Params, p)
		case f.is(5, protowire.VarintType):
			m.FunctionID = int32(f.value)
		}
		return nil
	})
}

// Capabilities

func (m *Capabilities) size() int {
	n := sizeVarintField(1, boolVarint(m.AllowScript))
	for i := range m.Functions {
		n += sizeMessageField(2, m.Functions[i].size())
	}
	return n + sizeStringField(3, m.PluginIdentifier) + sizeStringField(4, m.PluginVersion)
}

func (m *Capabilities) appendTo(b []byte) []byte {
	b = appendVarintField(b, 1, boolVarint(m.AllowScript))
	for i := range m.Functions {
		b = appendMessageHeader(b, 2, m.Functions[i].size())
		b = m.Functions[i].appendTo(b)
	}
	b = appendStringField(b, 3, m.PluginIdentifier)
	return appendStringField(b, 4, m.PluginVersion)
}

func (m *Capabilities) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *Capabilities) Unmarshal(b []byte) error {
	*m = Capabilities{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.VarintType):
			m.AllowScript = f.value != 0
		case f.is(2, protowire.BytesType):
			var fd FunctionDefinition
			if err := fd.Unmarshal(f.bytes); err != nil {
				return err
			}
			m.Functions = append(m.Functions, fd)
		case f.is(3, protowire.BytesType):
			m.PluginIdentifier = string(f.bytes)
		case f.is(4, protowire.BytesType):
			m.PluginVersion = string(f.bytes)
		}
		return nil
	})
}

// Dual

func (m *Dual) size() int {
	n := 0
	if math.Float64bits(m.NumData) != 0 {
		n += protowire.SizeTag(1) + protowire.SizeFixed64()
	}
	return n + sizeStringField(2, m.StrData)
}

func (m *Dual) appendTo(b []byte) []byte {
	// -0.0 and NaN have non-zero bits and are kept.
	if bits := math.Float64bits(m.NumData); bits != 0 {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, bits)
	}
	return appendStringField(b, 2, m.StrData)
}

func (m *Dual) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *Dual) Unmarshal(b []byte) error {
	*m = Dual{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.Fixed64Type):
			m.NumData = math.Float64frombits(f.value)
		case f.is(2, protowire.BytesType):
			m.StrData = string(f.bytes)
		}
		return nil
	})
}

// Row

func (m *Row) size() int {
	n := 0
	for i := range m.Duals {
		n += sizeMessageField(1, m.Duals[i].size())
	}
	return n
}

func (m *Row) appendTo(b []byte) []byte {
	for i := range m.Duals {
		b = appendMessageHeader(b, 1, m.Duals[i].size())
		b = m.Duals[i].appendTo(b)
	}
	return b
}

func (m *Row) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *Row) Unmarshal(b []byte) error {
	*m = Row{}
	return decodeFields(b, func(f field) error {
		if f.is(1, protowire.BytesType) {
			var d Dual
			if err := d.Unmarshal(f.bytes); err != nil {
				return err
			}
			m.Duals = append(m.Duals, d)
		}
		return nil
	})
}

// BundledRows

func (m *BundledRows) size() int {
	n := 0
	for i := range m.Rows {
		n += sizeMessageField(1, m.Rows[i].size())
	}
	return n
}

func (m *BundledRows) appendTo(b []byte) []byte {
	for i := range m.Rows {
		b = appendMessageHeader(b, 1, m.Rows[i].size())
		b = m.Rows[i].appendTo(b)
	}
	return b
}

func (m *BundledRows) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *BundledRows) Unmarshal(b []byte) error {
	*m = BundledRows{}
	return decodeFields(b, func(f field) error {
		if f.is(1, protowire.BytesType) {
			var r Row
			if err := r.Unmarshal(f.bytes); err != nil {
				return err
			}
			m.Rows = append(m.Rows, r)
		}
		return nil
	})
}

// ScriptRequestHeader

func (m *ScriptRequestHeader) size() int {
	n := sizeStringField(1, m.Script) +
		sizeVarintField(2, int32Varint(int32(m.FunctionType))) +
		sizeVarintField(3, int32Varint(int32(m.ReturnType)))
	for i := range m.Params {
		n += sizeMessageField(4, m.Params[i].size())
	}
	return n
}

func (m *ScriptRequestHeader) appendTo(b []byte) []byte {
	b = appendStringField(b, 1, m.Script)
	b = appendVarintField(b, 2, int32Varint(int32(m.FunctionType)))
	b = appendVarintField(b, 3, int32Varint(int32(m.ReturnType)))
	for i := range m.Params {
		b = appendMessageHeader(b, 4, m.Params[i].size())
		b = m.Params[i].appendTo(b)
	}
	return b
}

func (m *ScriptRequestHeader) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *ScriptRequestHeader) Unmarshal(b []byte) error {
	*m = ScriptRequestHeader{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			m.Script = string(f.bytes)
		case f.is(2, protowire.VarintType):
			m.FunctionType = FunctionType(int32(f.value))
		case f.is(3, protowire.VarintType):
			m.ReturnType = DataType(int32(f.value))
		case f.is(4, protowire.BytesType):
			var p Parameter
			if err := p.Unmarshal(f.bytes); err != nil {
				return err
			}
			m.Params = append(m.Params, p)
		}
		return nil
	})
}

// FunctionRequestHeader

func (m *FunctionRequestHeader) size() int {
	return sizeVarintField(1, int32Varint(m.FunctionID)) + sizeStringField(2, m.Version)
}

func (m *FunctionRequestHeader) appendTo(b []byte) []byte {
	b = appendVarintField(b, 1, int32Varint(m.FunctionID))
	return appendStringField(b, 2, m.Version)
}

func (m *FunctionRequestHeader) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *FunctionRequestHeader) Unmarshal(b []byte) error {
	*m = FunctionRequestHeader{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.VarintType):
			m.FunctionID = int32(f.value)
		case f.is(2, protowire.BytesType):
			m.Version = string(f.bytes)
		}
		return nil
	})
}

// CommonRequestHeader

func (m *CommonRequestHeader) size() int {
	return sizeStringField(1, m.AppID) + sizeStringField(2, m.UserID) +
		sizeVarintField(3, uint64(m.Cardinality))
}

func (m *CommonRequestHeader) appendTo(b []byte) []byte {
	b = appendStringField(b, 1, m.AppID)
	b = appendStringField(b, 2, m.UserID)
	return appendVarintField(b, 3, uint64(m.Cardinality))
}

func (m *CommonRequestHeader) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *CommonRequestHeader) Unmarshal(b []byte) error {
	*m = CommonRequestHeader{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			m.AppID = string(f.bytes)
		case f.is(2, protowire.BytesType):
			m.UserID = string(f.bytes)
		case f.is(3, protowire.VarintType):
			m.Cardinality = int64(f.value)
		}
		return nil
	})
}

// TableDescription

func (m *TableDescription) size() int {
	n := 0
	for i := range m.Fields {
		n += sizeMessageField(1, m.Fields[i].size())
	}
	return n + sizeStringField(2, m.Name) + sizeVarintField(3, uint64(m.NumberOfRows))
}

func (m *TableDescription) appendTo(b []byte) []byte {
	for i := range m.Fields {
		b = appendMessageHeader(b, 1, m.Fields[i].size())
		b = m.Fields[i].appendTo(b)
	}
	b = appendStringField(b, 2, m.Name)
	return appendVarintField(b, 3, uint64(m.NumberOfRows))
}

func (m *TableDescription) Marshal() ([]byte, error) { return marshal(m.size(), m.appendTo) }

func (m *TableDescription) Unmarshal(b []byte) error {
	*m = TableDescription{}
	return decodeFields(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			var fd FieldDescription
			if err := fd.Unmarshal(f.bytes); err != nil {
				return err
			}
			m.Fields = append(m.Fields, fd)
		case f.is(2, protowire.BytesType):
			m.Name = string(f.bytes)
		case f.is(3, protowire.VarintType):
			m.NumberOfRows = int64(f.value)
		}
		return nil
	})
}
