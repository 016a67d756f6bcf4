package spirv

import (
	"fmt"
	"sort"
)

// Instruction opcodes, decorations, and storage classes from the SPIR-V
// specification. Only the subset needed for resource reflection is listed.
const (
	opName             = 5
	opMemberName       = 6
	opEntryPoint       = 15
	opTypeBool         = 20
	opTypeInt          = 21
	opTypeFloat        = 22
	opTypeVector       = 23
	opTypeMatrix       = 24
	opTypeImage        = 25
	opTypeSampler      = 26
	opTypeSampledImage = 27
	opTypeArray        = 28
	opTypeRuntimeArray = 29
	opTypeStruct       = 30
	opTypePointer      = 32
	opConstant         = 43
	opVariable         = 59
	opDecorate         = 71
	opMemberDecorate   = 72
)

const (
	decorationBlock         = 2
	decorationBufferBlock   = 3
	decorationArrayStride   = 6
	decorationMatrixStride  = 7
	decorationBuiltIn       = 11
	decorationNonWritable   = 24
	decorationNonReadable   = 25
	decorationLocation      = 30
	decorationBinding       = 33
	decorationDescriptorSet = 34
	decorationOffset        = 35
)

const (
	classUniformConstant = 0
	classInput           = 1
	classUniform         = 2
	classPushConstant    = 9
	classStorageBuffer   = 12
)

type typeKind int

const (
	tkUnknown typeKind = iota
	tkBool
	tkInt
	tkFloat
	tkVector
	tkMatrix
	tkImage
	tkSampler
	tkSampledImage
	tkArray
	tkRuntimeArray
	tkStruct
	tkPointer
)

// typeNode is one entry in the module's type graph.
type typeNode struct {
	kind    typeKind
	width   uint32 // scalar bit width
	signed  bool
	count   uint32 // vector components, matrix columns, or resolved array length
	elem    uint32 // element, column, or pointee type id
	members []uint32
	stride  uint32 // ArrayStride decoration
	class   uint32 // pointer storage class
	sampled uint32 // OpTypeImage "sampled" operand: 1 = sampled, 2 = storage
}

type variableDef struct {
	id      uint32
	typeID  uint32 // pointer type
	class   uint32 // storage class from the OpVariable itself
	declIdx int    // declaration order, for stable output
}

// module collects everything a single parse pass extracts from the word stream.
type module struct {
	names         map[uint32]string
	memberNames   map[uint32]map[uint32]string
	types         map[uint32]typeNode
	constants     map[uint32]uint32
	variables     []variableDef
	sets          map[uint32]uint32
	bindings      map[uint32]uint32
	locations     map[uint32]uint32
	builtins      map[uint32]bool
	blockDecor    map[uint32]bool
	bufferBlock   map[uint32]bool
	nonWritable   map[uint32]bool
	nonReadable   map[uint32]bool
	memberOffsets map[uint32]map[uint32]uint32
	memberMatStrd map[uint32]map[uint32]uint32
	memberBuiltin map[uint32]bool

	sizeMemo map[uint32]uint32
}

// Reflect parses the resource-binding metadata embedded in a compiled stage
// binary and returns a normalized description of its bindings, blocks,
// push-constant ranges, and (for the vertex stage) input attributes. The blob
// is never mutated. A malformed binary yields an error; callers treat that as
// recoverable and proceed with an empty result.
//
// Parameters:
//   - blob: the compiled stage to reflect
//
// Returns:
//   - *Reflection: the normalized resource description
//   - error: non-nil if the binary is not valid SPIR-V
func Reflect(blob *CompiledStage) (*Reflection, error) {
	words := blob.Words()
	if len(words) < 5 {
		return nil, fmt.Errorf("spirv: binary too short (%d words)", len(words))
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("spirv: bad magic number 0x%08x", words[0])
	}

	m, err := parseModule(words)
	if err != nil {
		return nil, err
	}

	refl := &Reflection{Stage: blob.Stage()}
	for _, v := range m.variables {
		switch v.class {
		case classInput:
			if blob.Stage() == StageVertex {
				m.reflectAttribute(v, refl)
			}
		case classPushConstant:
			m.reflectPushBlock(v, blob.Stage(), refl)
		case classUniform, classStorageBuffer, classUniformConstant:
			m.reflectBinding(v, blob.Stage(), refl)
		}
	}

	sort.SliceStable(refl.Bindings, func(i, j int) bool {
		a, b := refl.Bindings[i], refl.Bindings[j]
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		if a.Binding != b.Binding {
			return a.Binding < b.Binding
		}
		return a.Name < b.Name
	})
	sort.SliceStable(refl.Attributes, func(i, j int) bool {
		return refl.Attributes[i].Attribute.Location < refl.Attributes[j].Attribute.Location
	})
	return refl, nil
}

// parseModule walks the instruction stream once, collecting debug names,
// decorations, the type graph, integer constants, and variable declarations.
func parseModule(words []uint32) (*module, error) {
	m := &module{
		names:         make(map[uint32]string),
		memberNames:   make(map[uint32]map[uint32]string),
		types:         make(map[uint32]typeNode),
		constants:     make(map[uint32]uint32),
		sets:          make(map[uint32]uint32),
		bindings:      make(map[uint32]uint32),
		locations:     make(map[uint32]uint32),
		builtins:      make(map[uint32]bool),
		blockDecor:    make(map[uint32]bool),
		bufferBlock:   make(map[uint32]bool),
		nonWritable:   make(map[uint32]bool),
		nonReadable:   make(map[uint32]bool),
		memberOffsets: make(map[uint32]map[uint32]uint32),
		memberMatStrd: make(map[uint32]map[uint32]uint32),
		memberBuiltin: make(map[uint32]bool),
		sizeMemo:      make(map[uint32]uint32),
	}

	pos := 5 // skip header: magic, version, generator, bound, schema
	declIdx := 0
	for pos < len(words) {
		first := words[pos]
		wordCount := int(first >> 16)
		opcode := first & 0xFFFF
		if wordCount == 0 || pos+wordCount > len(words) {
			return nil, fmt.Errorf("spirv: malformed instruction at word %d", pos)
		}
		ops := words[pos+1 : pos+wordCount]

		switch opcode {
		case opName:
			if len(ops) >= 2 {
				name, _ := decodeString(ops, 1)
				m.names[ops[0]] = name
			}
		case opMemberName:
			if len(ops) >= 3 {
				name, _ := decodeString(ops, 2)
				if m.memberNames[ops[0]] == nil {
					m.memberNames[ops[0]] = make(map[uint32]string)
				}
				m.memberNames[ops[0]][ops[1]] = name
			}
		case opDecorate:
			if len(ops) >= 2 {
				m.applyDecoration(ops[0], ops[1], ops[2:])
			}
		case opMemberDecorate:
			if len(ops) >= 3 {
				m.applyMemberDecoration(ops[0], ops[1], ops[2], ops[3:])
			}
		case opTypeBool:
			m.types[ops[0]] = typeNode{kind: tkBool, width: 32}
		case opTypeInt:
			if len(ops) >= 3 {
				m.types[ops[0]] = typeNode{kind: tkInt, width: ops[1], signed: ops[2] == 1}
			}
		case opTypeFloat:
			if len(ops) >= 2 {
				m.types[ops[0]] = typeNode{kind: tkFloat, width: ops[1]}
			}
		case opTypeVector:
			if len(ops) >= 3 {
				m.types[ops[0]] = typeNode{kind: tkVector, elem: ops[1], count: ops[2]}
			}
		case opTypeMatrix:
			if len(ops) >= 3 {
				m.types[ops[0]] = typeNode{kind: tkMatrix, elem: ops[1], count: ops[2]}
			}
		case opTypeImage:
			if len(ops) >= 7 {
				m.types[ops[0]] = typeNode{kind: tkImage, elem: ops[1], sampled: ops[6]}
			}
		case opTypeSampler:
			m.types[ops[0]] = typeNode{kind: tkSampler}
		case opTypeSampledImage:
			if len(ops) >= 2 {
				m.types[ops[0]] = typeNode{kind: tkSampledImage, elem: ops[1]}
			}
		case opTypeArray:
			if len(ops) >= 3 {
				n := typeNode{kind: tkArray, elem: ops[1], count: m.constants[ops[2]]}
				if existing, ok := m.types[ops[0]]; ok && existing.stride != 0 {
					n.stride = existing.stride
				}
				m.types[ops[0]] = n
			}
		case opTypeRuntimeArray:
			if len(ops) >= 2 {
				n := typeNode{kind: tkRuntimeArray, elem: ops[1]}
				if existing, ok := m.types[ops[0]]; ok && existing.stride != 0 {
					n.stride = existing.stride
				}
				m.types[ops[0]] = n
			}
		case opTypeStruct:
			members := make([]uint32, len(ops)-1)
			copy(members, ops[1:])
			m.types[ops[0]] = typeNode{kind: tkStruct, members: members}
		case opTypePointer:
			if len(ops) >= 3 {
				m.types[ops[0]] = typeNode{kind: tkPointer, class: ops[1], elem: ops[2]}
			}
		case opConstant:
			// Only 32-bit scalar constants matter here (array lengths).
			if len(ops) >= 3 {
				m.constants[ops[1]] = ops[2]
			}
		case opVariable:
			if len(ops) >= 3 {
				m.variables = append(m.variables, variableDef{
					id:      ops[1],
					typeID:  ops[0],
					class:   ops[2],
					declIdx: declIdx,
				})
				declIdx++
			}
		}
		pos += wordCount
	}
	return m, nil
}

func (m *module) applyDecoration(target, decoration uint32, args []uint32) {
	switch decoration {
	case decorationDescriptorSet:
		if len(args) >= 1 {
			m.sets[target] = args[0]
		}
	case decorationBinding:
		if len(args) >= 1 {
			m.bindings[target] = args[0]
		}
	case decorationLocation:
		if len(args) >= 1 {
			m.locations[target] = args[0]
		}
	case decorationBuiltIn:
		m.builtins[target] = true
	case decorationBlock:
		m.blockDecor[target] = true
	case decorationBufferBlock:
		m.bufferBlock[target] = true
	case decorationNonWritable:
		m.nonWritable[target] = true
	case decorationNonReadable:
		m.nonReadable[target] = true
	case decorationArrayStride:
		if len(args) >= 1 {
			n := m.types[target]
			n.stride = args[0]
			m.types[target] = n
		}
	}
}

func (m *module) applyMemberDecoration(structID, member, decoration uint32, args []uint32) {
	switch decoration {
	case decorationOffset:
		if len(args) >= 1 {
			if m.memberOffsets[structID] == nil {
				m.memberOffsets[structID] = make(map[uint32]uint32)
			}
			m.memberOffsets[structID][member] = args[0]
		}
	case decorationMatrixStride:
		if len(args) >= 1 {
			if m.memberMatStrd[structID] == nil {
				m.memberMatStrd[structID] = make(map[uint32]uint32)
			}
			m.memberMatStrd[structID][member] = args[0]
		}
	case decorationBuiltIn:
		m.memberBuiltin[structID] = true
	}
}

// pointee resolves a variable's pointer type to the pointed-to type id.
func (m *module) pointee(typeID uint32) uint32 {
	if t, ok := m.types[typeID]; ok && t.kind == tkPointer {
		return t.elem
	}
	return typeID
}

// sizeOf computes the byte extent of a type. Struct size is the maximum of
// member offset plus member size; runtime-sized arrays contribute zero.
func (m *module) sizeOf(typeID uint32) uint32 {
	if sz, ok := m.sizeMemo[typeID]; ok {
		return sz
	}
	m.sizeMemo[typeID] = 0 // cycle guard
	t, ok := m.types[typeID]
	if !ok {
		return 0
	}
	var sz uint32
	switch t.kind {
	case tkBool:
		sz = 4
	case tkInt, tkFloat:
		sz = t.width / 8
	case tkVector:
		sz = t.count * m.sizeOf(t.elem)
	case tkMatrix:
		sz = t.count * m.sizeOf(t.elem)
	case tkArray:
		if t.stride > 0 {
			sz = t.stride * t.count
		} else {
			sz = t.count * m.sizeOf(t.elem)
		}
	case tkRuntimeArray:
		sz = 0
	case tkStruct:
		for i, memberType := range t.members {
			offset := m.memberOffset(typeID, uint32(i), i)
			end := offset + m.memberSize(typeID, uint32(i), memberType)
			if end > sz {
				sz = end
			}
		}
	case tkPointer:
		sz = m.sizeOf(t.elem)
	}
	m.sizeMemo[typeID] = sz
	return sz
}

// memberOffset returns the decorated Offset of a struct member, falling back
// to a packed running offset when the binary carries no layout decorations.
func (m *module) memberOffset(structID, member uint32, index int) uint32 {
	if offsets, ok := m.memberOffsets[structID]; ok {
		if off, ok := offsets[member]; ok {
			return off
		}
	}
	// Undecorated interface structs: pack members back to back.
	var off uint32
	t := m.types[structID]
	for i := 0; i < index && i < len(t.members); i++ {
		off += m.memberSize(structID, uint32(i), t.members[i])
	}
	return off
}

// memberSize returns the byte extent of a struct member, honoring the
// MatrixStride decoration for matrix members.
func (m *module) memberSize(structID, member, typeID uint32) uint32 {
	t, ok := m.types[typeID]
	if ok && t.kind == tkMatrix {
		if strides, ok := m.memberMatStrd[structID]; ok {
			if stride, ok := strides[member]; ok {
				return stride * t.count
			}
		}
	}
	return m.sizeOf(typeID)
}

// bindingName prefers the variable's debug name and falls back to the name of
// its (unwrapped) type, matching how block variables are commonly anonymous.
func (m *module) bindingName(v variableDef, inner uint32) string {
	if name := m.names[v.id]; name != "" {
		return name
	}
	return m.names[inner]
}

func (m *module) reflectAttribute(v variableDef, refl *Reflection) {
	location, hasLocation := m.locations[v.id]
	if !hasLocation || m.builtins[v.id] {
		return
	}
	inner := m.pointee(v.typeID)
	t, ok := m.types[inner]
	if !ok {
		return
	}
	// Interface structs carrying built-in members (per-vertex state) have no
	// user-assignable location either.
	if t.kind == tkStruct && m.memberBuiltin[inner] {
		return
	}
	format, size := m.attributeFormat(t)
	refl.Attributes = append(refl.Attributes, ReflectedAttribute{
		Name: m.names[v.id],
		Attribute: Attribute{
			Set:      0,
			Location: int32(location),
			Size:     size,
			Format:   format,
		},
	})
}

func (m *module) attributeFormat(t typeNode) (Format, int32) {
	scalar := t
	comps := uint32(1)
	if t.kind == tkVector {
		comps = t.count
		scalar = m.types[t.elem]
	}
	if scalar.width != 32 || comps < 1 || comps > 4 {
		return FormatUndefined, int32(m.sizeOfNode(t))
	}
	var base Format
	switch {
	case scalar.kind == tkFloat:
		base = FormatR32Float
	case scalar.kind == tkInt && scalar.signed:
		base = FormatR32Sint
	case scalar.kind == tkInt:
		base = FormatR32Uint
	default:
		return FormatUndefined, int32(comps * 4)
	}
	return base + Format(comps-1), int32(comps * 4)
}

func (m *module) sizeOfNode(t typeNode) uint32 {
	switch t.kind {
	case tkVector:
		return t.count * m.sizeOf(t.elem)
	case tkInt, tkFloat:
		return t.width / 8
	default:
		return 0
	}
}

func (m *module) reflectPushBlock(v variableDef, stage Stage, refl *Reflection) {
	inner := m.pointee(v.typeID)
	size := m.sizeOf(inner)
	block := m.buildBlock(inner, -1, DescriptorKindUniformBuffer, BlockKindPush, stage, size)
	refl.PushRanges = append(refl.PushRanges, PushConstantRange{Offset: 0, Size: size, Stages: stage})
	refl.PushBlocks = append(refl.PushBlocks, ReflectedPushBlock{
		Name:  m.bindingName(v, inner),
		Block: block,
	})
}

func (m *module) reflectBinding(v variableDef, stage Stage, refl *Reflection) {
	slot, hasBinding := m.bindings[v.id]
	if !hasBinding {
		return
	}

	inner := m.pointee(v.typeID)
	count := uint32(1)
	if t, ok := m.types[inner]; ok && (t.kind == tkArray || t.kind == tkRuntimeArray) {
		// Descriptor array: the binding's kind comes from the element type.
		if t.count > 0 {
			count = t.count
		}
		inner = t.elem
	}

	kind := m.descriptorKind(v.class, inner)
	if kind == DescriptorKindUndefined {
		return
	}

	b := ReflectedBinding{
		Name:      m.bindingName(v, inner),
		Set:       m.sets[v.id],
		Binding:   slot,
		Count:     count,
		Kind:      kind,
		ReadOnly:  m.nonWritable[v.id] || m.nonWritable[inner],
		WriteOnly: m.nonReadable[v.id] || m.nonReadable[inner],
	}
	if kind == DescriptorKindUniformBuffer || kind == DescriptorKindStorageBuffer {
		b.Size = m.sizeOf(inner)
		blockKind := BlockKindUniform
		if kind == DescriptorKindStorageBuffer {
			blockKind = BlockKindStorage
		}
		b.Block = m.buildBlock(inner, int32(slot), kind, blockKind, stage, b.Size)
	}
	refl.Bindings = append(refl.Bindings, b)
}

// descriptorKind classifies a binding by its storage class and pointee type.
// BufferBlock-decorated structs in the Uniform class are legacy storage
// buffers and classified as such.
func (m *module) descriptorKind(class, inner uint32) DescriptorKind {
	switch class {
	case classUniform:
		if m.bufferBlock[inner] {
			return DescriptorKindStorageBuffer
		}
		return DescriptorKindUniformBuffer
	case classStorageBuffer:
		return DescriptorKindStorageBuffer
	case classUniformConstant:
		t, ok := m.types[inner]
		if !ok {
			return DescriptorKindUndefined
		}
		switch t.kind {
		case tkSampler:
			return DescriptorKindSampler
		case tkSampledImage:
			return DescriptorKindCombinedImageSampler
		case tkImage:
			if t.sampled == 2 {
				return DescriptorKindStorageImage
			}
			return DescriptorKindSampledImage
		}
	}
	return DescriptorKindUndefined
}

// buildBlock walks a struct type's members into a UniformBlock.
func (m *module) buildBlock(structID uint32, binding int32, kind DescriptorKind, blockKind BlockKind, stage Stage, size uint32) *UniformBlock {
	block := &UniformBlock{
		Binding:  binding,
		Size:     int32(size),
		Stages:   stage,
		Kind:     blockKind,
		Uniforms: make(map[string]UniformInfo),
	}
	t, ok := m.types[structID]
	if !ok || t.kind != tkStruct {
		return block
	}
	for i, memberType := range t.members {
		name := ""
		if mn, ok := m.memberNames[structID]; ok {
			name = mn[uint32(i)]
		}
		if name == "" {
			name = fmt.Sprintf("member_%d", i)
		}
		block.Uniforms[name] = UniformInfo{
			Binding: uint32(max(binding, 0)),
			Offset:  m.memberOffset(structID, uint32(i), i),
			Size:    m.memberSize(structID, uint32(i), memberType),
			Kind:    kind,
			Stages:  stage,
		}
	}
	return block
}

// decodeString reads a NUL-terminated UTF-8 literal packed little-endian into
// the operand words, starting at the given operand index.
func decodeString(operands []uint32, start int) (string, int) {
	var b []byte
	for i := start; i < len(operands); i++ {
		w := operands[i]
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(b), i + 1
			}
			b = append(b, c)
		}
	}
	return string(b), len(operands)
}
