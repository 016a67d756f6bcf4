package shader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"

	"github.com/flint3d/flint-go/engine/renderer/spirv"
)

// Bundle archive binary layout, all fields little-endian:
//
//	header:  magic, version, entryCount, dataSize, reserved[4]  (8 words)
//	entries: nameHash, stage, offset, size, name[256], entryPoint[64]
//	payload: concatenated stage binaries, offsets relative to payload start
const (
	bundleMagic   uint32 = 0x53484452 // "SHDR"
	bundleVersion uint32 = 1

	bundleNameLen       = 256
	bundleEntryPointLen = 64
	bundleHeaderSize    = 32
	bundleEntrySize     = 16 + bundleNameLen + bundleEntryPointLen
)

type bundleEntry struct {
	name       string
	entryPoint string
	stage      spirv.Stage
	blob       *spirv.CompiledStage
}

// Bundle is an archive of compiled shader stages addressed by (name, stage).
// Entries are keyed internally by a hash of the name mixed with the stage;
// lookups verify the actual name and stage so hash collisions degrade to a
// linear probe instead of returning the wrong shader. A failed Load leaves the
// archive's previous contents untouched.
type Bundle struct {
	mu      sync.RWMutex
	entries []bundleEntry
	index   map[uint32][]int
}

// NewBundle creates an empty archive.
//
// Returns:
//   - *Bundle: the new archive
func NewBundle() *Bundle {
	return &Bundle{index: make(map[uint32][]int)}
}

// nameHash is the FNV-1a hash of a shader name, stored verbatim in the entry
// table so loaders can detect corrupted records.
func nameHash(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

// entryKey mixes the name hash with the stage bits so the same name compiled
// for different stages lands in different index slots.
func entryKey(name string, stage spirv.Stage) uint32 {
	return nameHash(name) ^ (uint32(stage) << 24)
}

// Add stores a compiled stage under a name, replacing any existing entry with
// the same name and stage.
//
// Parameters:
//   - name: the shader name, at most 255 bytes
//   - blob: the compiled stage to store
//
// Returns:
//   - error: non-nil if the name or the blob's entry point exceed the archive's field widths
func (b *Bundle) Add(name string, blob *spirv.CompiledStage) error {
	if name == "" || len(name) >= bundleNameLen {
		return fmt.Errorf("shader: bundle entry name must be 1 to %d bytes, got %d", bundleNameLen-1, len(name))
	}
	if len(blob.EntryPoint()) >= bundleEntryPointLen {
		return fmt.Errorf("shader: bundle entry point exceeds %d bytes", bundleEntryPointLen-1)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	key := entryKey(name, blob.Stage())
	for _, idx := range b.index[key] {
		e := &b.entries[idx]
		if e.name == name && e.stage == blob.Stage() {
			e.blob = blob
			e.entryPoint = blob.EntryPoint()
			return nil
		}
	}
	b.entries = append(b.entries, bundleEntry{
		name:       name,
		entryPoint: blob.EntryPoint(),
		stage:      blob.Stage(),
		blob:       blob,
	})
	b.index[key] = append(b.index[key], len(b.entries)-1)
	return nil
}

// Lookup retrieves a stored stage by name and stage.
//
// Parameters:
//   - name: the shader name used at Add time
//   - stage: the pipeline stage
//
// Returns:
//   - *spirv.CompiledStage: the stored blob, nil if absent
//   - bool: true if the entry exists
func (b *Bundle) Lookup(name string, stage spirv.Stage) (*spirv.CompiledStage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, idx := range b.index[entryKey(name, stage)] {
		e := &b.entries[idx]
		if e.name == name && e.stage == stage {
			return e.blob, true
		}
	}
	return nil, false
}

// LookupHash retrieves a stored stage by the FNV-1a hash of its name, for
// callers that precompute hashes instead of carrying name strings.
//
// Parameters:
//   - hash: the FNV-1a hash of the shader name
//   - stage: the pipeline stage
//
// Returns:
//   - *spirv.CompiledStage: the stored blob, nil if absent
//   - bool: true if the entry exists
func (b *Bundle) LookupHash(hash uint32, stage spirv.Stage) (*spirv.CompiledStage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, idx := range b.index[hash^(uint32(stage)<<24)] {
		e := &b.entries[idx]
		if e.stage == stage && nameHash(e.name) == hash {
			return e.blob, true
		}
	}
	return nil, false
}

// Len returns the number of stored entries.
//
// Returns:
//   - int: the entry count
func (b *Bundle) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Names returns the distinct shader names in insertion order.
//
// Returns:
//   - []string: the names, duplicates across stages removed
func (b *Bundle) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]bool, len(b.entries))
	names := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		if !seen[e.name] {
			seen[e.name] = true
			names = append(names, e.name)
		}
	}
	return names
}

// WriteTo serializes the archive.
//
// Parameters:
//   - w: the destination writer
//
// Returns:
//   - int64: the number of bytes written
//   - error: non-nil on write failure
func (b *Bundle) WriteTo(w io.Writer) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var payload bytes.Buffer
	type diskEntry struct {
		offset uint32
		size   uint32
	}
	disk := make([]diskEntry, len(b.entries))
	for i, e := range b.entries {
		raw := e.blob.Bytes()
		disk[i] = diskEntry{offset: uint32(payload.Len()), size: uint32(len(raw))}
		payload.Write(raw)
	}

	var out bytes.Buffer
	header := [8]uint32{bundleMagic, bundleVersion, uint32(len(b.entries)), uint32(payload.Len())}
	for _, word := range header {
		binary.Write(&out, binary.LittleEndian, word)
	}
	for i, e := range b.entries {
		binary.Write(&out, binary.LittleEndian, nameHash(e.name))
		binary.Write(&out, binary.LittleEndian, uint32(e.stage))
		binary.Write(&out, binary.LittleEndian, disk[i].offset)
		binary.Write(&out, binary.LittleEndian, disk[i].size)

		var name [bundleNameLen]byte
		copy(name[:], e.name)
		out.Write(name[:])
		var entryPoint [bundleEntryPointLen]byte
		copy(entryPoint[:], e.entryPoint)
		out.Write(entryPoint[:])
	}
	out.Write(payload.Bytes())

	n, err := w.Write(out.Bytes())
	return int64(n), err
}

// ReadFrom deserializes an archive, replacing the bundle's contents. The new
// contents are parsed and validated into a staging area first; any error
// leaves the existing contents untouched.
//
// Parameters:
//   - r: the source reader
//
// Returns:
//   - int64: the number of bytes consumed
//   - error: non-nil if the data is truncated, has a bad magic or version, or contains an invalid binary
func (b *Bundle) ReadFrom(r io.Reader) (int64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return int64(len(raw)), err
	}
	if len(raw) < bundleHeaderSize {
		return int64(len(raw)), fmt.Errorf("shader: bundle truncated at %d bytes", len(raw))
	}
	magic := binary.LittleEndian.Uint32(raw[0:])
	version := binary.LittleEndian.Uint32(raw[4:])
	entryCount := binary.LittleEndian.Uint32(raw[8:])
	dataSize := binary.LittleEndian.Uint32(raw[12:])
	if magic != bundleMagic {
		return int64(len(raw)), fmt.Errorf("shader: bad bundle magic 0x%08x", magic)
	}
	if version != bundleVersion {
		return int64(len(raw)), fmt.Errorf("shader: unsupported bundle version %d", version)
	}
	tableEnd := bundleHeaderSize + int64(entryCount)*bundleEntrySize
	if tableEnd+int64(dataSize) != int64(len(raw)) {
		return int64(len(raw)), fmt.Errorf("shader: bundle size mismatch: header claims %d bytes, file has %d",
			tableEnd+int64(dataSize), len(raw))
	}
	payload := raw[tableEnd:]

	entries := make([]bundleEntry, 0, entryCount)
	index := make(map[uint32][]int, entryCount)
	for i := 0; i < int(entryCount); i++ {
		rec := raw[bundleHeaderSize+int64(i)*bundleEntrySize:]
		stage := spirv.Stage(binary.LittleEndian.Uint32(rec[4:]))
		offset := binary.LittleEndian.Uint32(rec[8:])
		size := binary.LittleEndian.Uint32(rec[12:])
		name := cString(rec[16 : 16+bundleNameLen])
		entryPoint := cString(rec[16+bundleNameLen : 16+bundleNameLen+bundleEntryPointLen])
		if name == "" {
			return int64(len(raw)), fmt.Errorf("shader: bundle entry %d has an empty name", i)
		}
		if binary.LittleEndian.Uint32(rec[0:]) != nameHash(name) {
			return int64(len(raw)), fmt.Errorf("shader: bundle entry %q has a corrupted name hash", name)
		}
		if int64(offset)+int64(size) > int64(len(payload)) {
			return int64(len(raw)), fmt.Errorf("shader: bundle entry %q data range [%d, %d) exceeds payload of %d bytes",
				name, offset, offset+size, len(payload))
		}
		blob, err := spirv.CompiledStageFromBytes(payload[offset:offset+size], stage)
		if err != nil {
			return int64(len(raw)), fmt.Errorf("shader: bundle entry %q: %w", name, err)
		}
		if entryPoint != "" && entryPoint != blob.EntryPoint() {
			blob = blob.WithSource("", entryPoint)
		}
		entries = append(entries, bundleEntry{name: name, entryPoint: blob.EntryPoint(), stage: stage, blob: blob})
		index[entryKey(name, stage)] = append(index[entryKey(name, stage)], i)
	}

	b.mu.Lock()
	b.entries = entries
	b.index = index
	b.mu.Unlock()
	return int64(len(raw)), nil
}

// Save writes the archive to a file, creating or truncating it.
//
// Parameters:
//   - path: the destination file path
//
// Returns:
//   - error: non-nil on any filesystem or write failure
func (b *Bundle) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := b.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads an archive from a file, replacing the bundle's contents. A
// failed load leaves the previous contents untouched.
//
// Parameters:
//   - path: the source file path
//
// Returns:
//   - error: non-nil if the file cannot be read or is not a valid archive
func (b *Bundle) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = b.ReadFrom(f)
	return err
}

// cString extracts a NUL-terminated string from a fixed-width field.
func cString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}
