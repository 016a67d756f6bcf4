package spirv

import "strings"

// Stage is a bitmask identifying one or more pipeline stages. Individual stage
// values match the Vulkan shader stage flag bits so a mask can be stored in a
// single byte when packed into archive keys.
type Stage uint32

const (
	// StageVertex is the vertex processing stage.
	StageVertex Stage = 1 << 0

	// StageTessControl is the tessellation control stage.
	StageTessControl Stage = 1 << 1

	// StageTessEval is the tessellation evaluation stage.
	StageTessEval Stage = 1 << 2

	// StageGeometry is the geometry stage.
	StageGeometry Stage = 1 << 3

	// StageFragment is the fragment processing stage.
	StageFragment Stage = 1 << 4

	// StageCompute is the compute stage.
	StageCompute Stage = 1 << 5

	// StageNone is the empty stage mask.
	StageNone Stage = 0
)

// Has reports whether the mask contains all bits of other.
//
// Parameters:
//   - other: the stage bits to test for
//
// Returns:
//   - bool: true if every bit of other is set in the mask
func (s Stage) Has(other Stage) bool {
	return s&other == other
}

// String returns a human-readable name for the stage mask, joining multiple
// stages with "|".
//
// Returns:
//   - string: the stage name(s), or "none" for the empty mask
func (s Stage) String() string {
	if s == StageNone {
		return "none"
	}
	names := make([]string, 0, 6)
	for _, e := range [...]struct {
		bit  Stage
		name string
	}{
		{StageVertex, "vertex"},
		{StageTessControl, "tess_control"},
		{StageTessEval, "tess_eval"},
		{StageGeometry, "geometry"},
		{StageFragment, "fragment"},
		{StageCompute, "compute"},
	} {
		if s.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "|")
}

// StageFromExtension maps a shader file path to its pipeline stage based on the
// conventional file extensions used by offline shader compilers.
//
// Parameters:
//   - path: the shader file path, e.g. "shadow.vert" or "cull.comp"
//
// Returns:
//   - Stage: the matching stage, or StageNone if the extension is not recognized
func StageFromExtension(path string) Stage {
	switch {
	case strings.HasSuffix(path, ".vert"), strings.HasSuffix(path, ".vs"):
		return StageVertex
	case strings.HasSuffix(path, ".frag"), strings.HasSuffix(path, ".fs"), strings.HasSuffix(path, ".ps"):
		return StageFragment
	case strings.HasSuffix(path, ".comp"), strings.HasSuffix(path, ".cs"):
		return StageCompute
	case strings.HasSuffix(path, ".geom"), strings.HasSuffix(path, ".gs"):
		return StageGeometry
	case strings.HasSuffix(path, ".tesc"), strings.HasSuffix(path, ".hs"):
		return StageTessControl
	case strings.HasSuffix(path, ".tese"), strings.HasSuffix(path, ".ds"):
		return StageTessEval
	default:
		return StageNone
	}
}
