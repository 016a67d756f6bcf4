package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUSurfaceParamsSource is the canonical WGSL definition of the SurfaceParams struct.
// Matches GPUSurfaceParams layout exactly (32 bytes, std140 aligned).
//
//go:embed assets/surface_params.wgsl
var GPUSurfaceParamsSource string

// GPUSurfaceParams is the GPU-aligned uniform carrying a material's surface
// properties. Matches the WGSL SurfaceParams struct layout exactly (see
// GPUSurfaceParamsSource).
// Size: 32 bytes (one vec4<f32> plus two f32 and padding, std140 aligned).
type GPUSurfaceParams struct {
	BaseColor [4]float32 // offset 0: RGBA albedo color (16 bytes)
	Metallic  float32    // offset 16: metallic factor
	Roughness float32    // offset 20: roughness factor
	_         [2]float32 // offset 24: padding to a 16-byte multiple
}

// Size returns the size of the GPUSurfaceParams struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSurfaceParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSurfaceParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUSurfaceParams) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.BaseColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.BaseColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.BaseColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.BaseColor[3]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Metallic))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Roughness))
	return buf
}

// SurfaceParams builds the GPU uniform from the material's surface properties.
//
// Returns:
//   - GPUSurfaceParams: the upload-ready parameter block
func (m *material) SurfaceParams() GPUSurfaceParams {
	return GPUSurfaceParams{
		BaseColor: m.baseColor,
		Metallic:  m.metallic,
		Roughness: m.roughness,
	}
}
