// Package shaders holds the GLSL sources of the triangle pipeline. The SPIR-V binaries the renderer loads at
// runtime are produced with glslc from the Vulkan SDK.
package shaders

//go:generate glslc shader.vert -o vert.spv
//go:generate glslc shader.frag -o frag.spv
