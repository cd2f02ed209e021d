package renderer

import (
	"log"
	"os"

	"offscreen_triangle/common"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// ReadShaderCode reads a '.spv' file for later use in a render pipeline.
func ReadShaderCode(shaderFile string) ([]byte, error) {
	shaderCodeB, err := os.ReadFile(shaderFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read shader file '%s'", shaderFile)
	}
	log.Printf("Read shader file (%s) of size: %dByte", shaderFile, len(shaderCodeB))
	return shaderCodeB, nil
}

// createShaderStage wraps SPIR-V code into a shader module and its vk.PipelineShaderStageCreateInfo, which is
// required to bind the shader to the pipeline. As vk.ShaderModule is only meant as a container to move the shader
// code onto the device, the caller destroys it right after the pipeline was created.
func createShaderStage(drv common.Driver, d vk.Device, code []byte, stage vk.ShaderStageFlagBits) (vk.ShaderModule, vk.PipelineShaderStageCreateInfo, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, vk.PipelineShaderStageCreateInfo{}, errors.Errorf("shader code size %d is not a positive multiple of 4", len(code))
	}
	createInfo := &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		PNext:    nil,
		Flags:    0,
		CodeSize: uint64(len(code)),
		PCode:    common.AsUint32Arr(code),
	}
	module, err := drv.CreateShaderModule(d, createInfo)
	if err != nil {
		return nil, vk.PipelineShaderStageCreateInfo{}, errors.Wrap(err, "failed to create shader module")
	}
	log.Printf("Created shader module from %d bytes of SPIR-V", len(code))

	stageInfo := vk.PipelineShaderStageCreateInfo{
		SType:               vk.StructureTypePipelineShaderStageCreateInfo,
		PNext:               nil,
		Flags:               0,
		Stage:               stage,
		Module:              module,
		PName:               "main\x00", // entrypoint -> function name in the shader
		PSpecializationInfo: nil,
	}
	return module, stageInfo, nil
}
