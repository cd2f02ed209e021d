package common

import (
	vk "github.com/goki/vulkan"
)

// Read operations that require duplicated function calls, allocations and dereferencing. They work before any
// instance exists, so they call the loader directly instead of going through a Driver.

// ReadInstanceExtensionPropertyNames is a convenience method obfuscating the spec defined []vk.ExtensionProperties
// type in favor of their respective names in order to simplify support checks to a point of string comparisons.
func ReadInstanceExtensionPropertyNames() ([]string, error) {
	supportedExts, err := readInstanceExtensionProperties()
	if err != nil {
		return nil, err
	}
	supportedExtNames := make([]string, len(supportedExts))
	for i, ext := range supportedExts {
		supportedExtNames[i] = vk.ToString(ext.ExtensionName[:])
	}
	return supportedExtNames, nil
}

func readInstanceExtensionProperties() ([]vk.ExtensionProperties, error) {
	extensionCount := uint32(0)
	err := VkResultError("vkEnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &extensionCount, nil))
	if err != nil {
		return nil, err
	}
	extensionProperties := make([]vk.ExtensionProperties, extensionCount)
	err = VkResultError("vkEnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &extensionCount, extensionProperties))
	if err != nil {
		return nil, err
	}
	for i := range extensionProperties {
		extensionProperties[i].Deref()
	}
	return extensionProperties, nil
}

// ReadInstanceLayerPropertyNames lists the names of all instance layers the loader can enable.
func ReadInstanceLayerPropertyNames() ([]string, error) {
	supportedLayers, err := readInstanceLayerProperties()
	if err != nil {
		return nil, err
	}
	supLayerNames := make([]string, len(supportedLayers))
	for i, l := range supportedLayers {
		supLayerNames[i] = vk.ToString(l.LayerName[:])
	}
	return supLayerNames, nil
}

func readInstanceLayerProperties() ([]vk.LayerProperties, error) {
	layerCount := uint32(0)
	err := VkResultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&layerCount, nil))
	if err != nil {
		return nil, err
	}
	layers := make([]vk.LayerProperties, layerCount)
	err = VkResultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&layerCount, layers))
	if err != nil {
		return nil, err
	}
	for i := range layers {
		layers[i].Deref()
	}
	return layers, nil
}
