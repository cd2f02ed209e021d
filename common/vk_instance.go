package common

import (
	"log"
	"os"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const APPLICATION_NAME = "Offscreen triangle"
const APP_MAJOR, APP_MINOR, APP_PATCH = 1, 0, 0
const ENGINE_NAME = "No Engine"
const ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH = 1, 0, 0

// The core only needs Vulkan 1.0 functionality
const VK_API_MAJOR, VK_API_MINOR, VK_API_PATCH = 1, 0, 0

var VALIDATION_LAYERS = []string{
	"VK_LAYER_KHRONOS_validation",
}

var DEBUG_EXTENSIONS = []string{
	"VK_EXT_debug_report",
}

var debugLog = log.New(os.Stderr, "", log.LstdFlags)

// Instance owns the vk.Instance and, with validation enabled, the debug report callback registered on it.
type Instance struct {
	Handle     vk.Instance
	Validation bool

	debugCallback vk.DebugReportCallback
	teardown      Teardown
}

// NewInstance creates a Vulkan instance. The loader must have been initialized before. With enableValidation the
// Khronos validation layer is enabled and backend errors and warnings are logged to stderr.
func NewInstance(enableValidation bool) (*Instance, error) {
	in := &Instance{Validation: enableValidation}
	var layers, extensions []string
	if enableValidation {
		log.Printf("Validation enabled, checking layer support")
		if err := checkValidationLayerSupport(VALIDATION_LAYERS); err != nil {
			return nil, err
		}
		if err := checkInstanceExtensionSupport(DEBUG_EXTENSIONS); err != nil {
			return nil, err
		}
		layers = VALIDATION_LAYERS
		extensions = DEBUG_EXTENSIONS
	}
	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PNext:              nil,
		PApplicationName:   TerminatedStr(APPLICATION_NAME),
		ApplicationVersion: vk.MakeVersion(APP_MAJOR, APP_MINOR, APP_PATCH),
		PEngineName:        TerminatedStr(ENGINE_NAME),
		EngineVersion:      vk.MakeVersion(ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH),
		ApiVersion:         vk.MakeVersion(VK_API_MAJOR, VK_API_MINOR, VK_API_PATCH),
	}
	createInfo := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		PApplicationInfo:        applicationInfo,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     TerminatedStrs(layers),
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: TerminatedStrs(extensions),
	}
	var handle vk.Instance
	if err := VkResultError("vkCreateInstance", vk.CreateInstance(createInfo, nil, &handle)); err != nil {
		return nil, errors.Wrap(err, "failed to create vk instance")
	}
	in.Handle = handle
	in.teardown.Push("instance", func() { vk.DestroyInstance(handle, nil) })
	if err := vk.InitInstance(handle); err != nil {
		in.Destroy()
		return nil, errors.Wrap(err, "failed to load instance level functions")
	}
	log.Println("Successfully created vk instance")

	if enableValidation {
		if err := in.registerDebugCallback(); err != nil {
			in.Destroy()
			return nil, err
		}
	}
	return in, nil
}

// Destroy removes the debug callback and destroys the instance.
func (in *Instance) Destroy() {
	in.teardown.Release()
}

func (in *Instance) registerDebugCallback() error {
	dbgCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
		PfnCallback: debugReportCallback,
	}
	var dbg vk.DebugReportCallback
	err := VkResultError("vkCreateDebugReportCallback", vk.CreateDebugReportCallback(in.Handle, &dbgCreateInfo, nil, &dbg))
	if err != nil {
		return errors.Wrap(err, "failed to register debug report callback")
	}
	in.debugCallback = dbg
	handle := in.Handle
	in.teardown.Push("debug report callback", func() { vk.DestroyDebugReportCallback(handle, dbg, nil) })
	return nil
}

func debugReportCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint64, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	debugLog.Printf("[Debug Report]: %s: %s", pLayerPrefix, pMessage)
	return vk.Bool32(vk.False)
}

func checkInstanceExtensionSupport(requiredInstanceExt []string) error {
	supportedExtNames, err := ReadInstanceExtensionPropertyNames()
	if err != nil {
		return err
	}
	log.Printf("Required instance extensions: %v", requiredInstanceExt)
	log.Printf("Available extensions (%d): %v", len(supportedExtNames), supportedExtNames)
	if !AllOfAinB(requiredInstanceExt, supportedExtNames) {
		return errors.Errorf("at least one required instance extension of %v is not supported", requiredInstanceExt)
	}
	log.Println("Success - All required instance extensions are supported")
	return nil
}

func checkValidationLayerSupport(requiredLayers []string) error {
	supportedLayerNames, err := ReadInstanceLayerPropertyNames()
	if err != nil {
		return err
	}
	log.Printf("Desired validation layers: %v", requiredLayers)
	log.Printf("Supported layers (%d): %v", len(supportedLayerNames), supportedLayerNames)
	if !AllOfAinB(requiredLayers, supportedLayerNames) {
		return errors.Errorf("at least one desired layer of %v is not supported", requiredLayers)
	}
	log.Println("Success - All desired validation layers are supported")
	return nil
}
