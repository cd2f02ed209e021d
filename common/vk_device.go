package common

import (
	"log"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// Device represents the interfacing objects between the Vulkan instance, the hardware running Vulkan and the rest
// of the rendering core. It owns the logical device, one graphics and one transfer queue and one command pool per
// distinct queue family. Everything it creates is released by Destroy in reverse order.
type Device struct {
	PhysicalDevice vk.PhysicalDevice
	PdProps        vk.PhysicalDeviceProperties
	PdMemoryProps  vk.PhysicalDeviceMemoryProperties
	QFamilies      QueueFamilyIndices

	D         vk.Device
	GraphicsQ vk.Queue
	TransferQ vk.Queue

	// Pools maps a queue family index to the command pool created for it
	Pools map[uint32]vk.CommandPool

	drv      Driver
	teardown Teardown
}

// AcquireDevice selects the physical device at preferredIndex, creates a logical device exposing a graphics and a
// transfer queue and one command pool per distinct queue family.
func AcquireDevice(drv Driver, instance vk.Instance, preferredIndex int) (*Device, error) {
	dc := &Device{drv: drv, Pools: map[uint32]vk.CommandPool{}}
	if err := dc.selectPhysicalDevice(instance, preferredIndex); err != nil {
		return nil, err
	}
	if err := dc.createLogicalDevice(); err != nil {
		dc.Destroy()
		return nil, err
	}
	if err := dc.createCommandPools(); err != nil {
		dc.Destroy()
		return nil, err
	}
	return dc, nil
}

// Destroy releases the command pools and the logical device. It is safe to call on a partially constructed Device
// and more than once.
func (dc *Device) Destroy() {
	dc.teardown.Release()
}

// GraphicsPool is the command pool of the graphics queue family.
func (dc *Device) GraphicsPool() vk.CommandPool {
	return dc.Pools[*dc.QFamilies.GraphicsFamily]
}

// TransferPool is the command pool of the transfer queue family.
func (dc *Device) TransferPool() vk.CommandPool {
	return dc.Pools[*dc.QFamilies.TransferFamily]
}

// SharedFamily reports whether graphics and transfer work use the same queue family.
func (dc *Device) SharedFamily() bool {
	return *dc.QFamilies.GraphicsFamily == *dc.QFamilies.TransferFamily
}

// WaitIdle blocks until the device finished all submitted work.
func (dc *Device) WaitIdle() error {
	return dc.drv.DeviceWaitIdle(dc.D)
}

func (dc *Device) selectPhysicalDevice(instance vk.Instance, preferredIndex int) error {
	availableDevices, err := dc.drv.EnumeratePhysicalDevices(instance)
	if err != nil {
		return errors.Wrap(err, "failed to enumerate physical devices")
	}
	if preferredIndex < 0 || preferredIndex >= len(availableDevices) {
		return errors.Wrapf(ErrNoSuitableDevice, "device index %d out of range, %d devices available", preferredIndex, len(availableDevices))
	}
	pd := availableDevices[preferredIndex]
	pdProps := dc.drv.GetPhysicalDeviceProperties(pd)
	qFamilies := dc.drv.GetPhysicalDeviceQueueFamilyProperties(pd)
	log.Printf("Physical device [%d]\n%s", preferredIndex, ToStringPhysicalDeviceTable(pdProps, qFamilies))

	qf, err := findQueueFamilies(qFamilies)
	if err != nil {
		return errors.Wrapf(ErrNoSuitableDevice, "device %d: %v", preferredIndex, err)
	}
	log.Printf("Using queue families graphics: %d %v, transfer: %d %v",
		*qf.GraphicsFamily, toStringQueueFlagsShort(qFamilies[*qf.GraphicsFamily].QueueFlags),
		*qf.TransferFamily, toStringQueueFlagsShort(qFamilies[*qf.TransferFamily].QueueFlags))

	dc.PhysicalDevice = pd
	dc.QFamilies = *qf
	dc.PdProps = pdProps
	dc.PdMemoryProps = dc.drv.GetPhysicalDeviceMemoryProperties(pd)
	log.Printf("Memory types of device [%d]\n%s", preferredIndex, TableStringMemoryTypes(dc.PdMemoryProps))
	return nil
}

func (dc *Device) createLogicalDevice() error {
	queueInfos := dc.QFamilies.toQueueCreateInfos()
	deviceCreateInfo := &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledLayerCount:       0,
		PpEnabledLayerNames:     nil,
		EnabledExtensionCount:   0,
		PpEnabledExtensionNames: nil,
		PEnabledFeatures:        nil,
	}

	d, err := dc.drv.CreateDevice(dc.PhysicalDevice, deviceCreateInfo)
	if err != nil {
		return errors.Wrap(err, "failed to create logical device")
	}
	dc.D = d
	dc.teardown.Push("logical device", func() { dc.drv.DestroyDevice(d) })
	log.Println("Successfully created logical device")

	dc.GraphicsQ = dc.drv.GetDeviceQueue(dc.D, *dc.QFamilies.GraphicsFamily, 0)
	dc.TransferQ = dc.drv.GetDeviceQueue(dc.D, *dc.QFamilies.TransferFamily, 0)
	return nil
}

func (dc *Device) createCommandPools() error {
	for _, family := range dc.QFamilies.UniqueFamilies() {
		pool, err := VKSCreateCommandPool(dc.drv, dc.D, 0, family)
		if err != nil {
			return errors.Wrapf(err, "failed to create command pool for queue family %d", family)
		}
		dc.Pools[family] = pool
		dc.teardown.Push("command pool", func() { dc.drv.DestroyCommandPool(dc.D, pool) })
	}
	log.Printf("Successfully created %d command pool(s)", len(dc.Pools))
	return nil
}

// Driver is the driver the device was acquired with.
func (dc *Device) Driver() Driver {
	return dc.drv
}
