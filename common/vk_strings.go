package common

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/xlab/tablewriter"
)

// Physical device
func ToStringPhysicalDeviceTable(pdProps vk.PhysicalDeviceProperties, qFamilies []vk.QueueFamilyProperties) string {
	strBuilder := strings.Builder{}
	for i := range qFamilies {
		if i == len(qFamilies)-1 {
			strBuilder.WriteString(fmt.Sprintf("|_Qfamily[%d] %s\n", i, toStringQueueFamilyPropsTable(qFamilies[i])))
		} else {
			strBuilder.WriteString(fmt.Sprintf("| Qfamily[%d] %s\n", i, toStringQueueFamilyPropsTable(qFamilies[i])))
		}
	}
	return fmt.Sprintf(
		"%s:\n|_%s\n%s",
		vk.ToString(pdProps.DeviceName[:]),
		toStringPhysicalDevicePropsTable(pdProps),
		strBuilder.String(),
	)
}

// TableStringPhysicalDevices renders one row per physical device, used by the device listing of the CLI.
func TableStringPhysicalDevices(drv Driver, devices []vk.PhysicalDevice) string {
	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle("PHYSICAL DEVICES")
	table.AddRow("Index", "Name", "Type", "Vendor", "API", "Driver", "Queue families")
	table.AddSeparator()
	for i, pd := range devices {
		props := drv.GetPhysicalDeviceProperties(pd)
		qFamilies := drv.GetPhysicalDeviceQueueFamilyProperties(pd)
		families := make([]string, len(qFamilies))
		for j := range qFamilies {
			families[j] = fmt.Sprintf("%d:%s", j, strings.Join(toStringQueueFlagsShort(qFamilies[j].QueueFlags), "|"))
		}
		table.AddRow(
			i,
			vk.ToString(props.DeviceName[:]),
			toStringDeviceType(props.DeviceType),
			asVendorName(vk.VendorId(props.VendorID)),
			vk.Version(props.ApiVersion).String(),
			asDriverVersion(vk.VendorId(props.VendorID), props.DriverVersion),
			strings.Join(families, " "),
		)
	}
	return table.Render()
}

// TableStringMemoryTypes renders the memory type table of a device, the input of every memory type selection.
func TableStringMemoryTypes(pdMemProps vk.PhysicalDeviceMemoryProperties) string {
	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddRow("Type", "Heap", "Heap size", "Properties")
	table.AddSeparator()
	for i := uint32(0); i < pdMemProps.MemoryTypeCount && i < uint32(len(pdMemProps.MemoryTypes)); i++ {
		mt := pdMemProps.MemoryTypes[i]
		heapSize := vk.DeviceSize(0)
		if mt.HeapIndex < uint32(len(pdMemProps.MemoryHeaps)) {
			heapSize = pdMemProps.MemoryHeaps[mt.HeapIndex].Size
		}
		table.AddRow(i, mt.HeapIndex, fmt.Sprintf("%d MiB", heapSize>>20), ToStringMemoryPropertyFlags(mt.PropertyFlags))
	}
	return table.Render()
}

func asVendorName(v vk.VendorId) string {
	// There seem to only be a handful of vendors and Ids as stated in:
	// https://www.reddit.com/r/vulkan/comments/4ta9nj/is_there_a_comprehensive_list_of_the_names_and/
	switch v {
	case 0x1002:
		return "AMD"
	case 0x1010:
		return "ImgTec"
	case 0x10DE:
		return "NVIDIA"
	case 0x13B5:
		return "ARM"
	case 0x5143:
		return "Qualcomm"
	case 0x8086:
		return "INTEL"
	case 0x10005:
		return "Mesa"
	default:
		return "unknown"
	}
}

func asDriverVersion(vendor vk.VendorId, raw uint32) string {
	// Only nvidia and intel on windows are special.
	if vendor == 0x10DE { // NVIDIA
		return nvidiaVer(raw)
	}
	return vk.Version(raw).String()
}

func nvidiaVer(i uint32) string {
	return fmt.Sprintf(
		"%d.%d.%d.%d",
		(i>>22)&0x3ff,
		(i>>14)&0x0ff,
		(i>>6)&0x0ff,
		i&0x003f,
	)
}

func toStringPhysicalDevicePropsTable(pdProps vk.PhysicalDeviceProperties) string {
	return fmt.Sprintf("api: %s, driver: %s, vendorId: %d (%s), deviceId: %d, deviceType: %d (%s)",
		vk.Version(pdProps.ApiVersion).String(),
		asDriverVersion(vk.VendorId(pdProps.VendorID), pdProps.DriverVersion),
		vk.VendorId(pdProps.VendorID),
		asVendorName(vk.VendorId(pdProps.VendorID)),
		pdProps.DeviceID,
		pdProps.DeviceType,
		toStringDeviceType(pdProps.DeviceType),
	)
}

func toStringDeviceType(dt vk.PhysicalDeviceType) string {
	switch dt {
	case 0:
		return "other"
	case 1:
		return "integrated Gpu"
	case 2:
		return "discrete Gpu"
	case 3:
		return "virtual Gpu"
	case 4:
		return "cpu"
	default:
		return "unknown"
	}
}

// ToStringMemoryPropertyFlags lists the set property bits by name, e.g. "DEVICE_LOCAL|HOST_VISIBLE".
func ToStringMemoryPropertyFlags(flags vk.MemoryPropertyFlags) string {
	var names []string
	bits := vk.MemoryPropertyFlagBits(flags)
	if bits&vk.MemoryPropertyDeviceLocalBit > 0 {
		names = append(names, "DEVICE_LOCAL")
	}
	if bits&vk.MemoryPropertyHostVisibleBit > 0 {
		names = append(names, "HOST_VISIBLE")
	}
	if bits&vk.MemoryPropertyHostCoherentBit > 0 {
		names = append(names, "HOST_COHERENT")
	}
	if bits&vk.MemoryPropertyHostCachedBit > 0 {
		names = append(names, "HOST_CACHED")
	}
	if bits&vk.MemoryPropertyLazilyAllocatedBit > 0 {
		names = append(names, "LAZILY_ALLOCATED")
	}
	if bits&vk.MemoryPropertyProtectedBit > 0 {
		names = append(names, "PROTECTED")
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

func toStringMemoryRequirements(mr vk.MemoryRequirements) string {
	return fmt.Sprintf("MemoryRequirements(Size:%d Byte, Alignment:%d Byte, MemTypeBits:[%032b])", mr.Size, mr.Alignment, mr.MemoryTypeBits)
}

// QueueFamilyProperties
func toStringQueueFamilyPropsTable(q vk.QueueFamilyProperties) string {
	return fmt.Sprintf(
		"Count: %2d, Valid ts bits: %d, ImageGranularity: (%d,%d,%d), Flags: %v",
		q.QueueCount,
		q.TimestampValidBits,
		q.MinImageTransferGranularity.Width,
		q.MinImageTransferGranularity.Height,
		q.MinImageTransferGranularity.Depth,
		toStringQueueFlags(q.QueueFlags),
	)
}

// QueueFlags
func toStringQueueFlags(bits vk.QueueFlags) []string {
	var properties []string
	flags := vk.QueueFlagBits(bits)
	if flags&vk.QueueGraphicsBit > 0 {
		properties = append(properties, "VK_QUEUE_GRAPHICS_BIT")
	}
	if flags&vk.QueueComputeBit > 0 {
		properties = append(properties, "VK_QUEUE_COMPUTE_BIT")
	}
	if flags&vk.QueueTransferBit > 0 {
		properties = append(properties, "VK_QUEUE_TRANSFER_BIT")
	}
	if flags&vk.QueueSparseBindingBit > 0 {
		properties = append(properties, "VK_QUEUE_SPARSE_BINDING_BIT")
	}
	if flags&vk.QueueProtectedBit > 0 {
		properties = append(properties, "VK_QUEUE_PROTECTED_BIT")
	}
	return properties
}

func toStringQueueFlagsShort(bits vk.QueueFlags) []string {
	long := toStringQueueFlags(bits)
	short := make([]string, len(long))
	for i := range long {
		short[i] = strings.TrimSuffix(strings.TrimPrefix(long[i], "VK_QUEUE_"), "_BIT")
	}
	return short
}
