package common

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

type QueueFamilyIndices struct {
	GraphicsFamily *uint32
	TransferFamily *uint32
}

// findQueueFamilies picks the first graphics capable family and the first family advertising transfer support.
// Graphics families implicitly support transfer operations, so the graphics family is used when no family sets the
// transfer bit explicitly.
func findQueueFamilies(qFamilies []vk.QueueFamilyProperties) (*QueueFamilyIndices, error) {
	indices := &QueueFamilyIndices{
		GraphicsFamily: nil,
		TransferFamily: nil,
	}
	for i := range qFamilies {
		if qFamilies[i].QueueCount == 0 {
			continue
		}
		if indices.GraphicsFamily == nil && isBitSet(qFamilies[i], vk.QueueGraphicsBit) {
			indices.GraphicsFamily = new(uint32)
			*indices.GraphicsFamily = uint32(i)
		}
		if indices.TransferFamily == nil && isBitSet(qFamilies[i], vk.QueueTransferBit) {
			indices.TransferFamily = new(uint32)
			*indices.TransferFamily = uint32(i)
		}
		if indices.isAllQueuesFound() {
			break
		}
	}
	if indices.GraphicsFamily == nil {
		return nil, errors.New("unable to find graphics capable queue family")
	}
	if indices.TransferFamily == nil {
		indices.TransferFamily = new(uint32)
		*indices.TransferFamily = *indices.GraphicsFamily
	}
	return indices, nil
}

func isBitSet(qFamily vk.QueueFamilyProperties, bit vk.QueueFlagBits) bool {
	return vk.QueueFlagBits(qFamily.QueueFlags)&bit > 0
}

func (q *QueueFamilyIndices) isAllQueuesFound() bool {
	return q.GraphicsFamily != nil && q.TransferFamily != nil
}

// UniqueFamilies lists the distinct family indices in the order graphics, transfer.
func (q *QueueFamilyIndices) UniqueFamilies() []uint32 {
	var uniqIndices []uint32
	if q.GraphicsFamily != nil && !inList(*q.GraphicsFamily, uniqIndices) {
		uniqIndices = append(uniqIndices, *q.GraphicsFamily)
	}
	if q.TransferFamily != nil && !inList(*q.TransferFamily, uniqIndices) {
		uniqIndices = append(uniqIndices, *q.TransferFamily)
	}
	return uniqIndices
}

func (q *QueueFamilyIndices) toQueueCreateInfos() []vk.DeviceQueueCreateInfo {
	uniqIndices := q.UniqueFamilies()
	infos := make([]vk.DeviceQueueCreateInfo, len(uniqIndices))
	for i := range uniqIndices {
		infos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			PNext:            nil,
			Flags:            0,
			QueueFamilyIndex: uniqIndices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}
	return infos
}

func inList(e uint32, l []uint32) bool {
	for i := range l {
		if l[i] == e {
			return true
		}
	}
	return false
}
