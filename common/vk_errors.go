package common

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

var (
	// ErrNoSuitableDevice is returned when the requested physical device does not exist or lacks graphics and
	// transfer capable queue families.
	ErrNoSuitableDevice = errors.New("no suitable physical device")
	// ErrNoMemoryType is returned when no memory type of the device satisfies both the resource's type bits and
	// the requested property flags.
	ErrNoMemoryType = errors.New("no suitable memory type")
)

// VkResultError converts a non successful vk.Result into an error that names the failed operation. It returns
// nil for vk.Success.
func VkResultError(op string, res vk.Result) error {
	if res == vk.Success {
		return nil
	}
	err := vk.Error(res)
	if err == nil {
		err = errors.Errorf("vulkan result %d", res)
	}
	return errors.Wrapf(err, "%s failed (%d)", op, res)
}
