package loader

import (
	"log"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

const SDL_MAJOR, SDL_MINOR, SDL_PATCH = int(sdl.MAJOR_VERSION), int(sdl.MINOR_VERSION), int(sdl.PATCHLEVEL)

const (
	// System resolves vkGetInstanceProcAddr from the platform's Vulkan loader library.
	System = "system"
	// SDL lets SDL locate and load the Vulkan library. It needs a working video subsystem.
	SDL = "sdl"
)

// Init finds and loads the Vulkan entry points to be able to call driver level functions. The returned release
// function unloads whatever Init loaded and has to be called after the last instance was destroyed.
func Init(kind string) (func(), error) {
	switch kind {
	case System:
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "failed to locate the Vulkan loader library")
		}
		if err := vk.Init(); err != nil {
			return nil, errors.Wrap(err, "failed to initialize Vulkan API")
		}
		log.Println("Initialized Vulkan through the system loader")
		return func() {}, nil
	case SDL:
		return initSDL()
	default:
		return nil, errors.Errorf("unknown Vulkan loader %q, expected %q or %q", kind, System, SDL)
	}
}

func initSDL() (func(), error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "failed to initialize SDL")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "SDL failed to load the Vulkan library")
	}
	release := func() {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
	}
	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err := vk.Init(); err != nil {
		release()
		return nil, errors.Wrap(err, "failed to initialize Vulkan API")
	}
	log.Printf("Initialized Vulkan through SDL v%d.%d.%d", SDL_MAJOR, SDL_MINOR, SDL_PATCH)
	return release, nil
}
