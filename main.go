package main

import (
	"flag"
	"image"
	"log"
	"math"
	"os"
	"runtime"
	"time"

	"offscreen_triangle/bitmap"
	"offscreen_triangle/common"
	"offscreen_triangle/loader"
	"offscreen_triangle/renderer"
	vm "offscreen_triangle/vector_math"

	"github.com/pkg/errors"
	"github.com/xlab/closer"
)

const PROGRAM_NAME = "Offscreen triangle"

var (
	deviceIndex  = flag.Int("device", 0, "index of the physical device to render on")
	width        = flag.Uint("width", uint(renderer.FRAME_WIDTH), "width of the rendered frame in pixels")
	height       = flag.Uint("height", uint(renderer.FRAME_HEIGHT), "height of the rendered frame in pixels")
	outPath      = flag.String("out", "outimage.bmp", "output image, overwritten if it exists")
	outFormat    = flag.String("format", "", "output format, bmp or ppm (default: derived from -out)")
	vertPath     = flag.String("vert", "shaders/vert.spv", "SPIR-V vertex shader")
	fragPath     = flag.String("frag", "shaders/frag.spv", "SPIR-V fragment shader")
	triangle     = flag.String("triangle", "", "triangle in NDC as \"x,y;x,y;x,y\" (default: fixed triangle)")
	timeout      = flag.Duration("timeout", time.Duration(renderer.DEFAULT_FENCE_TIMEOUT), "limit for every wait on submitted work")
	validate     = flag.Bool("validate", common.ENABLE_VALIDATION, "enable the Khronos validation layer and debug report logging")
	loaderKind   = flag.String("loader", loader.System, "how to load Vulkan: system or sdl")
	listDevices  = flag.Bool("list-devices", false, "list the available physical devices and exit")
	verifyUpload = flag.Bool("verify-upload", false, "read the vertex buffer back and compare it with the uploaded vertices")
	comparePath  = flag.String("compare", "", "reference image the result has to match")
	tolerance    = flag.Uint("tolerance", 0, "allowed per channel difference when comparing against -compare")
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)
	log.Printf("Starting %s", PROGRAM_NAME)
	log.Printf("Using GoLang: [%s]", runtime.Version())
}

func main() {
	flag.Parse()
	defer closer.Close()

	cfg, err := configFromFlags()
	if err != nil {
		closer.Fatalln(err)
	}
	format := *outFormat
	if format == "" {
		format = bitmap.FormatOf(*outPath)
	}

	releaseLoader, err := loader.Init(*loaderKind)
	if err != nil {
		closer.Fatalln(err)
	}
	closer.Bind(releaseLoader)

	instance, err := common.NewInstance(*validate)
	if err != nil {
		closer.Fatalln(err)
	}
	closer.Bind(instance.Destroy)

	drv := common.VkDriver{}
	if *listDevices {
		if err := printDevices(drv, instance); err != nil {
			closer.Fatalln(err)
		}
		return
	}

	core, err := renderer.NewCore(drv, instance.Handle, cfg)
	if err != nil {
		closer.Fatalln(err)
	}
	closer.Bind(core.Destroy)

	frame, err := core.Render()
	if err != nil {
		closer.Fatalln(err)
	}
	img, err := bitmap.FromPixels(int(frame.Width), int(frame.Height), frame.Pixels)
	if err != nil {
		closer.Fatalln(err)
	}
	if err := bitmap.WriteFile(*outPath, img, format); err != nil {
		closer.Fatalln(err)
	}

	if *comparePath != "" {
		if err := compareWithReference(*comparePath, img); err != nil {
			closer.Fatalln(err)
		}
	}
}

func configFromFlags() (renderer.Config, error) {
	cfg := renderer.DefaultConfig()
	if *width > math.MaxUint32 || *height > math.MaxUint32 {
		return cfg, errors.Errorf("frame extent %dx%d exceeds %d", *width, *height, uint32(math.MaxUint32))
	}
	cfg.DeviceIndex = *deviceIndex
	cfg.Width, cfg.Height = uint32(*width), uint32(*height)
	cfg.VertShaderPath = *vertPath
	cfg.FragShaderPath = *fragPath
	cfg.FenceTimeout = uint64(*timeout)
	cfg.VerifyUpload = *verifyUpload
	if *timeout < 0 {
		return cfg, errors.Errorf("negative timeout %v", *timeout)
	}
	if *triangle != "" {
		t, err := vm.ParseTriangle(*triangle)
		if err != nil {
			return cfg, errors.Wrap(err, "invalid -triangle")
		}
		cfg.Triangle = t
	}
	if *tolerance > 255 {
		return cfg, errors.Errorf("tolerance %d exceeds 255", *tolerance)
	}
	return cfg, nil
}

func printDevices(drv common.Driver, instance *common.Instance) error {
	devices, err := drv.EnumeratePhysicalDevices(instance.Handle)
	if err != nil {
		return errors.Wrap(err, "failed to enumerate physical devices")
	}
	log.Printf("%d physical device(s) available\n%s", len(devices), common.TableStringPhysicalDevices(drv, devices))
	return nil
}

func compareWithReference(path string, img *image.NRGBA) error {
	ref, err := bitmap.ReadFile(path)
	if err != nil {
		return err
	}
	mismatches, err := bitmap.Compare(ref, img, uint8(*tolerance))
	if err != nil {
		return err
	}
	if mismatches > 0 {
		return errors.Errorf("%d pixels differ from %s by more than %d", mismatches, path, *tolerance)
	}
	log.Printf("Result matches reference %s", path)
	return nil
}
