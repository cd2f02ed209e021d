package renderer

import (
	"os"
	"path/filepath"
	"testing"

	"offscreen_triangle/common"
	vm "offscreen_triangle/vector_math"
	"offscreen_triangle/vktest"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

var (
	white   = [4]byte{255, 255, 255, 255}
	cleared = [4]byte{0, 0, 64, 255}
)

// testConfig is the default configuration with shader files written to a temporary directory.
func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.VertShaderPath = filepath.Join(dir, "vert.spv")
	cfg.FragShaderPath = filepath.Join(dir, "frag.spv")
	if err := os.WriteFile(cfg.VertShaderPath, vktest.ShaderCode(32), 0o644); err != nil {
		t.Fatalf("Failed to write vertex shader: %v", err)
	}
	if err := os.WriteFile(cfg.FragShaderPath, vktest.ShaderCode(16), 0o644); err != nil {
		t.Fatalf("Failed to write fragment shader: %v", err)
	}
	return cfg
}

func render(t *testing.T, drv *vktest.Driver, cfg Config) *Frame {
	t.Helper()
	core, err := NewCore(drv, nil, cfg)
	if err != nil {
		t.Fatalf("Failed to set up core: %v", err)
	}
	frame, err := core.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	core.Destroy()
	expectClean(t, drv)
	return frame
}

func TestRenderDefaultTriangle(t *testing.T) {
	drv := vktest.NewDriver()
	frame := render(t, drv, testConfig(t))

	if frame.Width != 800 || frame.Height != 600 || len(frame.Pixels) != 800*600*4 {
		t.Fatalf("Unexpected frame %dx%d with %d bytes", frame.Width, frame.Height, len(frame.Pixels))
	}
	if px := frame.At(400, 300); px != white {
		t.Errorf("Center pixel should be white, got %v", px)
	}
	if px := frame.At(10, 10); px != cleared {
		t.Errorf("Corner pixel should be the clear color, got %v", px)
	}
	// Vertex (0, 0.5) lies in the lower half, the top edge runs along y = 150
	if px := frame.At(400, 440); px != white {
		t.Errorf("Pixel near the bottom vertex should be white, got %v", px)
	}
	if px := frame.At(400, 140); px != cleared {
		t.Errorf("Pixel above the top edge should be cleared, got %v", px)
	}
	cx, cy := vm.DefaultTriangle().Centroid().ToPixel(frame.Width, frame.Height)
	if px := frame.At(int(cx), int(cy)); px != white {
		t.Errorf("Centroid pixel (%v,%v) should be white, got %v", cx, cy, px)
	}
	if n := drv.CallCount("QueueSubmit"); n != 3 {
		t.Errorf("Expected upload, draw and copy submissions, got %d", n)
	}
	if drv.CallCount("DeviceWaitIdle") != 1 {
		t.Errorf("Expected one wait for device idle before teardown")
	}
}

func TestRenderSeparateQueueFamilies(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Devices[0].QueueFamilies = []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit), QueueCount: 1},
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 2},
	}
	frame := render(t, drv, testConfig(t))
	if px := frame.At(400, 300); px != white {
		t.Errorf("Center pixel should be white, got %v", px)
	}
	if px := frame.At(10, 10); px != cleared {
		t.Errorf("Corner pixel should be the clear color, got %v", px)
	}
}

func TestRenderCustomTriangleAndExtent(t *testing.T) {
	drv := vktest.NewDriver()
	cfg := testConfig(t)
	cfg.Width, cfg.Height = 64, 32
	cfg.ClearColor = [4]float32{1, 0, 0, 1}
	tri, err := vm.ParseTriangle("-1,-1;1,-1;1,1")
	if err != nil {
		t.Fatalf("Failed to parse triangle: %v", err)
	}
	cfg.Triangle = tri
	frame := render(t, drv, cfg)

	if len(frame.Pixels) != 64*32*4 {
		t.Fatalf("Unexpected pixel count %d", len(frame.Pixels))
	}
	if px := frame.At(62, 1); px != white {
		t.Errorf("Upper right pixel should be covered, got %v", px)
	}
	if px := frame.At(1, 30); px != [4]byte{255, 0, 0, 255} {
		t.Errorf("Lower left pixel should be red, got %v", px)
	}
}

func TestVerifyUpload(t *testing.T) {
	drv := vktest.NewDriver()
	cfg := testConfig(t)
	cfg.VerifyUpload = true
	frame := render(t, drv, cfg)
	if px := frame.At(400, 300); px != white {
		t.Errorf("Center pixel should be white, got %v", px)
	}
	if n := drv.CallCount("QueueSubmit"); n != 4 {
		t.Errorf("Expected an additional read back submission, got %d submissions", n)
	}
	if n := drv.CallCount("CmdCopyBuffer"); n != 1 {
		t.Errorf("Expected one buffer copy, got %d", n)
	}
}

func TestUploadRoundTrip(t *testing.T) {
	drv := vktest.NewDriver()
	core, err := NewCore(drv, nil, testConfig(t))
	if err != nil {
		t.Fatalf("Failed to set up core: %v", err)
	}
	defer core.Destroy()

	tri := vm.Triangle{{Pos: vm.Vec2{X: 0.1, Y: 0.2}}, {Pos: vm.Vec2{X: 0.3, Y: 0.4}}, {Pos: vm.Vec2{X: -0.5, Y: 0.6}}}
	if err := core.UploadVertices(tri); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := core.VerifyUpload(tri); err != nil {
		t.Errorf("Read back differs from upload: %v", err)
	}
	if err := core.VerifyUpload(vm.DefaultTriangle()); err == nil {
		t.Errorf("Verification against a different payload should fail")
	}
}

func TestRenderFenceTimeout(t *testing.T) {
	drv := vktest.NewDriver()
	drv.NeverSignal = true
	core, err := NewCore(drv, nil, testConfig(t))
	if err != nil {
		t.Fatalf("Failed to set up core: %v", err)
	}
	_, err = core.Render()
	if errors.Cause(err) != ErrFenceTimeout {
		t.Errorf("Expected ErrFenceTimeout, got %v", err)
	}
	if drv.Live(vktest.KindFence) != 1 || drv.Pending() != 1 {
		t.Errorf("Timed out upload should keep its fence and pending command buffer, got %d fences, %d pending",
			drv.Live(vktest.KindFence), drv.Pending())
	}
	core.Destroy()
	expectClean(t, drv)
	// The pending work has to retire before its fence and command buffer go
	if idle, fence := lastCall(drv, "DeviceWaitIdle"), lastCall(drv, "DestroyFence"); idle < 0 || fence < idle {
		t.Errorf("Fence destroyed at call %d, before waiting for idle at %d", fence, idle)
	}
}

func TestVerifyUploadTimeoutKeepsReadBackBuffer(t *testing.T) {
	drv := vktest.NewDriver()
	core, err := NewCore(drv, nil, testConfig(t))
	if err != nil {
		t.Fatalf("Failed to set up core: %v", err)
	}
	if err := core.UploadVertices(vm.DefaultTriangle()); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	buffers := drv.Live(vktest.KindBuffer)
	drv.NeverSignal = true
	if err := core.VerifyUpload(vm.DefaultTriangle()); errors.Cause(err) != ErrFenceTimeout {
		t.Errorf("Expected ErrFenceTimeout, got %v", err)
	}
	if n := drv.Live(vktest.KindBuffer); n != buffers+1 {
		t.Errorf("Read back buffer of a pending copy released early, %d buffers alive, want %d", n, buffers+1)
	}
	core.Destroy()
	expectClean(t, drv)
}

func lastCall(drv *vktest.Driver, name string) int {
	for i := len(drv.Calls) - 1; i >= 0; i-- {
		if drv.Calls[i] == name {
			return i
		}
	}
	return -1
}

func TestRenderZeroTimeout(t *testing.T) {
	drv := vktest.NewDriver()
	cfg := testConfig(t)
	cfg.FenceTimeout = 0
	core, err := NewCore(drv, nil, cfg)
	if err != nil {
		t.Fatalf("Failed to set up core: %v", err)
	}
	if _, err := core.Render(); errors.Cause(err) != ErrFenceTimeout {
		t.Errorf("Expected ErrFenceTimeout for a zero timeout, got %v", err)
	}
	core.Destroy()
	expectClean(t, drv)
}

func TestNewCoreWithoutMemoryTypes(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Devices[0].Memory = vktest.MemoryTable()
	_, err := NewCore(drv, nil, testConfig(t))
	if errors.Cause(err) != common.ErrNoMemoryType {
		t.Errorf("Expected ErrNoMemoryType, got %v", err)
	}
	if n := drv.CallCount("AllocateMemory"); n != 0 {
		t.Errorf("AllocateMemory called %d times", n)
	}
	expectClean(t, drv)
}

func TestNewCoreShaderFailureReleasesAll(t *testing.T) {
	drv := vktest.NewDriver()
	drv.Fail["CreateShaderModule"] = errors.New("rejected bytecode")
	_, err := NewCore(drv, nil, testConfig(t))
	if err == nil {
		t.Fatalf("Expected shader module failure to surface")
	}
	// Everything up to the pipeline exists once and is released again
	for kind, want := range map[string]int{
		vktest.KindDevice:      1,
		vktest.KindBuffer:      2,
		vktest.KindImage:       1,
		vktest.KindImageView:   1,
		vktest.KindMemory:      3,
		vktest.KindRenderPass:  1,
		vktest.KindFramebuffer: 1,
		vktest.KindPipeline:    0,
	} {
		if got := drv.Created(kind); got != want {
			t.Errorf("Created %d %s objects, want %d", got, kind, want)
		}
	}
	expectClean(t, drv)
}

func TestNewCoreMissingShaderFile(t *testing.T) {
	drv := vktest.NewDriver()
	cfg := testConfig(t)
	cfg.FragShaderPath = filepath.Join(t.TempDir(), "missing.spv")
	if _, err := NewCore(drv, nil, cfg); err == nil {
		t.Fatalf("Expected missing shader file to fail setup")
	}
	if drv.Created(vktest.KindShaderModule) != 0 {
		t.Errorf("No shader module should be created before both files are read")
	}
	expectClean(t, drv)
}

func TestNewCoreDeviceIndexOutOfRange(t *testing.T) {
	drv := vktest.NewDriver()
	cfg := testConfig(t)
	cfg.DeviceIndex = 3
	if _, err := NewCore(drv, nil, cfg); errors.Cause(err) != common.ErrNoSuitableDevice {
		t.Errorf("Expected ErrNoSuitableDevice, got %v", err)
	}
	expectClean(t, drv)
}
