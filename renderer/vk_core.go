package renderer

import (
	"bytes"
	"log"

	"offscreen_triangle/common"
	vm "offscreen_triangle/vector_math"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const FRAME_WIDTH, FRAME_HEIGHT uint32 = 800, 600

// FRAMEBUFFER_FORMAT is the format of the offscreen image and therefore of the read back pixels: 4 bytes per
// pixel in R, G, B, A order.
const FRAMEBUFFER_FORMAT = vk.FormatR8g8b8a8Unorm

const BYTES_PER_PIXEL = 4

// Inline buffer updates are limited to this many bytes
const MAX_UPDATE_SIZE = 65536

var DEFAULT_CLEAR_COLOR = [4]float32{0.0, 0.0, 0.25, 1.0}

// Config holds everything a single offscreen render can be parameterized with.
type Config struct {
	DeviceIndex    int
	Width, Height  uint32
	VertShaderPath string
	FragShaderPath string
	ClearColor     [4]float32
	Triangle       vm.Triangle
	// FenceTimeout is the wait limit of every execution in nanoseconds
	FenceTimeout uint64
	VerifyUpload bool
}

// DefaultConfig renders the fixed triangle on device 0 into an 800x600 frame.
func DefaultConfig() Config {
	return Config{
		DeviceIndex:    0,
		Width:          FRAME_WIDTH,
		Height:         FRAME_HEIGHT,
		VertShaderPath: "shaders/vert.spv",
		FragShaderPath: "shaders/frag.spv",
		ClearColor:     DEFAULT_CLEAR_COLOR,
		Triangle:       vm.DefaultTriangle(),
		FenceTimeout:   DEFAULT_FENCE_TIMEOUT,
		VerifyUpload:   false,
	}
}

// Frame is the result of one render: row-major pixels without padding in FRAMEBUFFER_FORMAT.
type Frame struct {
	Width, Height uint32
	Pixels        []byte
}

// At returns the 4 bytes of the pixel at x, y.
func (f *Frame) At(x, y int) [4]byte {
	i := (y*int(f.Width) + x) * BYTES_PER_PIXEL
	return [4]byte{f.Pixels[i], f.Pixels[i+1], f.Pixels[i+2], f.Pixels[i+3]}
}

// Core owns every object needed to render the triangle once. All of it is created by NewCore and released by
// Destroy.
type Core struct {
	cfg      Config
	device   *common.Device
	executor *Executor

	// Data level
	vertexBuffer  *common.Buffer
	stagingBuffer *common.Buffer

	// Drawing infrastructure level
	target   *OffscreenTarget
	pipeline *Pipeline

	teardown common.Teardown
}

// NewCore acquires the device and builds the vertex buffer, the offscreen target, the staging buffer and the
// pipeline. If any step fails everything created before is released and the error is returned.
func NewCore(drv common.Driver, instance vk.Instance, cfg Config) (*Core, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, errors.Errorf("invalid frame extent %dx%d", cfg.Width, cfg.Height)
	}
	c := &Core{cfg: cfg}
	if err := c.initialize(drv, instance); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func (c *Core) initialize(drv common.Driver, instance vk.Instance) error {
	dc, err := common.AcquireDevice(drv, instance, c.cfg.DeviceIndex)
	if err != nil {
		return err
	}
	c.device = dc
	c.teardown.Push("device", dc.Destroy)
	c.executor = NewExecutor(dc, c.cfg.FenceTimeout)
	c.teardown.Push("unfinished executions", c.executor.Reclaim)

	if err := c.createVertexBuffer(); err != nil {
		return err
	}
	extent := vk.Extent2D{Width: c.cfg.Width, Height: c.cfg.Height}
	target, err := BuildTarget(dc, extent, FRAMEBUFFER_FORMAT)
	if err != nil {
		return err
	}
	c.target = target
	c.teardown.Push("offscreen target", func() { target.Destroy(dc) })

	if err := c.createStagingBuffer(); err != nil {
		return err
	}
	return c.createGraphicsPipeline()
}

func (c *Core) createVertexBuffer() error {
	size := c.cfg.Triangle.ByteSize()
	vbo, err := common.CreateBuffer(c.device, vk.DeviceSize(size),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit|vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return errors.Wrap(err, "failed to create vertex buffer")
	}
	c.vertexBuffer = vbo
	c.teardown.Push("vertex buffer", func() { vbo.Destroy(c.device) })
	return nil
}

func (c *Core) createStagingBuffer() error {
	size := vk.DeviceSize(c.cfg.Width) * vk.DeviceSize(c.cfg.Height) * BYTES_PER_PIXEL
	staging, err := common.CreateBuffer(c.device, size,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return errors.Wrap(err, "failed to create staging buffer")
	}
	c.stagingBuffer = staging
	c.teardown.Push("staging buffer", func() { staging.Destroy(c.device) })
	return nil
}

func (c *Core) createGraphicsPipeline() error {
	vertCode, err := ReadShaderCode(c.cfg.VertShaderPath)
	if err != nil {
		return err
	}
	fragCode, err := ReadShaderCode(c.cfg.FragShaderPath)
	if err != nil {
		return err
	}
	pipeline, err := BuildPipeline(c.device.Driver(), c.device.D, c.target.RenderPass, c.target.Extent, vertCode, fragCode)
	if err != nil {
		return err
	}
	c.pipeline = pipeline
	c.teardown.Push("graphics pipeline", func() { pipeline.Destroy(c.device.Driver(), c.device.D) })
	return nil
}

// Render uploads the triangle, optionally verifies the upload, draws into the offscreen image, copies the image
// into the staging buffer and returns its content.
func (c *Core) Render() (*Frame, error) {
	if err := c.UploadVertices(c.cfg.Triangle); err != nil {
		return nil, err
	}
	if c.cfg.VerifyUpload {
		if err := c.VerifyUpload(c.cfg.Triangle); err != nil {
			return nil, err
		}
	}
	if err := c.Draw(); err != nil {
		return nil, err
	}
	if err := c.CopyToStaging(); err != nil {
		return nil, err
	}
	return c.ReadFrame()
}

// UploadVertices writes the vertex payload into the device local vertex buffer. The graphics pool and queue are
// used so no ownership transfer is needed before drawing.
func (c *Core) UploadVertices(t vm.Triangle) error {
	payload := t.Bytes()
	if len(payload) > MAX_UPDATE_SIZE || len(payload)%4 != 0 {
		return errors.Errorf("vertex payload of %d bytes can not be updated inline", len(payload))
	}
	if vk.DeviceSize(len(payload)) > c.vertexBuffer.Size {
		return errors.Errorf("vertex payload of %d bytes exceeds vertex buffer of %d bytes", len(payload), c.vertexBuffer.Size)
	}
	if t.SignedArea() == 0 {
		log.Printf("Triangle %v is degenerate, nothing will be rasterized", t)
	}
	log.Printf("Uploading triangle %v centered at %v (%d bytes)", t, t.Centroid(), len(payload))
	err := c.executor.RunOnce(c.device.GraphicsPool(), c.device.GraphicsQ,
		RecordUpdateBuffer(c.device.Driver(), c.vertexBuffer.Handle, 0, payload))
	return errors.Wrap(err, "vertex upload")
}

// VerifyUpload copies the vertex buffer into a temporary host visible buffer and compares it with the payload of t.
func (c *Core) VerifyUpload(t vm.Triangle) error {
	payload := t.Bytes()
	size := vk.DeviceSize(len(payload))
	readback, err := common.CreateBuffer(c.device, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return errors.Wrap(err, "failed to create read back buffer")
	}

	err = c.executor.RunOnce(c.device.TransferPool(), c.device.TransferQ,
		RecordCopyBuffer(c.device.Driver(), c.vertexBuffer.Handle, readback.Handle, size))
	if err != nil {
		// The copy may still be pending, the buffer goes once the device is idle
		c.teardown.Push("read back buffer", func() { readback.Destroy(c.device) })
		return errors.Wrap(err, "vertex read back")
	}
	defer readback.Destroy(c.device)
	got, err := common.ReadHostBuffer(c.device, readback, size)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, payload) {
		return errors.Errorf("vertex buffer content %v does not match uploaded payload %v", got, payload)
	}
	log.Println("Vertex upload verified")
	return nil
}

// Draw clears the offscreen image and draws the triangle. The image ends up in TransferSrcOptimal layout.
func (c *Core) Draw() error {
	err := c.executor.RunOnce(c.device.GraphicsPool(), c.device.GraphicsQ,
		RecordDraw(c.device.Driver(), c.target, c.pipeline, c.vertexBuffer.Handle, c.cfg.ClearColor))
	return errors.Wrap(err, "draw")
}

// CopyToStaging copies the offscreen image into the host visible staging buffer on the transfer queue.
func (c *Core) CopyToStaging() error {
	err := c.executor.RunOnce(c.device.TransferPool(), c.device.TransferQ,
		RecordCopyImageToBuffer(c.device.Driver(), c.target.Image, c.stagingBuffer.Handle))
	return errors.Wrap(err, "image copy")
}

// ReadFrame maps the staging buffer and copies out all pixels.
func (c *Core) ReadFrame() (*Frame, error) {
	pixels, err := common.ReadHostBuffer(c.device, c.stagingBuffer, c.stagingBuffer.Size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read staging buffer")
	}
	log.Printf("Read back %d bytes of pixel data", len(pixels))
	return &Frame{Width: c.cfg.Width, Height: c.cfg.Height, Pixels: pixels}, nil
}

// Destroy waits for the device to become idle and releases everything in reverse creation order, including
// executions left behind by a failed fence wait. It is safe to call on a partially initialized Core.
func (c *Core) Destroy() {
	if c.device != nil && c.teardown.Len() > 0 {
		if err := c.device.WaitIdle(); err != nil {
			log.Printf("Waiting for device idle failed: %v", err)
		}
	}
	c.teardown.Release()
}
