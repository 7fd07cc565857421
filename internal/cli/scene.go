package cli

import (
	"math"

	"github.com/gogpu/reproject/backend/software"
	"github.com/gogpu/reproject/warp"
)

const (
	sceneFOV      = math.Pi / 2
	sceneNear     = 1
	sceneFar      = 100
	sceneDistance = 10 // view distance of the depth plane
	sceneStripes  = 24 // stripes around the full turn
)

// scene is a camera turning in place inside a striped cylinder. Every tick
// renders a source frame and its motion-depth buffer as a host pipeline
// would.
type scene struct {
	width, height int
	yawRate       float64 // rad/s
	projection    warp.Mat4
	depth         float32

	yaw float64
}

func newScene(width, height int, yawRate float64) *scene {
	proj := warp.Perspective(sceneFOV, float64(width)/float64(height), sceneNear, sceneFar)
	p := proj.MulVec4(warp.Vec4{Z: -sceneDistance, W: 1})
	return &scene{
		width:      width,
		height:     height,
		yawRate:    yawRate,
		projection: proj,
		depth:      float32(p.Z / p.W),
	}
}

// camera returns the camera at the current yaw.
func (s *scene) camera() warp.Camera {
	return warp.Camera{
		View:       warp.RotationY(s.yaw),
		Projection: s.projection,
	}
}

// render draws the stripes seen from the current yaw into src and writes the
// motion of the last dt seconds into md.
func (s *scene) render(src, md *software.Image, dt float64) {
	pose := s.camera().Pose()
	tanY := math.Tan(sceneFOV / 2)
	aspect := float64(s.width) / float64(s.height)
	hfov := 2 * math.Atan(tanY*aspect)
	du := float32(-s.yawRate * dt / hfov)

	for y := 0; y < s.height; y++ {
		ny := 1 - 2*(float64(y)+0.5)/float64(s.height)
		for x := 0; x < s.width; x++ {
			nx := 2*(float64(x)+0.5)/float64(s.width) - 1
			ray := warp.Vec4{X: nx * tanY * aspect, Y: ny * tanY, Z: -1}
			dir := pose.InverseView.MulVec4(ray)
			src.SetPixel(x, y, stripe(math.Atan2(dir.X, -dir.Z), ny))
			md.SetPixel(x, y, [4]float32{du, 0, s.depth, 0})
		}
	}
}

// advance turns the camera by dt seconds.
func (s *scene) advance(dt float64) { s.yaw += s.yawRate * dt }

func stripe(azimuth, ny float64) [4]float32 {
	i := int(math.Floor((azimuth + math.Pi) / (2 * math.Pi) * sceneStripes))
	shade := float32(0.5 + 0.4*ny)
	if i%2 == 0 {
		return [4]float32{0.9, shade, 0.2, 1}
	}
	return [4]float32{0.1, shade, 0.8, 1}
}
