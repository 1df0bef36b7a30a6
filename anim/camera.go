package anim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/framewire/framewire/vec"
)

// Step is one camera key: absolute frame number, camera translation and
// rotation in degrees.
type Step struct {
	Frame       int
	Translation vec.Vector3
	Rotation    vec.Vector3
}

// CameraAnimation replays a sequence of camera keys, interpolating them
// linearly on a per-frame basis and wrapping at the end.
//
// The text format is one statement per line, # starts a comment. The
// first statement may be the static model rotation (3 floats); every
// other line is a key: frame number, translation xyz, rotation xyz.
type CameraAnimation struct {
	modelRotation vec.Vector3
	steps         []Step
	curStep       int
	curFrame      int
}

func LoadCameraAnimation(path string) (*CameraAnimation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCameraAnimation(f)
}

func ParseCameraAnimation(r io.Reader) (*CameraAnimation, error) {
	animation := &CameraAnimation{}

	scanner := bufio.NewScanner(r)
	line := 0
	haveRotation := false
	for scanner.Scan() {
		line += 1
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		if !haveRotation {
			haveRotation = true
			if len(fields) != 7 {
				if len(fields) != 3 {
					return nil, fmt.Errorf(
						"line %d: model rotation needs 3 values, got %d",
						line, len(fields),
					)
				}
				rotation, err := parseVector3(fields)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				animation.modelRotation = rotation
				continue
			}
		}

		if len(fields) != 7 {
			return nil, fmt.Errorf(
				"line %d: camera step needs 7 values, got %d",
				line, len(fields),
			)
		}
		frame, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		translation, err := parseVector3(fields[1:4])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rotation, err := parseVector3(fields[4:7])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(animation.steps); n > 0 && frame <= animation.steps[n-1].Frame {
			return nil, fmt.Errorf(
				"line %d: frame %d not after previous key", line, frame,
			)
		}
		animation.steps = append(animation.steps, Step{
			Frame:       frame,
			Translation: translation,
			Rotation:    rotation,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return animation, nil
}

func parseVector3(fields []string) (vec.Vector3, error) {
	var values [3]float32
	for i, field := range fields[:3] {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return vec.Vector3{}, err
		}
		values[i] = float32(v)
	}
	return vec.V3(values[0], values[1], values[2]), nil
}

func (self *CameraAnimation) IsValid() bool {
	return len(self.steps) != 0
}

func (self *CameraAnimation) ModelRotation() vec.Vector3 {
	return self.modelRotation
}

// NextStep advances one frame and returns the interpolated camera key.
func (self *CameraAnimation) NextStep() Step {
	if len(self.steps) == 0 {
		return Step{Translation: vec.V3(0, 0, -1)}
	}

	self.curFrame += 1
	if self.curFrame > self.steps[len(self.steps)-1].Frame {
		self.curFrame = self.steps[0].Frame
		self.curStep = 0
	}
	for self.curStep+1 < len(self.steps) &&
		self.steps[self.curStep+1].Frame < self.curFrame {
		self.curStep += 1
	}

	from := self.steps[self.curStep]
	if self.curStep+1 == len(self.steps) {
		return Step{
			Frame:       self.curFrame,
			Translation: from.Translation,
			Rotation:    from.Rotation,
		}
	}

	to := self.steps[self.curStep+1]
	fraction := float32(self.curFrame-from.Frame) / float32(to.Frame-from.Frame)
	return Step{
		Frame:       self.curFrame,
		Translation: lerp(from.Translation, to.Translation, fraction),
		Rotation:    lerp(from.Rotation, to.Rotation, fraction),
	}
}

func lerp(a vec.Vector3, b vec.Vector3, t float32) vec.Vector3 {
	return a.Add(b.Sub(a).MulScalar(t))
}
