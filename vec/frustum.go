package vec

// Frustum is a view volume described by the six clip plane distances of
// the near plane rectangle.
type Frustum struct {
	Left   float32
	Right  float32
	Bottom float32
	Top    float32
	Near   float32
	Far    float32
}

// Matrix returns the off-axis perspective projection for this frustum.
func (self Frustum) Matrix() Matrix4 {
	rl := self.Right - self.Left
	tb := self.Top - self.Bottom
	fn := self.Far - self.Near

	var m Matrix4
	m.Set(0, 0, 2*self.Near/rl)
	m.Set(0, 2, (self.Right+self.Left)/rl)
	m.Set(1, 1, 2*self.Near/tb)
	m.Set(1, 2, (self.Top+self.Bottom)/tb)
	m.Set(2, 2, -(self.Far+self.Near)/fn)
	m.Set(2, 3, -2*self.Far*self.Near/fn)
	m.Set(3, 2, -1)
	return m
}

// OrthoMatrix returns the orthographic projection for this frustum.
func (self Frustum) OrthoMatrix() Matrix4 {
	rl := self.Right - self.Left
	tb := self.Top - self.Bottom
	fn := self.Far - self.Near

	var m Matrix4
	m.Set(0, 0, 2/rl)
	m.Set(0, 3, -(self.Right+self.Left)/rl)
	m.Set(1, 1, 2/tb)
	m.Set(1, 3, -(self.Top+self.Bottom)/tb)
	m.Set(2, 2, -2/fn)
	m.Set(2, 3, -(self.Far+self.Near)/fn)
	m.Set(3, 3, 1)
	return m
}

// Width returns the near plane width.
func (self Frustum) Width() float32 {
	return self.Right - self.Left
}

// Height returns the near plane height.
func (self Frustum) Height() float32 {
	return self.Top - self.Bottom
}
