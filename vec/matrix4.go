package vec

// Matrix4 is a 4x4 float32 matrix stored column-major, transforming
// column vectors on the right: M*v.
type Matrix4 [16]float32

func Identity4() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func (self Matrix4) At(row int, col int) float32 {
	return self[col*4+row]
}

func (self *Matrix4) Set(row int, col int, v float32) {
	self[col*4+row] = v
}

func (self Matrix4) Mul(other Matrix4) Matrix4 {
	var out Matrix4
	for row := 0; row < 4; row += 1 {
		for col := 0; col < 4; col += 1 {
			var sum float32
			for k := 0; k < 4; k += 1 {
				sum += self.At(row, k) * other.At(k, col)
			}
			out.Set(row, col, sum)
		}
	}
	return out
}

func (self Matrix4) MulVector4(v Vector4) Vector4 {
	return Vector4{
		X: self.At(0, 0)*v.X + self.At(0, 1)*v.Y + self.At(0, 2)*v.Z + self.At(0, 3)*v.W,
		Y: self.At(1, 0)*v.X + self.At(1, 1)*v.Y + self.At(1, 2)*v.Z + self.At(1, 3)*v.W,
		Z: self.At(2, 0)*v.X + self.At(2, 1)*v.Y + self.At(2, 2)*v.Z + self.At(2, 3)*v.W,
		W: self.At(3, 0)*v.X + self.At(3, 1)*v.Y + self.At(3, 2)*v.Z + self.At(3, 3)*v.W,
	}
}

// TransformPoint applies the matrix to a point, w = 1.
func (self Matrix4) TransformPoint(p Vector3) Vector3 {
	return self.MulVector4(Vector4{X: p.X, Y: p.Y, Z: p.Z, W: 1}).XYZ()
}

// TransformVector applies the matrix to a direction, w = 0.
func (self Matrix4) TransformVector(v Vector3) Vector3 {
	return self.MulVector4(Vector4{X: v.X, Y: v.Y, Z: v.Z}).XYZ()
}

func (self Matrix4) Transposed() Matrix4 {
	var out Matrix4
	for row := 0; row < 4; row += 1 {
		for col := 0; col < 4; col += 1 {
			out.Set(row, col, self.At(col, row))
		}
	}
	return out
}

// Inverse returns the inverse by cofactor expansion. Singular matrices
// return the identity and false.
func (self Matrix4) Inverse() (Matrix4, bool) {
	m := self
	var inv Matrix4

	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] +
		m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] -
		m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] +
		m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] -
		m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] -
		m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] +
		m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] -
		m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] +
		m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] +
		m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] -
		m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] +
		m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] -
		m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] -
		m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] +
		m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] -
		m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] +
		m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det == 0 {
		return Identity4(), false
	}

	invDet := 1 / det
	for i := range inv {
		inv[i] *= invDet
	}
	return inv, true
}
