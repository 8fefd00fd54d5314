package fisheye

import "math"

// rodrigues converts a rotation vector into a rotation matrix
func rodrigues(r [3]float64) [3][3]float64 {
	theta := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	if theta < 1e-12 {
		// First order: I + [r]x
		return [3][3]float64{
			{1, -r[2], r[1]},
			{r[2], 1, -r[0]},
			{-r[1], r[0], 1},
		}
	}

	kx, ky, kz := r[0]/theta, r[1]/theta, r[2]/theta
	c := math.Cos(theta)
	s := math.Sin(theta)
	v := 1 - c

	return [3][3]float64{
		{c + kx*kx*v, kx*ky*v - kz*s, kx*kz*v + ky*s},
		{ky*kx*v + kz*s, c + ky*ky*v, ky*kz*v - kx*s},
		{kz*kx*v - ky*s, kz*ky*v + kx*s, c + kz*kz*v},
	}
}

// rotationVector converts a proper rotation matrix back to axis * angle
func rotationVector(m [3][3]float64) [3]float64 {
	trace := m[0][0] + m[1][1] + m[2][2]
	cosTheta := math.Min(math.Max((trace-1)/2, -1), 1)
	theta := math.Acos(cosTheta)

	w := [3]float64{
		m[2][1] - m[1][2],
		m[0][2] - m[2][0],
		m[1][0] - m[0][1],
	}

	switch {
	case theta < 1e-12:
		return [3]float64{w[0] / 2, w[1] / 2, w[2] / 2}
	case math.Pi-theta < 1e-6:
		// Near pi the antisymmetric part vanishes: (R + I) / 2 = k k^T
		var b [3][3]float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				b[i][j] = (m[i][j] + m[j][i]) / 4
			}
			b[i][i] += 0.5
		}
		p := 0
		for i := 1; i < 3; i++ {
			if b[i][i] > b[p][p] {
				p = i
			}
		}
		kp := math.Sqrt(b[p][p])
		var axis [3]float64
		for i := 0; i < 3; i++ {
			axis[i] = b[p][i] / kp
		}
		return [3]float64{axis[0] * theta, axis[1] * theta, axis[2] * theta}
	default:
		k := theta / (2 * math.Sin(theta))
		return [3]float64{w[0] * k, w[1] * k, w[2] * k}
	}
}

func apply(m [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

func mul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
