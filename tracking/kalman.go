package tracking

import (
	"gonum.org/v1/gonum/mat"
)

// KalmanFilter is a constant-velocity filter over a box center.
// State is [x, y, vx, vy]; one step is one processed frame.
type KalmanFilter struct {
	x *mat.VecDense
	P *mat.Dense
	Q *mat.Dense
	R *mat.Dense
	F *mat.Dense
	H *mat.Dense

	initialized bool
}

// NewKalmanFilter creates a filter with the given process and measurement noise
func NewKalmanFilter(processNoise, measurementNoise float64) *KalmanFilter {
	q := processNoise
	kf := &KalmanFilter{
		x: mat.NewVecDense(4, nil),
		F: mat.NewDense(4, 4, []float64{
			1, 0, 1, 0,
			0, 1, 0, 1,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}),
		H: mat.NewDense(2, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
		}),
		// discrete white-noise acceleration model with dt = 1
		Q: mat.NewDense(4, 4, []float64{
			q / 4, 0, q / 2, 0,
			0, q / 4, 0, q / 2,
			q / 2, 0, q, 0,
			0, q / 2, 0, q,
		}),
		R: mat.NewDense(2, 2, []float64{
			measurementNoise, 0,
			0, measurementNoise,
		}),
	}
	kf.resetCovariance()
	return kf
}

func (kf *KalmanFilter) resetCovariance() {
	kf.P = mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		kf.P.Set(i, i, 1000.0) // high initial uncertainty
	}
}

// Predict advances the state one frame and returns the predicted position
func (kf *KalmanFilter) Predict() (float64, float64) {
	if !kf.initialized {
		return 0, 0
	}

	var x mat.VecDense
	x.MulVec(kf.F, kf.x)
	kf.x = &x

	var fp, p mat.Dense
	fp.Mul(kf.F, kf.P)
	p.Mul(&fp, kf.F.T())
	p.Add(&p, kf.Q)
	kf.P = &p

	return kf.x.AtVec(0), kf.x.AtVec(1)
}

// Update corrects the state with a measured position and returns the estimate
func (kf *KalmanFilter) Update(x, y float64) (float64, float64) {
	if !kf.initialized {
		kf.x = mat.NewVecDense(4, []float64{x, y, 0, 0})
		kf.initialized = true
		return x, y
	}

	z := mat.NewVecDense(2, []float64{x, y})

	var hx, innovation mat.VecDense
	hx.MulVec(kf.H, kf.x)
	innovation.SubVec(z, &hx)

	// S = H P H' + R
	var pht, s mat.Dense
	pht.Mul(kf.P, kf.H.T())
	s.Mul(kf.H, &pht)
	s.Add(&s, kf.R)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// singular innovation covariance: trust the measurement
		kf.x.SetVec(0, x)
		kf.x.SetVec(1, y)
		return x, y
	}

	// K = P H' S^-1
	var k mat.Dense
	k.Mul(&pht, &sInv)

	var dx, nx mat.VecDense
	dx.MulVec(&k, &innovation)
	nx.AddVec(kf.x, &dx)
	kf.x = &nx

	// P = (I - K H) P
	var kh, ikh, p mat.Dense
	kh.Mul(&k, kf.H)
	ikh.Sub(identity4(), &kh)
	p.Mul(&ikh, kf.P)
	kf.P = &p

	return kf.x.AtVec(0), kf.x.AtVec(1)
}

// Position returns the current position estimate
func (kf *KalmanFilter) Position() (float64, float64) {
	if !kf.initialized {
		return 0, 0
	}
	return kf.x.AtVec(0), kf.x.AtVec(1)
}

// Velocity returns the current velocity estimate in pixels per frame
func (kf *KalmanFilter) Velocity() (float64, float64) {
	if !kf.initialized {
		return 0, 0
	}
	return kf.x.AtVec(2), kf.x.AtVec(3)
}

// Reset resets the Kalman filter
func (kf *KalmanFilter) Reset() {
	kf.initialized = false
	kf.x = mat.NewVecDense(4, nil)
	kf.resetCovariance()
}

func identity4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}
