package sequence

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type activation func(float64) float64

var activations = map[string]activation{
	"":             func(v float64) float64 { return v },
	"linear":       func(v float64) float64 { return v },
	"tanh":         math.Tanh,
	"sigmoid":      func(v float64) float64 { return 1 / (1 + math.Exp(-v)) },
	"hard_sigmoid": func(v float64) float64 { return math.Max(0, math.Min(1, 0.2*v+0.5)) },
	"relu":         func(v float64) float64 { return math.Max(0, v) },
}

func lookupActivation(name, fallback string) (activation, error) {
	if name == "" {
		name = fallback
	}
	fn, ok := activations[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
	return fn, nil
}

// lstm follows the Keras weight layout: kernel (in x 4u), recurrent_kernel
// (u x 4u), bias (4u), gates ordered input, forget, cell, output.
type lstm struct {
	units           int
	in              int
	kernel          *mat.Dense
	recurrent       *mat.Dense
	bias            *mat.VecDense
	act             activation
	recAct          activation
	returnSequences bool
}

func newLSTM(a layerArtifact) (*lstm, error) {
	if a.Units <= 0 {
		return nil, errors.New("units must be positive")
	}
	if len(a.Kernel) == 0 {
		return nil, errors.New("missing kernel")
	}
	u, in := a.Units, len(a.Kernel)

	kernel, err := matrixFrom(a.Kernel, in, 4*u, "kernel")
	if err != nil {
		return nil, err
	}
	recurrent, err := matrixFrom(a.RecurrentKernel, u, 4*u, "recurrent_kernel")
	if err != nil {
		return nil, err
	}
	if len(a.Bias) != 4*u {
		return nil, fmt.Errorf("bias has %d values, want %d", len(a.Bias), 4*u)
	}
	act, err := lookupActivation(a.Activation, "tanh")
	if err != nil {
		return nil, err
	}
	recAct, err := lookupActivation(a.RecurrentActivation, "sigmoid")
	if err != nil {
		return nil, err
	}

	return &lstm{
		units:           u,
		in:              in,
		kernel:          kernel,
		recurrent:       recurrent,
		bias:            mat.NewVecDense(4*u, append([]float64(nil), a.Bias...)),
		act:             act,
		recAct:          recAct,
		returnSequences: a.ReturnSequences,
	}, nil
}

func (l *lstm) outShape(steps, in int) (int, int, error) {
	if in != l.in {
		return 0, 0, fmt.Errorf("expects %d inputs, got %d", l.in, in)
	}
	if l.returnSequences {
		return steps, l.units, nil
	}
	return 1, l.units, nil
}

func (l *lstm) forward(x *mat.Dense) *mat.Dense {
	steps, _ := x.Dims()
	u := l.units

	h := mat.NewVecDense(u, nil)
	c := make([]float64, u)
	z := mat.NewVecDense(4*u, nil)
	rec := mat.NewVecDense(4*u, nil)

	var seq *mat.Dense
	if l.returnSequences {
		seq = mat.NewDense(steps, u, nil)
	}

	for t := 0; t < steps; t++ {
		z.MulVec(l.kernel.T(), x.RowView(t))
		rec.MulVec(l.recurrent.T(), h)
		z.AddVec(z, rec)
		z.AddVec(z, l.bias)

		for j := 0; j < u; j++ {
			i := l.recAct(z.AtVec(j))
			f := l.recAct(z.AtVec(u + j))
			g := l.act(z.AtVec(2*u + j))
			o := l.recAct(z.AtVec(3*u + j))
			c[j] = f*c[j] + i*g
			h.SetVec(j, o*l.act(c[j]))
		}
		if seq != nil {
			seq.SetRow(t, h.RawVector().Data)
		}
	}

	if seq != nil {
		return seq
	}
	return mat.NewDense(1, u, append([]float64(nil), h.RawVector().Data...))
}

// dense applies act(x·kernel + bias) to every step
type dense struct {
	in, units int
	kernel    *mat.Dense
	bias      []float64
	act       activation
}

func newDense(a layerArtifact) (*dense, error) {
	if a.Units <= 0 {
		return nil, errors.New("units must be positive")
	}
	if len(a.Kernel) == 0 {
		return nil, errors.New("missing kernel")
	}
	in := len(a.Kernel)
	kernel, err := matrixFrom(a.Kernel, in, a.Units, "kernel")
	if err != nil {
		return nil, err
	}
	bias := a.Bias
	if bias == nil {
		bias = make([]float64, a.Units)
	}
	if len(bias) != a.Units {
		return nil, fmt.Errorf("bias has %d values, want %d", len(bias), a.Units)
	}
	act, err := lookupActivation(a.Activation, "linear")
	if err != nil {
		return nil, err
	}
	return &dense{in: in, units: a.Units, kernel: kernel, bias: bias, act: act}, nil
}

func (d *dense) outShape(steps, in int) (int, int, error) {
	if in != d.in {
		return 0, 0, fmt.Errorf("expects %d inputs, got %d", d.in, in)
	}
	return steps, d.units, nil
}

func (d *dense) forward(x *mat.Dense) *mat.Dense {
	steps, _ := x.Dims()
	out := mat.NewDense(steps, d.units, nil)
	out.Mul(x, d.kernel)
	out.Apply(func(_, j int, v float64) float64 { return d.act(v + d.bias[j]) }, out)
	return out
}
