package tensor

import (
	"context"
	"fmt"

	"github.com/x448/float16"
)

// Conv1DSpec describes a batched 1-D convolution.
type Conv1DSpec struct {
	Batch      int
	Width      int
	InChannels int

	FilterWidth      int
	FilterInChannels int
	OutChannels      int

	Stride  int
	Padding Padding
	Layout  Layout
	DType   DType
	Device  Device

	// Fill is the value every input and filter element is initialized to.
	Fill float64
}

// Conv1D is a built convolution op. Input and filter tensors are allocated
// once at construction; Run recomputes the output in place.
type Conv1D struct {
	spec   Conv1DSpec
	geom   geometry
	kernel kernel
}

type kernel interface {
	run()
	output() []float64
}

// NewConv1D validates spec and allocates the op's tensors.
func NewConv1D(spec Conv1DSpec) (*Conv1D, error) {
	g, err := newGeometry(spec)
	if err != nil {
		return nil, err
	}

	op := &Conv1D{spec: spec, geom: g}

	switch spec.DType {
	case Float16:
		op.kernel = newHalfKernel(g, spec.Fill)
	case Float32:
		op.kernel = newFloatKernel[float32](g, spec.Fill)
	case Float64:
		op.kernel = newFloatKernel[float64](g, spec.Fill)
	default:
		return nil, fmt.Errorf("conv1d: %s: %w", spec.DType, ErrUnknownEnum)
	}

	return op, nil
}

// Run executes the convolution once.
func (c *Conv1D) Run(ctx context.Context) error {
	if c.kernel == nil {
		return ErrClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.kernel.run()

	return nil
}

// Spec returns the spec the op was built from.
func (c *Conv1D) Spec() Conv1DSpec {
	return c.spec
}

// OutputShape returns the output dimensions in the op's layout.
func (c *Conv1D) OutputShape() []int {
	if c.geom.layout == ChannelFirst {
		return []int{c.geom.n, c.geom.cout, c.geom.outW}
	}

	return []int{c.geom.n, c.geom.outW, c.geom.cout}
}

// Output returns a copy of the last computed output as float64.
func (c *Conv1D) Output() []float64 {
	if c.kernel == nil {
		return nil
	}

	return c.kernel.output()
}

// Close releases the op's buffers. Further Run calls fail with ErrClosed.
func (c *Conv1D) Close() error {
	c.kernel = nil

	return nil
}

// MaxElements bounds the element count of each tensor an op allocates.
const MaxElements = 1 << 30

type geometry struct {
	layout  Layout
	n       int
	w       int
	cin     int
	k       int
	cout    int
	stride  int
	outW    int
	padLeft int

	inLen     int
	filterLen int
	outLen    int
}

func newGeometry(spec Conv1DSpec) (geometry, error) {
	dims := []struct {
		name string
		v    int
	}{
		{"batch", spec.Batch},
		{"width", spec.Width},
		{"input channels", spec.InChannels},
		{"filter width", spec.FilterWidth},
		{"filter input channels", spec.FilterInChannels},
		{"output channels", spec.OutChannels},
		{"stride", spec.Stride},
	}
	for _, d := range dims {
		if d.v <= 0 {
			return geometry{}, fmt.Errorf(
				"conv1d: %s must be positive, got %d: %w", d.name, d.v, ErrInvalidShape,
			)
		}
	}

	if spec.FilterInChannels != spec.InChannels {
		return geometry{}, fmt.Errorf(
			"conv1d: filter input channels %d do not match input channels %d: %w",
			spec.FilterInChannels, spec.InChannels, ErrInvalidShape,
		)
	}

	g := geometry{
		layout: spec.Layout,
		n:      spec.Batch,
		w:      spec.Width,
		cin:    spec.InChannels,
		k:      spec.FilterWidth,
		cout:   spec.OutChannels,
		stride: spec.Stride,
	}

	switch spec.Padding {
	case Same:
		g.outW = (g.w-1)/g.stride + 1
		total := max((g.outW-1)*g.stride+g.k-g.w, 0)
		g.padLeft = total / 2

	case Valid:
		if g.k > g.w {
			return geometry{}, fmt.Errorf(
				"conv1d: filter width %d exceeds input width %d with VALID padding: %w",
				g.k, g.w, ErrInvalidShape,
			)
		}
		g.outW = (g.w-g.k)/g.stride + 1

	default:
		return geometry{}, fmt.Errorf("conv1d: %s: %w", spec.Padding, ErrUnknownEnum)
	}

	switch spec.Layout {
	case ChannelLast, ChannelFirst:
	default:
		return geometry{}, fmt.Errorf("conv1d: %s: %w", spec.Layout, ErrUnknownEnum)
	}

	tensors := []struct {
		name string
		size *int
		dims []int
	}{
		{"input", &g.inLen, []int{g.n, g.w, g.cin}},
		{"filter", &g.filterLen, []int{g.k, g.cin, g.cout}},
		{"output", &g.outLen, []int{g.n, g.outW, g.cout}},
	}
	for _, t := range tensors {
		n, ok := elements(t.dims...)
		if !ok {
			return geometry{}, fmt.Errorf(
				"conv1d: %s tensor %v exceeds %d elements: %w", t.name, t.dims, MaxElements, ErrInvalidShape,
			)
		}
		*t.size = n
	}

	return g, nil
}

// elements multiplies positive dims, failing once the product would exceed
// MaxElements.
func elements(dims ...int) (int, bool) {
	total := 1
	for _, d := range dims {
		if total > MaxElements/d {
			return 0, false
		}
		total *= d
	}

	return total, true
}

func (g geometry) inIndex(n, x, c int) int {
	if g.layout == ChannelFirst {
		return (n*g.cin+c)*g.w + x
	}

	return (n*g.w+x)*g.cin + c
}

func (g geometry) outIndex(n, x, c int) int {
	if g.layout == ChannelFirst {
		return (n*g.cout+c)*g.outW + x
	}

	return (n*g.outW+x)*g.cout + c
}

// Filters are always stored as [width, in channels, out channels].
func (g geometry) filterIndex(k, ci, co int) int {
	return (k*g.cin+ci)*g.cout + co
}

type floatKernel[T float32 | float64] struct {
	g      geometry
	in     []T
	filter []T
	out    []T
}

func newFloatKernel[T float32 | float64](g geometry, fill float64) *floatKernel[T] {
	k := &floatKernel[T]{
		g:      g,
		in:     make([]T, g.inLen),
		filter: make([]T, g.filterLen),
		out:    make([]T, g.outLen),
	}

	for i := range k.in {
		k.in[i] = T(fill)
	}

	for i := range k.filter {
		k.filter[i] = T(fill)
	}

	return k
}

func (k *floatKernel[T]) run() {
	g := k.g

	for n := 0; n < g.n; n++ {
		for ox := 0; ox < g.outW; ox++ {
			start := ox*g.stride - g.padLeft

			for co := 0; co < g.cout; co++ {
				var acc T

				for kk := 0; kk < g.k; kk++ {
					x := start + kk
					if x < 0 || x >= g.w {
						continue
					}

					for ci := 0; ci < g.cin; ci++ {
						acc += k.in[g.inIndex(n, x, ci)] * k.filter[g.filterIndex(kk, ci, co)]
					}
				}

				k.out[g.outIndex(n, ox, co)] = acc
			}
		}
	}
}

func (k *floatKernel[T]) output() []float64 {
	out := make([]float64, len(k.out))
	for i, v := range k.out {
		out[i] = float64(v)
	}

	return out
}

// halfKernel stores tensors as IEEE 754 half precision and accumulates in
// float32.
type halfKernel struct {
	g      geometry
	in     []float16.Float16
	filter []float16.Float16
	out    []float16.Float16
}

func newHalfKernel(g geometry, fill float64) *halfKernel {
	k := &halfKernel{
		g:      g,
		in:     make([]float16.Float16, g.inLen),
		filter: make([]float16.Float16, g.filterLen),
		out:    make([]float16.Float16, g.outLen),
	}

	v := float16.Fromfloat32(float32(fill))

	for i := range k.in {
		k.in[i] = v
	}

	for i := range k.filter {
		k.filter[i] = v
	}

	return k
}

func (k *halfKernel) run() {
	g := k.g

	for n := 0; n < g.n; n++ {
		for ox := 0; ox < g.outW; ox++ {
			start := ox*g.stride - g.padLeft

			for co := 0; co < g.cout; co++ {
				var acc float32

				for kk := 0; kk < g.k; kk++ {
					x := start + kk
					if x < 0 || x >= g.w {
						continue
					}

					for ci := 0; ci < g.cin; ci++ {
						acc += k.in[g.inIndex(n, x, ci)].Float32() *
							k.filter[g.filterIndex(kk, ci, co)].Float32()
					}
				}

				k.out[g.outIndex(n, ox, co)] = float16.Fromfloat32(acc)
			}
		}
	}
}

func (k *halfKernel) output() []float64 {
	out := make([]float64, len(k.out))
	for i, v := range k.out {
		out[i] = float64(v.Float32())
	}

	return out
}
