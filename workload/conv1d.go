package workload

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/weiihann/pibench/params"
	"github.com/weiihann/pibench/stats"
	"github.com/weiihann/pibench/tensor"
)

// Parameter names echoed in the PiConv1D report.
const (
	ParamDType               = "dtype"
	ParamDevice              = "device"
	ParamReps                = "reps"
	ParamDataFormat          = "data_format"
	ParamBatch               = "batch"
	ParamInputWidth          = "input_width"
	ParamInputChannels       = "input_channels"
	ParamFilterWidth         = "filter_width"
	ParamFilterInputChannels = "filter_input_channels"
	ParamOutputChannels      = "output_channels"
	ParamPadding             = "padding"
	ParamStrides             = "strides"
	ParamFill                = "fill"
)

// Conv1DParams declares the PiConv1D parameters. Keys are the environment
// variable names used by existing deployments.
func Conv1DParams() []params.Param {
	return []params.Param{
		params.Choice(ParamDType, "TENSOR_DTYPE", "float32",
			"element type", "float16", "float32", "float64"),
		params.Choice(ParamDevice, "CONV2D_DEVICE", "cpu",
			"execution target", "cpu", "gpu"),
		params.PositiveInt(ParamReps, "CONV_REPS", 80,
			"measured repetitions"),
		params.Choice(ParamDataFormat, "CONV_DATA_FORMAT", "NWC",
			"NWC is channel-last, NCW is channel-first", "NWC", "NCW"),
		params.PositiveInt(ParamBatch, "BATCH", 1,
			"input batch size"),
		params.PositiveInt(ParamInputWidth, "TENSOR_INPUT_WIDTH", 7,
			"input spatial width"),
		params.PositiveInt(ParamInputChannels, "TENSOR_INPUT_CHANNELS", 1,
			"input channels"),
		params.PositiveInt(ParamFilterWidth, "FILTER_INPUT_WIDTH", 3,
			"filter width"),
		params.PositiveInt(ParamFilterInputChannels, "FILTER_INPUT_CHANNELS", 1,
			"filter input channels").WithDefaultFrom(ParamInputChannels),
		params.PositiveInt(ParamOutputChannels, "FILTER_OUTPUT_CHANNELS", 1,
			"filter output channels"),
		params.Choice(ParamPadding, "FILTER_PADDING", "SAME",
			"padding mode", "SAME", "VALID"),
		params.PositiveInt(ParamStrides, "FILTER_STRIDE", 2,
			"filter stride"),
		params.Float(ParamFill, "TENSOR_FILL_VALUE", 1.0,
			"initial value of input and filter elements"),
	}
}

// Conv1DConfig is the typed form of the PiConv1D parameters.
type Conv1DConfig struct {
	DType      tensor.DType
	Device     tensor.Device
	Reps       int
	DataFormat tensor.Layout
	Padding    tensor.Padding

	Batch               int
	InputWidth          int
	InputChannels       int
	FilterWidth         int
	FilterInputChannels int
	OutputChannels      int
	Stride              int
	Fill                float64
}

// Conv1DConfigFrom converts a resolved set into a Conv1DConfig.
func Conv1DConfigFrom(set params.Set) (Conv1DConfig, error) {
	dtype, err := tensor.ParseDType(set.String(ParamDType))
	if err != nil {
		return Conv1DConfig{}, err
	}

	device, err := tensor.ParseDevice(set.String(ParamDevice))
	if err != nil {
		return Conv1DConfig{}, err
	}

	layout, err := tensor.ParseLayout(set.String(ParamDataFormat))
	if err != nil {
		return Conv1DConfig{}, err
	}

	padding, err := tensor.ParsePadding(set.String(ParamPadding))
	if err != nil {
		return Conv1DConfig{}, err
	}

	cfg := Conv1DConfig{
		DType:      dtype,
		Device:     device,
		DataFormat: layout,
		Padding:    padding,
		Fill:       set.Float(ParamFill),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{ParamReps, &cfg.Reps},
		{ParamBatch, &cfg.Batch},
		{ParamInputWidth, &cfg.InputWidth},
		{ParamInputChannels, &cfg.InputChannels},
		{ParamFilterWidth, &cfg.FilterWidth},
		{ParamFilterInputChannels, &cfg.FilterInputChannels},
		{ParamOutputChannels, &cfg.OutputChannels},
		{ParamStrides, &cfg.Stride},
	}
	for _, p := range ints {
		v := set.Int(p.name)
		if v > math.MaxInt || v < math.MinInt {
			return Conv1DConfig{}, fmt.Errorf("%s: %d does not fit in int: %w", p.name, v, tensor.ErrInvalidShape)
		}
		*p.dst = int(v)
	}

	return cfg, nil
}

// Operations implements stats.CostModel:
//
//	batch * input_width * filter_width * input_channels * output_channels * 2 / stride
func (c Conv1DConfig) Operations() float64 {
	return float64(c.Batch) *
		float64(c.InputWidth) *
		float64(c.FilterWidth) *
		float64(c.InputChannels) *
		float64(c.OutputChannels) *
		2 / float64(c.Stride)
}

// Spec returns the tensor op spec for c.
func (c Conv1DConfig) Spec() tensor.Conv1DSpec {
	return tensor.Conv1DSpec{
		Batch:            c.Batch,
		Width:            c.InputWidth,
		InChannels:       c.InputChannels,
		FilterWidth:      c.FilterWidth,
		FilterInChannels: c.FilterInputChannels,
		OutChannels:      c.OutputChannels,
		Stride:           c.Stride,
		Padding:          c.Padding,
		Layout:           c.DataFormat,
		DType:            c.DType,
		Device:           c.Device,
		Fill:             c.Fill,
	}
}

// Conv1D is the PiConv1D adapter.
type Conv1D struct {
	logger *slog.Logger
}

// NewConv1D creates the PiConv1D adapter.
func NewConv1D(logger *slog.Logger) *Conv1D {
	return &Conv1D{logger: logger.With(slog.String("workload", "PiConv1D"))}
}

func (a *Conv1D) Name() string      { return "PiConv1D" }
func (a *Conv1D) Framework() string { return tensor.Name }
func (a *Conv1D) TestSuite() string { return "conv" }

func (a *Conv1D) Engine() Engine {
	return Engine{Name: tensor.Name, Version: tensor.Version}
}

func (a *Conv1D) Params() []params.Param { return Conv1DParams() }

func (a *Conv1D) Repetitions(set params.Set) int {
	return int(min(set.Int(ParamReps), math.MaxInt))
}

// Construct builds the convolution op once. If the requested device is not
// available the op is placed on cpu.
func (a *Conv1D) Construct(ctx context.Context, set params.Set) (Workload, error) {
	cfg, err := Conv1DConfigFrom(set)
	if err != nil {
		return nil, fmt.Errorf("conv1d config: %w", err)
	}

	spec := cfg.Spec()
	if !spec.Device.Available() {
		a.logger.WarnContext(ctx, "device unavailable, placing op on cpu",
			slog.String("device", spec.Device.String()),
		)
		spec.Device = tensor.CPU
	}

	op, err := tensor.NewConv1D(spec)
	if err != nil {
		return nil, fmt.Errorf("build conv1d: %w", err)
	}

	a.logger.InfoContext(ctx, "conv1d op built",
		slog.String("dtype", spec.DType.String()),
		slog.String("data_format", spec.Layout.String()),
		slog.String("padding", spec.Padding.String()),
		slog.Any("output_shape", op.OutputShape()),
	)

	return &conv1dWorkload{op: op}, nil
}

// CostModel returns the Conv1DConfig of set.
func (a *Conv1D) CostModel(set params.Set) (stats.CostModel, error) {
	cfg, err := Conv1DConfigFrom(set)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

type conv1dWorkload struct {
	op *tensor.Conv1D
}

func (w *conv1dWorkload) RunOnce(ctx context.Context) error {
	return w.op.Run(ctx)
}

func (w *conv1dWorkload) Close() error {
	return w.op.Close()
}
