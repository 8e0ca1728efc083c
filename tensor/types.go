// Package tensor is a small CPU compute engine that builds fixed-shape
// operations once and re-executes them on demand.
package tensor

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Name identifies the engine in build metadata lookups.
	Name = "tensor"
	// Version is the engine version used in build metadata lookups.
	Version = "0.3.0"
)

var (
	// ErrInvalidShape indicates a non-positive or inconsistent dimension.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrUnknownEnum indicates an unrecognized enum spelling.
	ErrUnknownEnum = errors.New("unknown value")

	// ErrClosed indicates use of an op after Close.
	ErrClosed = errors.New("op closed")
)

// DType is the element type of a tensor.
type DType int

const (
	Float32 DType = iota
	Float16
	Float64
)

func (d DType) String() string {
	switch d {
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// ParseDType parses the canonical dtype spelling.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(s) {
	case "float16":
		return Float16, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("dtype %q: %w", s, ErrUnknownEnum)
	}
}

// Layout is the memory layout of a 1-D batched tensor.
type Layout int

const (
	// ChannelLast is NWC: batch x width x channels.
	ChannelLast Layout = iota
	// ChannelFirst is NCW: batch x channels x width.
	ChannelFirst
)

func (l Layout) String() string {
	switch l {
	case ChannelLast:
		return "NWC"
	case ChannelFirst:
		return "NCW"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseLayout parses NWC or NCW.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToUpper(s) {
	case "NWC":
		return ChannelLast, nil
	case "NCW":
		return ChannelFirst, nil
	default:
		return 0, fmt.Errorf("data format %q: %w", s, ErrUnknownEnum)
	}
}

// Padding selects how the input border is handled.
type Padding int

const (
	// Same pads the input so that output width is ceil(width/stride).
	Same Padding = iota
	// Valid uses only positions where the filter fits entirely.
	Valid
)

func (p Padding) String() string {
	switch p {
	case Same:
		return "SAME"
	case Valid:
		return "VALID"
	default:
		return fmt.Sprintf("padding(%d)", int(p))
	}
}

// ParsePadding parses SAME or VALID.
func ParsePadding(s string) (Padding, error) {
	switch strings.ToUpper(s) {
	case "SAME":
		return Same, nil
	case "VALID":
		return Valid, nil
	default:
		return 0, fmt.Errorf("padding %q: %w", s, ErrUnknownEnum)
	}
}

// Device is the execution target requested for an op.
type Device int

const (
	CPU Device = iota
	GPU
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return fmt.Sprintf("device(%d)", int(d))
	}
}

// ParseDevice parses cpu or gpu.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(s) {
	case "cpu":
		return CPU, nil
	case "gpu":
		return GPU, nil
	default:
		return 0, fmt.Errorf("device %q: %w", s, ErrUnknownEnum)
	}
}

// Available reports whether the engine can place ops on d.
func (d Device) Available() bool {
	return d == CPU
}
