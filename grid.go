package parmin

import "fmt"

// AddressMode selects how partial_min walks the source array.
type AddressMode uint32

const (
	// ModeContiguous gives thread i the chunks [i*count, (i+1)*count).
	ModeContiguous AddressMode = 0
	// ModeStrided gives thread i the chunks i, i+global, i+2*global, ...
	// Neighbouring lanes of a wavefront then read neighbouring chunks.
	ModeStrided AddressMode = 1
)

func (m AddressMode) String() string {
	if m == ModeStrided {
		return "strided"
	}
	return "contiguous"
}

// GridShape is the execution grid of the partial_min dispatch.
type GridShape struct {
	GlobalSize int // Total work-items
	LocalSize  int // Work-items per group
	Groups     int // GlobalSize / LocalSize
}

// Count returns the number of 4-wide chunks each work-item folds.
func (g GridShape) Count(elements int) int {
	return (elements / VectorWidth) / g.GlobalSize
}

// ModeFor returns the address mode a device class uses.
func ModeFor(class DeviceClass) AddressMode {
	if class == ClassWideSIMD {
		return ModeStrided
	}
	return ModeContiguous
}

func (g GridShape) String() string {
	return fmt.Sprintf("%d groups x %d threads = %d", g.Groups, g.LocalSize, g.GlobalSize)
}

// PlanGrid computes the grid for reducing elements uint32 values on a
// device of the given class with units execution units. Every returned
// shape divides the elements/4 chunks evenly among work-items, so the
// kernels need no remainder handling.
func PlanGrid(class DeviceClass, units, elements int) (GridShape, error) {
	if elements < VectorWidth || elements%VectorWidth != 0 {
		return GridShape{}, NewInvalidArgError("PlanGrid",
			fmt.Sprintf("element count %d is not a positive multiple of %d", elements, VectorWidth))
	}
	if units < 1 {
		return GridShape{}, NewDeviceError("PlanGrid",
			fmt.Sprintf("device reports %d execution units", units), nil)
	}
	chunks := elements / VectorWidth

	var global, local int
	switch class {
	case ClassScalar:
		// One thread per core, lowered until the cores split the chunks evenly.
		local = 1
		global = min(units, chunks)
		for chunks%global != 0 {
			global--
		}
	case ClassWideSIMD:
		global, local = planWideSIMD(units, chunks)
	default:
		return GridShape{}, &Error{
			Type:    ErrTypeInvalidArg,
			Op:      "PlanGrid",
			Message: fmt.Sprintf("unknown device class %d", class),
			Code:    InvalidDeviceType,
		}
	}

	return GridShape{
		GlobalSize: global,
		LocalSize:  local,
		Groups:     global / local,
	}, nil
}

// planWideSIMD starts from Oversubscription wavefronts per unit and grows
// by whole wavefronts until the chunk count divides evenly.
func planWideSIMD(units, chunks int) (global, local int) {
	const w = DefaultGroupWidth
	start := units * Oversubscription * w

	for g := start; g <= chunks; g += w {
		if chunks%g == 0 {
			return g, w
		}
	}

	// No multiple of a full wavefront fits: narrow the group to the largest
	// width dividing both, then take the largest multiple of it that divides
	// the chunks without exceeding the starting estimate.
	local = gcd(chunks, w)
	g := min(start, chunks) / local * local
	for chunks%g != 0 {
		g -= local
	}
	return g, local
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
