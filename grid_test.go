package parmin

import "testing"

func TestPlanGrid(t *testing.T) {
	tests := []struct {
		name     string
		class    DeviceClass
		units    int
		elements int
		want     GridShape
	}{
		{"reference wide-SIMD", ClassWideSIMD, 8, 4096 * 4096, GridShape{GlobalSize: 4096, LocalSize: 64, Groups: 64}},
		{"exact start", ClassWideSIMD, 1, 448 * 4 * 3, GridShape{GlobalSize: 448, LocalSize: 64, Groups: 7}},
		{"narrowed group", ClassWideSIMD, 1, 4000, GridShape{GlobalSize: 200, LocalSize: 8, Groups: 25}},
		{"single chunk wide", ClassWideSIMD, 1, 4, GridShape{GlobalSize: 1, LocalSize: 1, Groups: 1}},
		{"single chunk scalar", ClassScalar, 1, 4, GridShape{GlobalSize: 1, LocalSize: 1, Groups: 1}},
		{"scalar one per unit", ClassScalar, 8, 4096 * 4096, GridShape{GlobalSize: 8, LocalSize: 1, Groups: 8}},
		{"scalar lowered to divisor", ClassScalar, 8, 48, GridShape{GlobalSize: 6, LocalSize: 1, Groups: 6}},
		{"scalar more units than chunks", ClassScalar, 64, 20, GridShape{GlobalSize: 5, LocalSize: 1, Groups: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanGrid(tt.class, tt.units, tt.elements)
			if err != nil {
				t.Fatalf("PlanGrid: %v", err)
			}
			if got != tt.want {
				t.Errorf("PlanGrid(%v, %d, %d) = %v, want %v", tt.class, tt.units, tt.elements, got, tt.want)
			}
		})
	}
}

func TestPlanGridDividesWork(t *testing.T) {
	for _, class := range []DeviceClass{ClassScalar, ClassWideSIMD} {
		for units := 1; units <= 40; units += 3 {
			for chunks := 1; chunks <= 5000; chunks += 37 {
				g, err := PlanGrid(class, units, chunks*VectorWidth)
				if err != nil {
					t.Fatalf("%v units=%d chunks=%d: %v", class, units, chunks, err)
				}
				if g.GlobalSize < 1 || g.LocalSize < 1 || g.Groups < 1 {
					t.Fatalf("%v units=%d chunks=%d: degenerate grid %v", class, units, chunks, g)
				}
				if g.GlobalSize%g.LocalSize != 0 || g.Groups != g.GlobalSize/g.LocalSize {
					t.Errorf("%v units=%d chunks=%d: inconsistent grid %v", class, units, chunks, g)
				}
				if chunks%g.GlobalSize != 0 {
					t.Errorf("%v units=%d chunks=%d: global %d leaves a remainder", class, units, chunks, g.GlobalSize)
				}
				if g.LocalSize > DefaultGroupWidth {
					t.Errorf("%v units=%d chunks=%d: local %d exceeds %d", class, units, chunks, g.LocalSize, DefaultGroupWidth)
				}
				if got := g.Count(chunks * VectorWidth); got*g.GlobalSize != chunks {
					t.Errorf("%v units=%d chunks=%d: count %d x global %d != chunks", class, units, chunks, got, g.GlobalSize)
				}
			}
		}
	}
}

func TestPlanGridRejects(t *testing.T) {
	for _, n := range []int{0, 3, 6, -4} {
		if _, err := PlanGrid(ClassWideSIMD, 4, n); !IsInvalidArgError(err) {
			t.Errorf("PlanGrid(n=%d) error = %v, want invalid argument", n, err)
		}
	}
	if _, err := PlanGrid(ClassScalar, 0, 64); !IsDeviceError(err) {
		t.Errorf("PlanGrid(units=0) error = %v, want device error", err)
	}
	if _, err := PlanGrid(DeviceClass(7), 4, 64); CodeOf(err) != InvalidDeviceType {
		t.Errorf("PlanGrid(unknown class) code = %v, want %v", CodeOf(err), InvalidDeviceType)
	}
}

func TestModeFor(t *testing.T) {
	if got := ModeFor(ClassWideSIMD); got != ModeStrided {
		t.Errorf("ModeFor(wide-SIMD) = %v, want strided", got)
	}
	if got := ModeFor(ClassScalar); got != ModeContiguous {
		t.Errorf("ModeFor(scalar) = %v, want contiguous", got)
	}
}
