package kernels

import (
	_ "embed"
	"fmt"
	"os"
)

// Source is the WGSL text of the kernel pair, compiled into the binary.
//
//go:embed minreduce.wgsl
var Source string

// DefaultPath is where the kernel source lives relative to the repository
// root, for editing without rebuilding.
const DefaultPath = "kernels/minreduce.wgsl"

// Load returns the kernel source from path, or the embedded Source when
// path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return Source, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load kernel source: %w", err)
	}
	return string(b), nil
}
