package minbench

import "github.com/LynnColeArt/parmin"

// Verdict is the comparison of a device minimum with the serial reference.
type Verdict struct {
	Got  uint32
	Want uint32
}

// Correct reports whether the values are bit-identical.
func (v Verdict) Correct() bool {
	return v.Got == v.Want
}

// Err returns a verification error for an incorrect verdict, nil otherwise.
func (v Verdict) Err() error {
	if v.Correct() {
		return nil
	}
	return parmin.NewVerificationError("Verify", v.Got, v.Want)
}

// Verify compares the device result with the reference minimum.
func Verify(device, reference uint32) Verdict {
	return Verdict{Got: device, Want: reference}
}
