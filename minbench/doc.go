// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package minbench drives the two-stage minimum reduction on a
// parmin.Accelerator: it generates the source array, computes the serial
// reference, runs the timed dispatch loop and reports bandwidth and the
// verification verdict.
package minbench
