//go:build gpu

package gpu

import (
	"fmt"
	"time"

	"github.com/LynnColeArt/parmin"
	"github.com/openfluke/webgpu/wgpu"
)

// mapTimeout bounds the wait for a staging buffer to map.
const mapTimeout = 10 * time.Second

type buffer struct {
	acc      *Accelerator
	buf      *wgpu.Buffer
	label    string
	flags    parmin.MemFlags
	words    int
	released bool
}

func (b *buffer) Label() string          { return b.label }
func (b *buffer) Words() int             { return b.words }
func (b *buffer) Flags() parmin.MemFlags { return b.flags }

// Release destroys the device buffer.
func (b *buffer) Release() error {
	b.acc.mu.Lock()
	defer b.acc.mu.Unlock()
	if b.released {
		return parmin.ErrDoubleFree
	}
	b.released = true
	b.buf.Destroy()
	return nil
}

func (b *buffer) bytes() uint64 {
	return uint64(b.words) * parmin.WordSize
}

// CreateBuffer allocates a storage buffer of words 32-bit words. With
// parmin.MemCopyHostPtr it is created initialised from host.
func (a *Accelerator) CreateBuffer(label string, flags parmin.MemFlags, words int, host []uint32) (parmin.Buffer, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if words <= 0 {
		return nil, &parmin.Error{
			Type:    parmin.ErrTypeInvalidArg,
			Op:      "CreateBuffer",
			Message: fmt.Sprintf("buffer %s: size must be positive", label),
			Code:    parmin.InvalidBufferSize,
		}
	}
	size := uint64(words) * parmin.WordSize
	if a.info.TotalMem > 0 && size > a.info.TotalMem {
		return nil, parmin.NewMemoryError("CreateBuffer",
			fmt.Sprintf("buffer %s: %d bytes exceeds the %d byte limit", label, size, a.info.TotalMem), nil)
	}

	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	var (
		buf *wgpu.Buffer
		err error
	)
	if flags&parmin.MemCopyHostPtr != 0 {
		if len(host) < words {
			return nil, &parmin.Error{
				Type:    parmin.ErrTypeInvalidArg,
				Op:      "CreateBuffer",
				Message: fmt.Sprintf("buffer %s: host slice has %d words, need %d", label, len(host), words),
				Code:    parmin.InvalidValue,
			}
		}
		buf, err = a.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    label,
			Contents: wgpu.ToBytes(host[:words]),
			Usage:    usage,
		})
	} else {
		buf, err = a.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label,
			Size:  size,
			Usage: usage,
		})
	}
	if err != nil {
		return nil, parmin.NewMemoryError("CreateBuffer", "buffer "+label, err)
	}

	b := &buffer{acc: a, buf: buf, label: label, flags: flags, words: words}
	a.mu.Lock()
	a.buffers = append(a.buffers, b)
	a.mu.Unlock()
	return b, nil
}

// MapBuffer copies the first words words of b through a staging buffer.
// The copy is queued behind every earlier dispatch, so pending events are
// complete once it maps.
func (a *Accelerator) MapBuffer(b parmin.Buffer, words int) ([]uint32, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	gb, ok := b.(*buffer)
	if !ok || gb.acc != a || gb.released {
		return nil, &parmin.Error{
			Type:    parmin.ErrTypeInvalidArg,
			Op:      "MapBuffer",
			Message: "buffer does not belong to this device",
			Code:    parmin.InvalidMemObject,
		}
	}
	if words <= 0 || words > gb.words {
		return nil, &parmin.Error{
			Type:    parmin.ErrTypeInvalidArg,
			Op:      "MapBuffer",
			Message: fmt.Sprintf("map of %d words outside buffer %s of %d", words, gb.label, gb.words),
			Code:    parmin.InvalidValue,
		}
	}

	out, err := a.readBack(gb, words)
	if err != nil {
		return nil, &parmin.Error{
			Type:    parmin.ErrTypeDispatch,
			Op:      "MapBuffer",
			Message: "map of " + gb.label + " failed",
			Code:    parmin.MapFailure,
			Err:     err,
		}
	}
	a.completePending(nil)
	return out, nil
}

func (a *Accelerator) readBack(b *buffer, words int) ([]uint32, error) {
	// Copy sizes must be multiples of 4 bytes, which words always are.
	size := uint64(words) * parmin.WordSize
	staging, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label + "_staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer staging.Destroy()

	enc, err := a.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.CopyBufferToBuffer(b.buf, 0, staging, 0, size); err != nil {
		enc.Release()
		return nil, fmt.Errorf("copy %s to staging: %w", b.label, err)
	}
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, fmt.Errorf("finish command: %w", err)
	}
	a.queue.Submit(cmd)
	cmd.Release()

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map status %v", status)
		}
		close(done)
	})
	if err != nil {
		return nil, fmt.Errorf("MapAsync: %w", err)
	}

	timeout := time.After(mapTimeout)
Loop:
	for {
		a.device.Poll(false, nil)
		select {
		case <-done:
			break Loop
		case <-timeout:
			return nil, fmt.Errorf("map of %s timed out after %v", b.label, mapTimeout)
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	data := staging.GetMappedRange(0, uint(size))
	if data == nil {
		staging.Unmap()
		return nil, fmt.Errorf("empty mapped range")
	}
	out := make([]uint32, words)
	copy(out, wgpu.FromBytes[uint32](data))
	if err := staging.Unmap(); err != nil {
		return nil, fmt.Errorf("unmap %s staging: %w", b.label, err)
	}
	return out, nil
}
