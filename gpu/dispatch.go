//go:build gpu

package gpu

import (
	"fmt"

	"github.com/LynnColeArt/parmin"
	"github.com/openfluke/webgpu/wgpu"
)

// EnqueueKernel records one compute pass dispatching global/local
// workgroups of k and submits it. The queue executes submissions in order,
// so waiting on earlier events needs no extra synchronisation; an earlier
// event that already failed rejects the dispatch. A zero local uses the
// entry point's workgroup size.
func (a *Accelerator) EnqueueKernel(pk parmin.Kernel, global, local int, waitFor ...*parmin.Event) (*parmin.Event, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	k, ok := pk.(*kernel)
	if !ok || k.prog.acc != a {
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidKernel, "kernel does not belong to this device", nil)
	}
	if global <= 0 {
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidGlobalWorkSize,
			fmt.Sprintf("%s: global size %d", k.name, global), nil)
	}
	if local == 0 {
		local = k.layout.workgroup
	}
	if local != k.layout.workgroup || global%local != 0 {
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidWorkGroupSize,
			fmt.Sprintf("%s: local size %d for global size %d (shader workgroup size %d)", k.name, local, global, k.layout.workgroup), nil)
	}
	groups := global / local
	if a.maxGroups > 0 && uint64(groups) > uint64(a.maxGroups) {
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidGlobalWorkSize,
			fmt.Sprintf("%s: %d workgroups exceed the device limit of %d", k.name, groups, a.maxGroups), nil)
	}
	for i, ev := range waitFor {
		if ev == nil {
			return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidEventWaitList,
				fmt.Sprintf("%s: wait list entry %d is nil", k.name, i), nil)
		}
		select {
		case <-ev.Done():
			if err := ev.Wait(); err != nil {
				return nil, parmin.NewDispatchError("EnqueueKernel", parmin.ExecStatusErrorForEvents,
					fmt.Sprintf("%s: dependency %s failed", k.name, ev.Label()), err)
			}
		default:
		}
	}

	entries, err := k.bindEntries()
	if err != nil {
		return nil, err
	}
	bg, err := a.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.name,
		Layout:  k.pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidKernelArgs,
			fmt.Sprintf("%s: create bind group", k.name), err)
	}
	defer bg.Release()

	enc, err := a.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.OutOfResources, "create command encoder", err)
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(uint32(groups), 1, 1)
	err = pass.End()
	pass.Release()
	if err != nil {
		enc.Release()
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidKernelArgs,
			fmt.Sprintf("%s: compute pass rejected", k.name), err)
	}
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, parmin.NewDispatchError("EnqueueKernel", parmin.OutOfResources, "finish command buffer", err)
	}
	a.queue.Submit(cmd)
	cmd.Release()

	ev := parmin.NewEvent(k.name)
	a.mu.Lock()
	a.pending = append(a.pending, ev)
	a.mu.Unlock()
	return ev, nil
}

// bindEntries checks every argument is set and returns the bind group
// entries of the kernel, uploading changed scalars first.
func (k *kernel) bindEntries() ([]wgpu.BindGroupEntry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i, ok := range k.set {
		if !ok {
			return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidKernelArgs,
				fmt.Sprintf("%s arg %d is not set", k.name, i), nil)
		}
	}

	acc := k.prog.acc
	acc.mu.Lock()
	defer acc.mu.Unlock()

	entries := make([]wgpu.BindGroupEntry, 0, len(k.layout.buffers)+1)
	for index, slot := range k.layout.buffers {
		b, ok := k.args[index].(*buffer)
		if !ok {
			return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidMemObject,
				fmt.Sprintf("%s arg %d is not a buffer", k.name, index), nil)
		}
		if b.released {
			return nil, parmin.NewDispatchError("EnqueueKernel", parmin.InvalidMemObject,
				fmt.Sprintf("%s arg %d: buffer %s was released", k.name, index, b.label), nil)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: slot,
			Buffer:  b.buf,
			Offset:  0,
			Size:    b.buf.GetSize(),
		})
	}

	if k.params != nil {
		if k.dirty {
			if err := acc.queue.WriteBuffer(k.params, 0, wgpu.ToBytes(k.values[:])); err != nil {
				return nil, parmin.NewDispatchError("EnqueueKernel", parmin.OutOfResources,
					fmt.Sprintf("%s: upload scalar arguments", k.name), err)
			}
			k.dirty = false
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: paramsBinding,
			Buffer:  k.params,
			Offset:  0,
			Size:    k.params.GetSize(),
		})
	}
	return entries, nil
}
