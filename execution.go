package parmin

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// EnqueueKernel validates a dispatch of k over global work-items in groups
// of local, and submits it behind waitFor. A zero local lets the runtime
// choose the group size. Rejected dispatches return an error immediately;
// failures during execution complete the returned event with an error and
// are reported again by Finish.
func (ctx *Context) EnqueueKernel(k Kernel, global, local int, waitFor ...*Event) (*Event, error) {
	if ctx.released.Load() {
		return nil, ErrReleased
	}
	hk, ok := k.(*hostKernel)
	if !ok || hk.ctx != ctx {
		return nil, NewDispatchError("EnqueueKernel", InvalidKernel, "kernel does not belong to this context", nil)
	}
	if global <= 0 {
		return nil, NewDispatchError("EnqueueKernel", InvalidGlobalWorkSize,
			fmt.Sprintf("%s: global size %d", hk.spec.Name, global), nil)
	}
	if local == 0 {
		local = defaultLocalSize(global, ctx.device.MaxGroupSize)
	}
	if local < 0 || local > ctx.device.MaxGroupSize || global%local != 0 {
		return nil, NewDispatchError("EnqueueKernel", InvalidWorkGroupSize,
			fmt.Sprintf("%s: local size %d for global size %d (max %d)", hk.spec.Name, local, global, ctx.device.MaxGroupSize), nil)
	}
	for i, ev := range waitFor {
		if ev == nil {
			return nil, NewDispatchError("EnqueueKernel", InvalidEventWaitList,
				fmt.Sprintf("%s: wait list entry %d is nil", hk.spec.Name, i), nil)
		}
	}
	bound, err := hk.snapshot()
	if err != nil {
		return nil, err
	}
	for i, arg := range bound {
		if b, ok := arg.(*hostBuffer); ok && !b.alloc.used {
			return nil, NewDispatchError("EnqueueKernel", InvalidMemObject,
				fmt.Sprintf("%s arg %d: buffer %s was released", hk.spec.Name, i, b.label), nil)
		}
	}

	nd := NDRange{Global: global, Local: local}
	spec := hk.spec
	ev := ctx.queue.submit(spec.Name, func() error {
		return ctx.launch(spec, nd, bound)
	}, append([]*Event(nil), waitFor...))
	return ev, nil
}

// defaultLocalSize picks the largest divisor of global that fits a
// wavefront, the way drivers size a dispatch with no local size given.
func defaultLocalSize(global, maxSize int) int {
	limit := min(DefaultGroupWidth, maxSize)
	for l := limit; l > 1; l-- {
		if global%l == 0 {
			return l
		}
	}
	return 1
}

// launch runs every group of a dispatch. Groups are independent and run
// concurrently on at most ctx.workers goroutines.
func (ctx *Context) launch(spec KernelSpec, nd NDRange, bound []any) error {
	groups := nd.Groups()

	var g errgroup.Group
	g.SetLimit(ctx.workers)
	for group := 0; group < groups; group++ {
		g.Go(func() error {
			return runGroup(spec, nd, group, bound)
		})
	}
	return g.Wait()
}

// resolveArgs turns bound arguments into the values one group sees. Local
// memory is allocated per group.
func resolveArgs(bound []any) Args {
	args := make(Args, len(bound))
	for i, arg := range bound {
		switch v := arg.(type) {
		case *hostBuffer:
			args[i] = v.data()
		case LocalMem:
			args[i] = make([]uint32, v.Size/WordSize)
		default:
			args[i] = v
		}
	}
	return args
}

// runGroup executes the work-items of one group. A group of one runs
// inline; larger groups run one goroutine per work-item so barriers and
// local atomics see real concurrency.
func runGroup(spec KernelSpec, nd NDRange, group int, bound []any) error {
	args := resolveArgs(bound)
	numGroups := nd.Groups()

	item := func(lid int, bar *Barrier) *WorkItem {
		return &WorkItem{
			GlobalID:   group*nd.Local + lid,
			LocalID:    lid,
			GroupID:    group,
			GlobalSize: nd.Global,
			LocalSize:  nd.Local,
			NumGroups:  numGroups,
			barrier:    bar,
		}
	}

	if nd.Local == 1 {
		return runItem(spec, item(0, nil), args)
	}

	bar := NewBarrier(nd.Local)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	wg.Add(nd.Local)
	for lid := 0; lid < nd.Local; lid++ {
		go func() {
			defer wg.Done()
			err := runItem(spec, item(lid, bar), args)
			if err == nil {
				bar.Depart()
				return
			}
			bar.Break()
			mu.Lock()
			if firstErr == nil || errors.Is(firstErr, errBarrierBroken) {
				firstErr = err
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return firstErr
}

// runItem calls the kernel for one work-item, converting a panic into a
// dispatch error.
func runItem(spec KernelSpec, wi *WorkItem, args Args) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && errors.Is(e, errBarrierBroken) {
			err = NewDispatchError(spec.Name, OutOfResources,
				fmt.Sprintf("work-item %d released from broken barrier", wi.GlobalID), errBarrierBroken)
			return
		}
		err = NewDispatchError(spec.Name, OutOfResources,
			fmt.Sprintf("work-item %d (group %d) faulted: %v", wi.GlobalID, wi.GroupID, r), nil)
	}()
	spec.Func(wi, args)
	return nil
}
