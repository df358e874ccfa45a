package parmin

import "strconv"

// Code is a runtime status code. Values match the OpenCL status codes so
// that reports from the host runtime and from real drivers read the same.
type Code int32

const (
	Success                    Code = 0
	DeviceNotFound             Code = -1
	DeviceNotAvailable         Code = -2
	CompilerNotAvailable       Code = -3
	MemObjectAllocationFailure Code = -4
	OutOfResources             Code = -5
	OutOfHostMemory            Code = -6
	BuildProgramFailure        Code = -11
	MapFailure                 Code = -12
	ExecStatusErrorForEvents   Code = -14

	InvalidValue              Code = -30
	InvalidDeviceType         Code = -31
	InvalidDevice             Code = -33
	InvalidContext            Code = -34
	InvalidCommandQueue       Code = -36
	InvalidMemObject          Code = -38
	InvalidProgram            Code = -44
	InvalidProgramExecutable  Code = -45
	InvalidKernelName         Code = -46
	InvalidKernel             Code = -48
	InvalidArgIndex           Code = -49
	InvalidArgValue           Code = -50
	InvalidArgSize            Code = -51
	InvalidKernelArgs         Code = -52
	InvalidWorkDimension      Code = -53
	InvalidWorkGroupSize      Code = -54
	InvalidWorkItemSize       Code = -55
	InvalidEventWaitList      Code = -57
	InvalidEvent              Code = -58
	InvalidOperation          Code = -59
	InvalidBufferSize         Code = -61
	InvalidGlobalWorkSize     Code = -63
)

var codeNames = map[Code]string{
	Success:                    "SUCCESS",
	DeviceNotFound:             "DEVICE_NOT_FOUND",
	DeviceNotAvailable:         "DEVICE_NOT_AVAILABLE",
	CompilerNotAvailable:       "COMPILER_NOT_AVAILABLE",
	MemObjectAllocationFailure: "MEM_OBJECT_ALLOCATION_FAILURE",
	OutOfResources:             "OUT_OF_RESOURCES",
	OutOfHostMemory:            "OUT_OF_HOST_MEMORY",
	BuildProgramFailure:        "BUILD_PROGRAM_FAILURE",
	MapFailure:                 "MAP_FAILURE",
	ExecStatusErrorForEvents:   "EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST",
	InvalidValue:               "INVALID_VALUE",
	InvalidDeviceType:          "INVALID_DEVICE_TYPE",
	InvalidDevice:              "INVALID_DEVICE",
	InvalidContext:             "INVALID_CONTEXT",
	InvalidCommandQueue:        "INVALID_COMMAND_QUEUE",
	InvalidMemObject:           "INVALID_MEM_OBJECT",
	InvalidProgram:             "INVALID_PROGRAM",
	InvalidProgramExecutable:   "INVALID_PROGRAM_EXECUTABLE",
	InvalidKernelName:          "INVALID_KERNEL_NAME",
	InvalidKernel:              "INVALID_KERNEL",
	InvalidArgIndex:            "INVALID_ARG_INDEX",
	InvalidArgValue:            "INVALID_ARG_VALUE",
	InvalidArgSize:             "INVALID_ARG_SIZE",
	InvalidKernelArgs:          "INVALID_KERNEL_ARGS",
	InvalidWorkDimension:       "INVALID_WORK_DIMENSION",
	InvalidWorkGroupSize:       "INVALID_WORK_GROUP_SIZE",
	InvalidWorkItemSize:        "INVALID_WORK_ITEM_SIZE",
	InvalidEventWaitList:       "INVALID_EVENT_WAIT_LIST",
	InvalidEvent:               "INVALID_EVENT",
	InvalidOperation:           "INVALID_OPERATION",
	InvalidBufferSize:          "INVALID_BUFFER_SIZE",
	InvalidGlobalWorkSize:      "INVALID_GLOBAL_WORK_SIZE",
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN_ERROR_" + strconv.Itoa(int(c))
}
