package device

// SumKernelName is the entry point defined by SumKernelSource.
const SumKernelName = "sum_buffer"

// SumKernelSource accumulates the input sequentially in a single work item. The loop
// is deliberately not parallelised: the benchmark measures launch and read-back
// latency, not reduction throughput.
const SumKernelSource = `
#pragma OPENCL EXTENSION cl_khr_fp64 : enable

__kernel void sum_buffer(
    __global const double *x,
    __global double *sum,
    unsigned int size) {

    double s = 0;
    for (unsigned int i = 0; i < size; ++i) {
        s += x[i];
    }
    *sum = s;
}
`
