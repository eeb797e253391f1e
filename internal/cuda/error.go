package cuda

import "fmt"

// Error is a CUDA driver result code other than CUDA_SUCCESS.
type Error int

func (e Error) Error() string {
	return fmt.Sprintf("cuda: driver error %d", int(e))
}
