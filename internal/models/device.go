package models

// DeviceBackend identifies the compute backend a device belongs to.
// The external argument syntax differs per backend; the mapping lives in
// the launcher's formatting table, not here.
type DeviceBackend string

const (
	BackendCUDA   DeviceBackend = "CUDA"
	BackendOptiX  DeviceBackend = "OPTIX"
	BackendHIP    DeviceBackend = "HIP"
	BackendMetal  DeviceBackend = "METAL"
	BackendOneAPI DeviceBackend = "ONEAPI"
	BackendCPU    DeviceBackend = "CPU"
)

// Valid returns true for a known compute backend
func (b DeviceBackend) Valid() bool {
	switch b {
	case BackendCUDA, BackendOptiX, BackendHIP, BackendMetal, BackendOneAPI, BackendCPU:
		return true
	}
	return false
}

// Device is an addressable compute unit usable by the render engine
type Device struct {
	ID      string        `json:"id" validate:"required"`
	Name    string        `json:"name"`
	Backend DeviceBackend `json:"backend" validate:"required"`
}
