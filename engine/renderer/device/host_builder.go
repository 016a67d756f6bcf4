package device

// HostDeviceOption configures a HostDevice at construction.
type HostDeviceOption func(*hostDevice)

// WithNonCoherentMemory makes the device report non-coherent memory, so host
// writes only become device-visible after an explicit Flush. Used to exercise
// the flush path of the buffer layer.
//
// Returns:
//   - HostDeviceOption: the option to pass to NewHostDevice
func WithNonCoherentMemory() HostDeviceOption {
	return func(h *hostDevice) {
		h.coherent = false
	}
}

// WithoutPersistentMapping makes the device ignore persistent-map requests, so
// allocations behave like memory that must be mapped and unmapped around every
// write.
//
// Returns:
//   - HostDeviceOption: the option to pass to NewHostDevice
func WithoutPersistentMapping() HostDeviceOption {
	return func(h *hostDevice) {
		h.allowPersistent = false
	}
}
