package domain

// DeviceKind categorizes a capture input.
type DeviceKind string

const (
	DeviceCamera     DeviceKind = "camera"
	DeviceMicrophone DeviceKind = "microphone"
	DeviceScreen     DeviceKind = "screen"
)

// Device describes an available input source. The catalog is static;
// no live probing happens here.
type Device struct {
	ID   string     `json:"id"`
	Kind DeviceKind `json:"kind"`
	Name string     `json:"name"`
}

// DefaultDevices is the descriptive input catalog served by the API.
func DefaultDevices() []Device {
	return []Device{
		{ID: "camera:0", Kind: DeviceCamera, Name: "Built-in Camera"},
		{ID: "camera:1", Kind: DeviceCamera, Name: "External Camera"},
		{ID: "mic:0", Kind: DeviceMicrophone, Name: "Built-in Microphone"},
		{ID: "mic:1", Kind: DeviceMicrophone, Name: "External Microphone"},
		{ID: "screen:0", Kind: DeviceScreen, Name: "Primary Display"},
	}
}
