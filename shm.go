package wlclient

// Wayland pixel formats
const (
	// 32-bit formats
	FormatARGB8888 = 0
	FormatXRGB8888 = 1

	// 24-bit formats
	FormatRGB888 = 0x34324752 // 'RG24'
	FormatBGR888 = 0x34324742 // 'BG24'

	// 16-bit formats
	FormatRGB565   = 0x36314752 // 'RG16'
	FormatXRGB1555 = 0x35315258 // 'XR15'

	// 8-bit formats
	FormatY8 = 0x20203859 // 'Y8  '
)

// Shm represents a wl_shm. It records the pixel formats the compositor
// advertises after the bind.
type Shm struct {
	BaseProxy
	formats []uint32
}

// NewShm creates a new, unbound shm proxy
func NewShm() *Shm {
	return &Shm{}
}

// Formats returns the advertised formats in announcement order
func (s *Shm) Formats() []uint32 {
	return append([]uint32(nil), s.formats...)
}

// HasFormat reports whether format was advertised
func (s *Shm) HasFormat(format uint32) bool {
	for _, f := range s.formats {
		if f == format {
			return true
		}
	}
	return false
}

// Destroy destroys the shm proxy. wl_shm version 1 has no destructor request.
func (s *Shm) Destroy() {
	s.destroy(s)
}

// Dispatch handles format events
func (s *Shm) Dispatch(event *Event) {
	if event.Opcode == 0 { // format
		s.formats = append(s.formats, event.Uint32())
	}
}
