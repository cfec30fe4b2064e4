// Package gpio drives a GPIO output line with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives a single digital output, such as a siren or strobe relay.
type Output interface {
	// Set drives the line active (true) or inactive (false).
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 17
)
