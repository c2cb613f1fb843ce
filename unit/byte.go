// Package unit holds the byte and bit-rate multiples the quality analyzer
// reports in: decimal units for bit rates, binary units for file sizes.
package unit

const (
	Kilobyte = 1000
	Megabyte = 1000 * Kilobyte

	Kibibyte = 1024
	Mebibyte = 1024 * Kibibyte
)
