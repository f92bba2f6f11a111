// ABOUTME: Version and product constants for CineSync
// ABOUTME: Reported in the hello handshake and CLI output
package version

const (
	// Version is the current release version
	Version = "0.2.0"

	// Product is the product name
	Product = "CineSync"

	// Manufacturer identifies the project
	Manufacturer = "CineSync Project"
)
