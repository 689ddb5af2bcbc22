package main

import "github.com/creativerezz/cofk-lunch-card-app/internal/reader"

// cardDevice selects the reader hardware for this build. No PC/SC stack is
// linked by default, so the terminal starts without a reader and every
// mutation flows through the pending log until a build tag supplies one.
func cardDevice() reader.Device {
	return reader.UnavailableDevice()
}
