package main

import "github.com/creativerezz/cofk-lunch-card-app/internal/reader"

// cardDevice selects the reader hardware for this build; see cmd/lunchcardd.
func cardDevice() reader.Device {
	return reader.UnavailableDevice()
}
