// Package transport holds the vehicle registry DTOs.
package transport

// Vehicle is the registry record of one license plate.
type Vehicle struct {
	LicensePlate      string `json:"licensePlate"`
	Make              string `json:"make"`
	Model             string `json:"model"`
	Year              int    `json:"year,omitempty"`
	Color             string `json:"color,omitempty"`
	FuelType          string `json:"fuelType,omitempty"`
	FirstRegisteredOn string `json:"firstRegisteredOn,omitempty"`
}
