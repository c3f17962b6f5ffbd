package models

// VolumePoint is one day of order volume.
type VolumePoint struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// LocationStat aggregates order throughput for one location.
type LocationStat struct {
	LocationID     string  `json:"location_id"`
	LocationName   string  `json:"location_name"`
	Orders         int64   `json:"orders"`
	AvgPickupHours float64 `json:"avg_pickup_hours"`
}
