package device

import (
	"slices"
	"strings"
	"time"
)

// Search keeps devices whose label contains term, ignoring case.
// An empty term keeps everything.
func Search(devices []Device, term string) []Device {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return devices
	}

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.DeviceID), term) {
			out = append(out, d)
		}
	}
	return out
}

// FilterByStatus keeps devices in the given state. StatusAll and the empty
// status keep everything.
func FilterByStatus(devices []Device, status Status) []Device {
	if status == "" || status == StatusAll {
		return devices
	}

	wantIssued := status == StatusIssued
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.IsIssued == wantIssued {
			out = append(out, d)
		}
	}
	return out
}

// SortNewestFirst orders devices by CreatedAt descending, breaking ties
// by ID descending. The slice is sorted in place.
func SortNewestFirst(devices []Device) {
	slices.SortStableFunc(devices, func(a, b Device) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}

// Query applies f to devices and returns the matches newest first.
// The input slice is not modified.
func Query(devices []Device, f Filter) []Device {
	out := slices.Clone(FilterByStatus(Search(devices, f.Search), f.Status))
	SortNewestFirst(out)
	return out
}

// ComputeStats counts devices by state. AddedThisMonth counts devices
// created on or after midnight on the first day of now's month, in now's
// location.
func ComputeStats(devices []Device, now time.Time) Stats {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	stats := Stats{TotalDevices: len(devices)}
	for _, d := range devices {
		if d.IsIssued {
			stats.IssuedDevices++
		} else {
			stats.AvailableDevices++
		}
		if !d.CreatedAt.Before(monthStart) {
			stats.AddedThisMonth++
		}
	}
	return stats
}
