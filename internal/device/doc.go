// Package device implements the inventory's device records.
//
// It has three layers:
//   - Repository: durable storage with a unique device label
//   - Query helpers: search, status filtering, ordering and statistics
//   - Registry: the create/issue/return/update/delete lifecycle
//
// A device is either available or issued. The registry keeps the holder
// name and issue date present exactly while a device is issued, clearing
// them silently whenever it becomes available.
//
// Errors are sentinel values checked with errors.Is:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // 404
//	}
package device
