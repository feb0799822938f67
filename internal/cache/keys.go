package cache

import "blink/internal/livestatus"

// KeyActiveJourney is the shared slot companion processes read. The value is
// a versioned livestatus.Snapshot encoded as JSON.
const KeyActiveJourney = livestatus.SnapshotKey

func lockPath(path string) string {
	return path + ".lock"
}
