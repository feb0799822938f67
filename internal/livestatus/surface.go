// Package livestatus keeps the single active journey mirrored on a live
// activity surface and in a durable snapshot that survives restarts.
package livestatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blink/internal/domain"
)

var (
	ErrUnauthorized     = errors.New("live status surface not authorized")
	ErrSnapshotVersion  = errors.New("unsupported snapshot version")
	ErrActivityNotFound = errors.New("activity not found")
)

type DismissPolicy int

const (
	DismissDefault DismissPolicy = iota
	DismissImmediate
)

// Activity is one live-status instance as reported by the surface.
type Activity struct {
	ID         string                `json:"id"`
	Kind       string                `json:"kind"`
	Attributes domain.LiveAttributes `json:"attributes"`
	State      domain.LiveState      `json:"state"`
	StartedAt  time.Time             `json:"startedAt"`
}

// ActivityKind identifies journey activities among everything a surface shows.
const ActivityKind = "bus_journey"

// Surface is the live-activity display. Active lists every instance of
// ActivityKind, including ones created by an earlier process.
type Surface interface {
	Authorized(ctx context.Context) bool
	Create(ctx context.Context, attrs domain.LiveAttributes, state domain.LiveState) (string, error)
	Update(ctx context.Context, id string, state domain.LiveState) error
	End(ctx context.Context, id string, final domain.LiveState, policy DismissPolicy) error
	Active(ctx context.Context) ([]Activity, error)
}

// SnapshotStore is the shared durable key-value slot holding the active
// journey. Get returns nil, nil when the slot is empty.
type SnapshotStore interface {
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, s *Snapshot) error
	Remove(ctx context.Context) error
}

const SnapshotVersion = 1

// SnapshotKey is the well-known key shared with companion processes.
const SnapshotKey = "blink:active_journey"

type Snapshot struct {
	Version    int            `json:"version"`
	ActivityID string         `json:"activityId,omitempty"`
	Journey    domain.Journey `json:"journey"`
	WrittenAt  time.Time      `json:"writtenAt"`
}

func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	return &s, nil
}
