package idgen

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"
)

// BroadcastPrefix starts every broadcast id
const BroadcastPrefix = "bc"

var broadcastEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// IDGenerator produces unique string ids
type IDGenerator interface {
	NextID() (string, error)
}

// BroadcastIDs issues short, time-ordered broadcast ids: the prefix followed by a base36 sonyflake.
// Instances sharing a database need distinct machine ids.
type BroadcastIDs struct {
	sf *sonyflake.Sonyflake
}

// NewBroadcastIDs creates a BroadcastIDs for one instance
func NewBroadcastIDs(machineId uint16) (*BroadcastIDs, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: broadcastEpoch,
		MachineID: func() (uint16, error) { return machineId, nil },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sonyflake: %w", err)
	}
	return &BroadcastIDs{sf: sf}, nil
}

// NextID returns the next broadcast id
func (g *BroadcastIDs) NextID() (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("failed to generate broadcast id: %w", err)
	}
	return BroadcastPrefix + strconv.FormatUint(id, 36), nil
}

// UUIDs issues random ids for live feed connections and job lock owners
type UUIDs struct{}

// NextID returns a UUID v4
func (UUIDs) NextID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}
	return id.String(), nil
}
