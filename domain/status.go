package domain

import (
	"slices"
	"time"
)

const (
	StateDisabled = "disabled"
	StateUnsynced = "unsynced"
	StateSynced   = "synced"
)

type ChainStatus struct {
	ID          string `json:"id"`
	ShortName   string `json:"shortName"`
	Image       string `json:"image,omitempty"`
	Disabled    bool   `json:"disabled"`
	LatestBlock int64  `json:"latestBlock"`
	Synced      bool   `json:"synced"`
	Index       int    `json:"i"`
}

// State returns the display state. Disabled chains are neither synced nor unsynced.
func (cs ChainStatus) State() string {
	switch {
	case cs.Disabled:
		return StateDisabled
	case cs.Synced:
		return StateSynced
	default:
		return StateUnsynced
	}
}

// StatusList is ordered by Index ascending.
type StatusList []ChainStatus

func (sl StatusList) Find(id string) (ChainStatus, bool) {
	for _, cs := range sl {
		if cs.ID == id {
			return cs, true
		}
	}
	return ChainStatus{}, false
}

// Unsynced returns the enabled chains that are not synced, in list order.
func (sl StatusList) Unsynced() StatusList {
	var unsynced StatusList
	for _, cs := range sl {
		if !cs.Disabled && !cs.Synced {
			unsynced = append(unsynced, cs)
		}
	}
	return unsynced
}

func (sl StatusList) ShortNames() []string {
	names := make([]string, 0, len(sl))
	for _, cs := range sl {
		names = append(names, cs.ShortName)
	}
	return names
}

func (sl StatusList) Clone() StatusList {
	if sl == nil {
		return nil
	}
	return slices.Clone(sl)
}

// Snapshot is a published status list together with its tick generation.
type Snapshot struct {
	Generation  uint64     `json:"generation"`
	PublishedAt time.Time  `json:"publishedAt"`
	Chains      StatusList `json:"chains"`
}
