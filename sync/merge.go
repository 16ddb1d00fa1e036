package sync

import "github.com/qubic/chains-status/domain"

type mergeOutcome int

const (
	mergeFresh mergeOutcome = iota
	mergeFallback
	mergeDropped
)

// mergeStatus resolves the status of a chain from a fresh snapshot and the previously published list.
//
// An unknown snapshot carries the previous status of the chain forward if there is one. Without any previous
// list an enabled chain with an unknown block is dropped, unless placeholders are requested. Disabled chains
// are never dropped and never synced.
func mergeStatus(chain domain.Chain, index int, snapshot domain.SyncSnapshot, previous domain.StatusList, placeholders bool) (domain.ChainStatus, mergeOutcome) {
	status := domain.ChainStatus{
		ID:          chain.ID,
		ShortName:   chain.ShortName,
		Image:       chain.Image,
		Disabled:    chain.Disabled,
		LatestBlock: snapshot.LatestBlock,
		Index:       index,
	}

	if !snapshot.IsKnown() {
		if prior, ok := previous.Find(chain.ID); ok {
			status.LatestBlock = prior.LatestBlock
			status.Synced = prior.Synced && !chain.Disabled
			return status, mergeFallback
		}
		if previous == nil && !chain.Disabled && !placeholders {
			return status, mergeDropped
		}
		status.LatestBlock = domain.UnknownBlock
		return status, mergeFresh
	}

	status.Synced = !chain.Disabled
	return status, mergeFresh
}
