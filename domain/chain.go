package domain

// UnknownBlock marks a sync snapshot without usable data (failed query, disabled chain, empty response).
const UnknownBlock int64 = -1

type Chain struct {
	ID        string `yaml:"id" json:"id"`
	ChainID   uint64 `yaml:"chain_id" json:"chainId"`
	ShortName string `yaml:"short_name" json:"shortName"`
	Image     string `yaml:"image" json:"image,omitempty"`
	Subgraph  string `yaml:"subgraph" json:"-"`
	Disabled  bool   `yaml:"disabled" json:"disabled"`
}

type SyncSnapshot struct {
	LatestBlock int64
}

// UnknownSnapshot returns a snapshot carrying the unknown block sentinel.
func UnknownSnapshot() SyncSnapshot {
	return SyncSnapshot{LatestBlock: UnknownBlock}
}

func (s SyncSnapshot) IsKnown() bool {
	return s.LatestBlock >= 0
}
