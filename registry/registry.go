package registry

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/qubic/chains-status/domain"
	"gopkg.in/yaml.v3"
)

const chainsKey = "chains"

type chainsFile struct {
	Chains []domain.Chain `yaml:"chains"`
}

// FileRegistry serves the configured chains from a yaml file. The file is read again once the cached
// content expired, so changes are picked up without restart.
type FileRegistry struct {
	path      string
	cache     *ttlcache.Cache[string, []domain.Chain]
	lock      sync.Mutex
	loaded    []domain.Chain
	observers []func([]domain.Chain)
}

func NewFileRegistry(path string, reloadInterval time.Duration) *FileRegistry {
	cache := ttlcache.New[string, []domain.Chain](
		ttlcache.WithTTL[string, []domain.Chain](reloadInterval),
		ttlcache.WithDisableTouchOnHit[string, []domain.Chain](),
	)
	return &FileRegistry{
		path:  path,
		cache: cache,
	}
}

// OnChange registers a callback that is called with the new chains whenever the file content changed.
func (r *FileRegistry) OnChange(observer func([]domain.Chain)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.observers = append(r.observers, observer)
}

func (r *FileRegistry) ListChains(_ context.Context) ([]domain.Chain, error) {
	r.lock.Lock() // lock so that we do not get multiple threads inside the `if`
	defer r.lock.Unlock()

	item := r.cache.Get(chainsKey)
	if item != nil {
		return item.Value(), nil
	}

	chains, err := LoadChains(r.path)
	if err != nil {
		if r.loaded != nil {
			log.Printf("[WARN] reloading chains failed, keeping previous chains: %v", err)
			r.cache.Set(chainsKey, r.loaded, ttlcache.DefaultTTL)
			return r.loaded, nil
		}
		return nil, fmt.Errorf("loading chains: %w", err)
	}

	if !slices.Equal(chains, r.loaded) {
		log.Printf("[INFO] loaded [%d] chains from [%s].", len(chains), r.path)
		for _, observer := range r.observers {
			observer(slices.Clone(chains))
		}
	}
	r.loaded = chains
	r.cache.Set(chainsKey, chains, ttlcache.DefaultTTL)
	return chains, nil
}

// LoadChains reads and validates a chains yaml file.
func LoadChains(path string) ([]domain.Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file chainsFile
	if err = decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	seen := make(map[string]bool, len(file.Chains))
	for i, chain := range file.Chains {
		if chain.ID == "" {
			return nil, fmt.Errorf("chain at position [%d] has no id", i)
		}
		if seen[chain.ID] {
			return nil, fmt.Errorf("duplicate chain id [%s]", chain.ID)
		}
		seen[chain.ID] = true
		if !chain.Disabled && chain.Subgraph == "" {
			return nil, fmt.Errorf("enabled chain [%s] has no subgraph", chain.ID)
		}
	}
	return file.Chains, nil
}
