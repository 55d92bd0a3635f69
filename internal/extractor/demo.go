package extractor

import (
	"math/rand"
	"sync"

	"github.com/address-discovery/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// DemoSource wraps another CandidateSource and appends one synthetic,
// checksum-valid ethereum address per non-empty text. It exists so local demos
// show aggregates without waiting for a real address to be posted. Synthetic
// candidates go through the regular validation path.
type DemoSource struct {
	Base CandidateSource

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDemoSource creates a demo source seeded with seed
func NewDemoSource(base CandidateSource, seed int64) *DemoSource {
	if base == nil {
		base = RegexSource{}
	}
	return &DemoSource{Base: base, rng: rand.New(rand.NewSource(seed))} // #nosec G404 - demo data only
}

// Candidates implements CandidateSource
func (d *DemoSource) Candidates(text string) []Candidate {
	out := d.Base.Candidates(text)
	if text == "" {
		return out
	}
	return append(out, Candidate{Address: d.syntheticAddress(), Coin: types.CoinEthereum})
}

func (d *DemoSource) syntheticAddress() string {
	var b [common.AddressLength]byte
	d.mu.Lock()
	_, _ = d.rng.Read(b[:])
	d.mu.Unlock()
	return common.BytesToAddress(b[:]).Hex()
}
