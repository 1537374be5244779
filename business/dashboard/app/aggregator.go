package app

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	farmDomain "github.com/fd1az/savvy-farm/business/farm/domain"
)

// Snapshot holds the raw inputs of one aggregation.
type Snapshot struct {
	Addresses   []common.Address
	Metadata    map[common.Address]farmDomain.TokenMetadata
	Stakers     map[common.Address]farmDomain.StakerData
	Prices      map[common.Address]float64
	IconBaseURL string
}

// Aggregate builds the token list from raw inputs. It is pure: the same
// snapshot and time always produce the same tokens.
func Aggregate(s Snapshot, now time.Time) []domain.Token {
	tokens := make([]domain.Token, 0, len(s.Addresses))

	for _, addr := range s.Addresses {
		t := domain.Token{Address: addr, Price: s.Prices[addr]}

		if md, ok := s.Metadata[addr]; ok {
			t.Name = md.Name
			t.Type = md.Type
			t.IconURL = domain.IconURL(s.IconBaseURL, md.Name)
			t.Balance = md.Balance
			t.StakeFee = md.StakeFee.Total()
			t.UnstakeFee = md.UnstakeFee.Total()
			t.StakingApr = md.StakingApr
			t.RewardToken = md.RewardToken
			t.Admin = md.Admin
			t.HasMultiTokenRewards = md.HasMultiTokenRewards
			t.Loaded = true
		}

		if sd, ok := s.Stakers[addr]; ok {
			value := sd.StakingBalance.ToFloat64() * t.Price
			t.Staker = domain.StakerView{
				WalletBalance:         sd.WalletBalance,
				StakingBalance:        sd.StakingBalance,
				RewardBalance:         sd.RewardBalance,
				StakingRewardToken:    sd.EffectiveRewardToken(t.RewardToken),
				TimestampLastRewarded: sd.TimestampLastRewarded,
				TimestampAdded:        sd.TimestampAdded,
				StakingValue:          value,
				ProjectedReward:       domain.ProjectReward(t.StakingApr, value, sd.Checkpoint(), now),
			}
		}

		tokens = append(tokens, t)
	}

	// Reward tokens are tracked tokens themselves, so amounts resolve
	// against the list just built.
	for i := range tokens {
		st := &tokens[i].Staker
		if st.ProjectedReward == 0 || st.StakingRewardToken == (common.Address{}) {
			continue
		}
		if rt, ok := domain.LookupTokenByAddress(tokens, st.StakingRewardToken.Hex()); ok && rt.Price > 0 {
			st.ProjectedRewardAmount = st.ProjectedReward / rt.Price
		}
	}

	return tokens
}

// View is an immutable published state of the aggregator. Tokens must not be
// modified by receivers.
type View struct {
	Tokens     []domain.Token `json:"tokens"`
	Ready      bool           `json:"ready"`
	Generation uint64         `json:"generation"`
	Wallet     common.Address `json:"wallet"`
	CanSign    bool           `json:"canSign"`
	ChainID    uint64         `json:"chainId"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// AggregatorConfig describes the session the view belongs to.
type AggregatorConfig struct {
	IconBaseURL string
	Wallet      common.Address
	CanSign     bool
	ChainID     uint64
}

type field uint8

const (
	fieldMetadata field = iota
	fieldStaker
	fieldPrice
)

type fieldKey struct {
	field field
	addr  common.Address
}

// Aggregator owns the token list. Results from concurrent reads are applied
// through it and every change republishes a fresh View.
type Aggregator struct {
	cfg AggregatorConfig
	now func() time.Time

	// pub serializes recompute and publish so subscribers see views in order.
	pub sync.Mutex

	mu       sync.RWMutex
	gen      uint64
	addrs    []common.Address
	tracked  map[common.Address]struct{}
	metadata map[common.Address]farmDomain.TokenMetadata
	stakers  map[common.Address]farmDomain.StakerData
	prices   map[common.Address]float64
	applied  map[fieldKey]uint64
	ready    bool
	closed   bool
	view     View
	subs     []chan View
}

// NewAggregator creates an empty, not ready aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	a := &Aggregator{
		cfg:      cfg,
		now:      time.Now,
		tracked:  make(map[common.Address]struct{}),
		metadata: make(map[common.Address]farmDomain.TokenMetadata),
		stakers:  make(map[common.Address]farmDomain.StakerData),
		prices:   make(map[common.Address]float64),
		applied:  make(map[fieldKey]uint64),
	}
	a.view = a.buildLocked()
	return a
}

// BeginRefresh starts a new generation tracking addrs. Raw inputs of
// addresses that stay tracked carry over; dropped addresses are forgotten.
func (a *Aggregator) BeginRefresh(addrs []common.Address) uint64 {
	a.pub.Lock()
	defer a.pub.Unlock()

	a.mu.Lock()
	if a.closed {
		gen := a.gen
		a.mu.Unlock()
		return gen
	}

	a.gen++
	a.addrs = dedupe(addrs)
	a.tracked = make(map[common.Address]struct{}, len(a.addrs))
	for _, addr := range a.addrs {
		a.tracked[addr] = struct{}{}
	}
	for addr := range a.metadata {
		if !a.isTracked(addr) {
			delete(a.metadata, addr)
		}
	}
	for addr := range a.stakers {
		if !a.isTracked(addr) {
			delete(a.stakers, addr)
		}
	}
	for addr := range a.prices {
		if !a.isTracked(addr) {
			delete(a.prices, addr)
		}
	}
	for k := range a.applied {
		if !a.isTracked(k.addr) {
			delete(a.applied, k)
		}
	}

	gen := a.gen
	a.commitLocked()
	return gen
}

// ApplyMetadata records a metadata read made in generation gen.
func (a *Aggregator) ApplyMetadata(gen uint64, md farmDomain.TokenMetadata) bool {
	return a.apply(gen, fieldKey{fieldMetadata, md.Address}, func() {
		a.metadata[md.Address] = md
	})
}

// ApplyStakerData records the wallet's position in token.
func (a *Aggregator) ApplyStakerData(gen uint64, token common.Address, sd farmDomain.StakerData) bool {
	return a.apply(gen, fieldKey{fieldStaker, token}, func() {
		a.stakers[token] = sd
	})
}

// ApplyPrice records token's price. Unknown prices are applied as zero.
func (a *Aggregator) ApplyPrice(gen uint64, token common.Address, price float64) bool {
	if price < 0 {
		price = 0
	}
	return a.apply(gen, fieldKey{fieldPrice, token}, func() {
		a.prices[token] = price
	})
}

// apply runs set and republishes unless the result is stale: the aggregator
// is closed, the address is no longer tracked, or a newer generation already
// wrote this field.
func (a *Aggregator) apply(gen uint64, key fieldKey, set func()) bool {
	a.pub.Lock()
	defer a.pub.Unlock()

	a.mu.Lock()
	if a.closed || !a.isTracked(key.addr) || a.applied[key] > gen {
		a.mu.Unlock()
		return false
	}

	set()
	a.applied[key] = gen
	a.commitLocked()
	return true
}

// commitLocked rebuilds the view, releases mu and publishes. Callers hold
// pub and mu.
func (a *Aggregator) commitLocked() {
	if !a.ready && a.allLoadedLocked() {
		a.ready = true
	}
	view := a.buildLocked()
	a.view = view
	subs := a.subs
	a.mu.Unlock()

	for _, ch := range subs {
		offer(ch, view)
	}
}

func (a *Aggregator) allLoadedLocked() bool {
	if a.gen == 0 {
		return false
	}
	for _, addr := range a.addrs {
		if _, ok := a.metadata[addr]; !ok {
			return false
		}
	}
	return true
}

func (a *Aggregator) buildLocked() View {
	now := a.now()
	return View{
		Tokens: Aggregate(Snapshot{
			Addresses:   a.addrs,
			Metadata:    a.metadata,
			Stakers:     a.stakers,
			Prices:      a.prices,
			IconBaseURL: a.cfg.IconBaseURL,
		}, now),
		Ready:      a.ready,
		Generation: a.gen,
		Wallet:     a.cfg.Wallet,
		CanSign:    a.cfg.CanSign,
		ChainID:    a.cfg.ChainID,
		UpdatedAt:  now,
	}
}

func (a *Aggregator) isTracked(addr common.Address) bool {
	_, ok := a.tracked[addr]
	return ok
}

// View returns the latest published view.
func (a *Aggregator) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// Ready reports whether every tracked token has resolved metadata at least
// once. It never goes back to false.
func (a *Aggregator) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Tracked returns the current generation's addresses.
func (a *Aggregator) Tracked() []common.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]common.Address, len(a.addrs))
	copy(out, a.addrs)
	return out
}

// IsTracked reports whether addr is in the current token list.
func (a *Aggregator) IsTracked(addr common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isTracked(addr)
}

// LookupTokenByAddress finds a token in the latest view, ignoring hex case.
func (a *Aggregator) LookupTokenByAddress(addr string) (domain.Token, bool) {
	return domain.LookupTokenByAddress(a.View().Tokens, addr)
}

// Subscribe returns a channel receiving the latest view after every change.
// Slow receivers only see the most recent one. The channel closes on Close.
func (a *Aggregator) Subscribe() <-chan View {
	ch := make(chan View, 1)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		close(ch)
		return ch
	}
	ch <- a.view
	a.subs = append(a.subs, ch)
	return ch
}

// Close discards every later result and closes subscriptions.
func (a *Aggregator) Close() {
	a.pub.Lock()
	defer a.pub.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for _, ch := range a.subs {
		close(ch)
	}
	a.subs = nil
}

// offer replaces any pending view in ch with v.
func offer(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func dedupe(addrs []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(addrs))
	out := make([]common.Address, 0, len(addrs))
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
