// ==================================
// File: internal/wallet/pool.go
// ==================================
package wallet

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// maxConsecutiveFailures is the number of back-to-back failed trades after
// which a wallet is pulled out of rotation until manually resumed.
const maxConsecutiveFailures = 3

// ErrNoWalletAvailable is returned by Acquire when every wallet in the pool
// is either mid-trade or suspended.
var ErrNoWalletAvailable = fmt.Errorf("no wallet available")

type walletState struct {
	wallet       *Wallet
	busy         bool
	suspended    bool
	failureCount int
}

// Pool hands out wallets round-robin for trade execution. A wallet is busy
// from Acquire until Release, so a single wallet never has two trades in
// flight.
type Pool struct {
	mu     sync.Mutex
	order  []string
	states map[string]*walletState
	cursor int
	logger *zap.Logger
}

// NewPool builds a pool over an ordered wallet set.
func NewPool(wallets []*Wallet, logger *zap.Logger) (*Pool, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("wallet pool cannot be empty")
	}

	p := &Pool{
		order:  make([]string, 0, len(wallets)),
		states: make(map[string]*walletState, len(wallets)),
		logger: logger.Named("wallet_pool"),
	}
	for _, w := range wallets {
		addr := w.Address()
		if _, exists := p.states[addr]; exists {
			continue
		}
		p.order = append(p.order, addr)
		p.states[addr] = &walletState{wallet: w}
	}

	return p, nil
}

// Size returns the number of wallets in the pool, including suspended ones.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Acquire returns the next eligible wallet and marks it busy. Wallets that
// are mid-trade or suspended are skipped.
func (p *Pool) Acquire() (*Wallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.order); i++ {
		addr := p.order[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.order)

		state := p.states[addr]
		if state.busy || state.suspended {
			continue
		}
		state.busy = true
		return state.wallet, nil
	}

	return nil, ErrNoWalletAvailable
}

// Release marks a wallet idle again and records the trade outcome. Three
// consecutive failures suspend the wallet from rotation.
func (p *Pool) Release(addr string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, exists := p.states[addr]
	if !exists {
		return
	}

	state.busy = false
	if success {
		state.failureCount = 0
		return
	}

	state.failureCount++
	if state.failureCount >= maxConsecutiveFailures && !state.suspended {
		state.suspended = true
		p.logger.Warn("Wallet suspended after consecutive failures",
			zap.String("wallet", addr),
			zap.Int("failures", state.failureCount))
	}
}

// Resume returns a suspended wallet to rotation and resets its failure
// count. Returns false if the wallet is unknown.
func (p *Pool) Resume(addr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, exists := p.states[addr]
	if !exists {
		return false
	}

	state.suspended = false
	state.failureCount = 0
	p.logger.Info("Wallet resumed", zap.String("wallet", addr))
	return true
}

// Suspended returns the addresses currently out of rotation.
func (p *Pool) Suspended() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, addr := range p.order {
		if p.states[addr].suspended {
			out = append(out, addr)
		}
	}
	return out
}
