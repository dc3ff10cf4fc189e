package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
)

// Memory is a mutex-guarded in-process Ledger, used as the engine's token
// backend in tests and single-node deployments.
type Memory struct {
	mu          sync.RWMutex
	balances    map[account.Account]*uint256.Int
	allowances  map[account.Account]map[account.Account]*uint256.Int
	totalSupply *uint256.Int
}

func NewMemory() *Memory {
	return &Memory{
		balances:    make(map[account.Account]*uint256.Int),
		allowances:  make(map[account.Account]map[account.Account]*uint256.Int),
		totalSupply: uint256.NewInt(0),
	}
}

func (m *Memory) balance(a account.Account) *uint256.Int {
	if b, ok := m.balances[a]; ok {
		return b
	}
	return uint256.NewInt(0)
}

func (m *Memory) Mint(_ context.Context, to account.Account, amt *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSupply, err := amount.Add(m.totalSupply, amt)
	if err != nil {
		return fmt.Errorf("mint to %s: %w", to, err)
	}
	newBalance, err := amount.Add(m.balance(to), amt)
	if err != nil {
		return fmt.Errorf("mint to %s: %w", to, err)
	}
	m.totalSupply = newSupply
	m.balances[to] = newBalance
	return nil
}

func (m *Memory) Burn(_ context.Context, from account.Account, amt *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.balance(from)
	if b.Lt(amt) {
		return fmt.Errorf("burn %s from %s holding %s: %w", amt.Dec(), from, b.Dec(), ErrInsufficientBalance)
	}
	m.balances[from] = new(uint256.Int).Sub(b, amt)
	m.totalSupply = new(uint256.Int).Sub(m.totalSupply, amt)
	return nil
}

func (m *Memory) Transfer(_ context.Context, from, to account.Account, amt *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transferLocked(from, to, amt)
}

func (m *Memory) transferLocked(from, to account.Account, amt *uint256.Int) error {
	b := m.balance(from)
	if b.Lt(amt) {
		return fmt.Errorf("transfer %s from %s holding %s: %w", amt.Dec(), from, b.Dec(), ErrInsufficientBalance)
	}
	newTo, err := amount.Add(m.balance(to), amt)
	if err != nil {
		return fmt.Errorf("transfer to %s: %w", to, err)
	}
	m.balances[from] = new(uint256.Int).Sub(b, amt)
	m.balances[to] = newTo
	return nil
}

func (m *Memory) TransferFrom(_ context.Context, spender, from, to account.Account, amt *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := m.allowance(from, spender)
	if allowed.Lt(amt) {
		return fmt.Errorf("spender %s approved for %s of %s: %w", spender, allowed.Dec(), amt.Dec(), ErrInsufficientAllowance)
	}
	if err := m.transferLocked(from, to, amt); err != nil {
		return err
	}
	m.allowances[from][spender] = new(uint256.Int).Sub(allowed, amt)
	return nil
}

func (m *Memory) Approve(_ context.Context, owner, spender account.Account, amt *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allowances[owner] == nil {
		m.allowances[owner] = make(map[account.Account]*uint256.Int)
	}
	m.allowances[owner][spender] = new(uint256.Int).Set(amt)
	return nil
}

func (m *Memory) allowance(owner, spender account.Account) *uint256.Int {
	if byOwner, ok := m.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return a
		}
	}
	return uint256.NewInt(0)
}

func (m *Memory) BalanceOf(_ context.Context, a account.Account) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(uint256.Int).Set(m.balance(a)), nil
}

func (m *Memory) Allowance(_ context.Context, owner, spender account.Account) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(uint256.Int).Set(m.allowance(owner, spender)), nil
}

func (m *Memory) TotalSupply(_ context.Context) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(uint256.Int).Set(m.totalSupply), nil
}
