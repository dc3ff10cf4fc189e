package rewards

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
)

// ParticipantSnapshot is one participant's bookkeeping at snapshot time.
type ParticipantSnapshot struct {
	Account account.Account
	Stake   *uint256.Int
	Credit  *uint256.Int
	Pending *uint256.Int
}

// Snapshot is a consistent copy of the distributor's full state, suitable
// for durable persistence and later Restore.
type Snapshot struct {
	TotalEligible *uint256.Int
	PerUnit       *uint256.Int
	Remainder     *uint256.Int
	Participants  []ParticipantSnapshot
}

// Snapshot copies the distributor state under the lock. Participants are
// ordered by account for deterministic output.
func (d *Distributor) Snapshot() *Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &Snapshot{
		TotalEligible: amount.Clone(d.totalEligible),
		PerUnit:       amount.Clone(d.perUnit),
		Remainder:     amount.Clone(d.remainder),
		Participants:  make([]ParticipantSnapshot, 0, len(d.participants)),
	}
	for a, p := range d.participants {
		s.Participants = append(s.Participants, ParticipantSnapshot{
			Account: a,
			Stake:   amount.Clone(p.stake),
			Credit:  amount.Clone(p.credit),
			Pending: amount.Clone(p.pending),
		})
	}
	sort.Slice(s.Participants, func(i, j int) bool {
		return s.Participants[i].Account < s.Participants[j].Account
	})
	return s
}

// Restore replaces the distributor state with a previously taken snapshot.
func (d *Distributor) Restore(s *Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.totalEligible = amount.Clone(s.TotalEligible)
	d.perUnit = amount.Clone(s.PerUnit)
	d.remainder = amount.Clone(s.Remainder)
	d.participants = make(map[account.Account]*participant, len(s.Participants))
	for _, ps := range s.Participants {
		d.participants[ps.Account] = &participant{
			stake:   amount.Clone(ps.Stake),
			credit:  amount.Clone(ps.Credit),
			pending: amount.Clone(ps.Pending),
		}
	}
}
