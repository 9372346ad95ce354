// Package simulator implements an in-process Argus portal used for
// local development and integration tests: the REST surface, the
// realtime websocket endpoint and a simulated telescope register.
package simulator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/telescopiosnaescola/argus/pkg/api"
)

// User is a registered portal account.
type User struct {
	ID           string
	Email        string
	CompleteName string
	PasswordHash string
	Admin        bool
}

// storedPlan couples a plan with its owner.
type storedPlan struct {
	api.ObservationPlan
	owner string
}

// storedReservation couples a reservation with its owner.
type storedReservation struct {
	api.Reservation
	owner string
}

// store is the in-memory portal state. The portal server is the source
// of truth for the client; here everything lives for the process only.
type store struct {
	mu sync.RWMutex

	users        map[string]*User // keyed by email
	plans        map[int]*storedPlan
	reservations map[int]*storedReservation
	telescope    api.TelescopeStatus

	nextPlanID        int
	nextReservationID int
}

func newStore(telescopeName string) *store {
	return &store{
		users:        make(map[string]*User),
		plans:        make(map[int]*storedPlan),
		reservations: make(map[int]*storedReservation),
		telescope: api.TelescopeStatus{
			Name:   telescopeName,
			Status: "idle",
		},
	}
}

func (s *store) addUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Email]; exists {
		return fmt.Errorf("email %s already registered", u.Email)
	}
	s.users[u.Email] = u
	return nil
}

func (s *store) userByEmail(email string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	return u, ok
}

func (s *store) userEmails() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emails := make([]string, 0, len(s.users))
	for email := range s.users {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

func (s *store) addPlan(owner string, plan api.ObservationPlan) api.ObservationPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPlanID++
	plan.ID = s.nextPlanID
	s.plans[plan.ID] = &storedPlan{ObservationPlan: plan, owner: owner}
	return plan
}

func (s *store) planByID(owner string, id int) (api.ObservationPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok || p.owner != owner {
		return api.ObservationPlan{}, false
	}
	return p.ObservationPlan, true
}

func (s *store) deletePlan(owner string, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok || p.owner != owner {
		return false
	}
	delete(s.plans, id)
	return true
}

func (s *store) plansByOwner(owner string, executed bool) []api.ObservationPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var plans []api.ObservationPlan
	for _, p := range s.plans {
		if p.owner == owner && p.Executed == executed {
			plans = append(plans, p.ObservationPlan)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans
}

func (s *store) markExecuted(id int, executedAt string, outputs string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.plans[id]; ok {
		p.Executed = true
		p.ExecutedAt = executedAt
		p.Outputs = outputs
	}
}

func (s *store) outputOwned(owner, filename string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.owner != owner || !p.Executed {
			continue
		}
		for _, f := range p.OutputFiles() {
			if f == filename {
				return true
			}
		}
	}
	return false
}

func (s *store) addReservation(owner string, r api.Reservation) api.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextReservationID++
	r.ID = s.nextReservationID
	s.reservations[r.ID] = &storedReservation{Reservation: r, owner: owner}
	return r
}

func (s *store) deleteReservation(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return false
	}
	delete(s.reservations, id)
	return true
}

func (s *store) allReservations() []api.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Reservation
	for _, r := range s.reservations {
		out = append(out, r.Reservation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) telescopeStatus() api.TelescopeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telescope
}

func (s *store) setTelescope(update func(*api.TelescopeStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.telescope)
}
