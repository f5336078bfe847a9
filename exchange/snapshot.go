package exchange

// Snapshot is a read-only copy of a complete pairing.
//
// Collaborators receive a Snapshot instead of the live engine. The zero
// Snapshot is empty.
type Snapshot struct {
	participants map[string]*Participant
}

// Len returns the number of participants.
func (s Snapshot) Len() int {
	return len(s.participants)
}

// IDs returns every participant id, sorted.
func (s Snapshot) IDs() []string {
	return sortedIDs(s.participants)
}

// Participant returns a copy of the participant with the given id.
func (s Snapshot) Participant(id string) (Participant, bool) {
	p, ok := s.participants[id]
	if !ok {
		return Participant{}, false
	}
	return p.clone(), true
}

// Giftee returns the participant id gives a gift to.
func (s Snapshot) Giftee(id string) (Participant, bool) {
	p, ok := s.participants[id]
	if !ok {
		return Participant{}, false
	}
	return s.Participant(p.Giftee)
}

// Admin returns the first admin participant by id order.
func (s Snapshot) Admin() (Participant, bool) {
	for _, id := range s.IDs() {
		if s.participants[id].Admin {
			return s.participants[id].clone(), true
		}
	}
	return Participant{}, false
}

// Pairs returns the giver -> giftee mapping.
func (s Snapshot) Pairs() map[string]string {
	return pairsOf(s.participants)
}

// LiveRecipients returns the sorted ids of participants with an email address.
func (s Snapshot) LiveRecipients() []string {
	return liveRecipientsOf(s.participants)
}

// TestRecipients returns every participant id, sorted.
func (s Snapshot) TestRecipients() []string {
	return s.IDs()
}
