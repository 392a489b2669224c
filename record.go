package business

// Record is implemented by every type a business manages. A nil ID marks a
// record that has not been persisted yet.
type Record interface {
	GetID() *int64
	SetID(id int64)
}

// Model is an embeddable Record implementation.
type Model struct {
	ID *int64 `json:"id,omitempty"`
}

// GetID returns the identity, nil when the record is new.
func (m *Model) GetID() *int64 {
	if m == nil {
		return nil
	}
	return m.ID
}

// SetID assigns the identity.
func (m *Model) SetID(id int64) {
	m.ID = &id
}

// IsNew reports whether r has no identity yet.
func IsNew(r Record) bool {
	return r.GetID() == nil
}
