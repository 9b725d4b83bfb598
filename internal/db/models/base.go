package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Subscription tiers, ordered. Rank comparisons drive template access
// and upgrade validation.
type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

var tierRanks = map[Tier]int{
	TierFree:         0,
	TierStarter:      1,
	TierProfessional: 2,
	TierEnterprise:   3,
}

func (t Tier) Rank() int {
	return tierRanks[t]
}

func (t Tier) IsValid() bool {
	_, ok := tierRanks[t]
	return ok
}

// AtLeast reports whether this tier meets or exceeds the required tier.
// Unknown tiers rank as free.
func (t Tier) AtLeast(required Tier) bool {
	return t.Rank() >= required.Rank()
}

// JSONMap stores arbitrary key/value data in a jsonb column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, m)
}

// JSONList stores an ordered collection of objects in a jsonb column.
type JSONList []map[string]any

func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *JSONList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, l)
}

// StringList stores a jsonb array of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, l)
}
