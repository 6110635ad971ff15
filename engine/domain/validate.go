package domain

import "strings"

// ValidateRecord checks a hospital record at the ingestion boundary.
// Name is required; address and city may be empty.
func ValidateRecord(r HospitalRecord) error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", r.Name, ErrEmptyName)
	}
	return nil
}

// ValidateIntent checks a structured intent before it reaches retrieval.
func ValidateIntent(in Intent) error {
	if !ValidActions[in.Action] {
		return NewValidationError("action", string(in.Action), ErrInvalidAction)
	}
	if in.Limit < 0 {
		return NewValidationError("limit", "", ErrInvalidLimit)
	}
	return nil
}

// Normalize fills the derived fields of a record from its display fields.
func Normalize(r HospitalRecord) HospitalRecord {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.CityExact = strings.ToLower(r.City)
	r.UniqueKey = UniqueKey(r.Name, r.City, r.Address)
	return r
}
