package models

import "fmt"

// Status enumerates the states a connector (and, derived from those, a
// station) can be in. No other values are permitted in persisted documents.
type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusBroken    Status = "broken"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusBroken:
		return true
	}
	return false
}

// CheckIn is the receipt of a user-submitted status report. Receipts are
// immutable: a new check-in replaces the previous receipt wholesale.
type CheckIn struct {
	UserID            string `json:"userId"`
	UserName          string `json:"userName"`
	Status            Status `json:"status"`
	ConnectorID       string `json:"connectorId,omitempty"`
	ConnectorLabel    string `json:"connectorLabel,omitempty"`
	Timestamp         int64  `json:"timestamp"`
	EstimatedDuration int    `json:"estimatedDuration,omitempty"`
}

// Connector is one physical charging point at a station. Its status is the
// atomic unit of truth; the station status is derived from the set of them.
type Connector struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Power       float64  `json:"power"`
	Status      Status   `json:"status"`
	LastCheckin *CheckIn `json:"lastCheckin,omitempty"`
}

// Station is a charging location. Connector order is display-significant:
// the 1-based position is shown to users as the connector label.
type Station struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Status      Status      `json:"status"`
	Connectors  []Connector `json:"connectors"`
	Operator    string      `json:"operator"`
	LastCheckin *CheckIn    `json:"lastCheckin,omitempty"`

	// Legacy single-connector fields, still present in older documents.
	// Normalize folds them into Connectors; application logic never reads them.
	ConnectorType  string  `json:"connectorType,omitempty"`
	ConnectorCount int     `json:"connectorCount,omitempty"`
	Power          float64 `json:"power,omitempty"`
}

// DeriveStatus computes the aggregate station status: available if any
// connector is available, else broken if any connector is broken, else
// occupied. An empty connector list derives available.
func DeriveStatus(connectors []Connector) Status {
	if len(connectors) == 0 {
		return StatusAvailable
	}
	anyBroken := false
	for _, c := range connectors {
		switch c.Status {
		case StatusAvailable:
			return StatusAvailable
		case StatusBroken:
			anyBroken = true
		}
	}
	if anyBroken {
		return StatusBroken
	}
	return StatusOccupied
}

// ConnectorLabel renders the user-facing label for the connector at the given
// zero-based position, e.g. "#2".
func ConnectorLabel(position int) string {
	return fmt.Sprintf("#%d", position+1)
}

// Recompute refreshes the derived aggregate status from the connector list.
func (s *Station) Recompute() {
	s.Status = DeriveStatus(s.Connectors)
}

// StatusConsistent reports whether the stored aggregate status matches the
// one derived from the connectors.
func (s *Station) StatusConsistent() bool {
	return s.Status == DeriveStatus(s.Connectors)
}

// Connector returns a pointer to the connector with the given id along with
// its zero-based position, or nil when no such connector exists.
func (s *Station) Connector(id string) (*Connector, int) {
	for i := range s.Connectors {
		if s.Connectors[i].ID == id {
			return &s.Connectors[i], i
		}
	}
	return nil, -1
}

// CloneConnectors returns a copy of the connector list safe to mutate
// without touching the receiver.
func (s *Station) CloneConnectors() []Connector {
	if s.Connectors == nil {
		return nil
	}
	out := make([]Connector, len(s.Connectors))
	copy(out, s.Connectors)
	return out
}

// Normalize rewrites a legacy-shaped station into the current schema:
// single connectorType/connectorCount/power fields become a connectors array,
// a station-level receipt that names a connector is moved onto that connector,
// unknown statuses are coerced to available, and the aggregate is recomputed.
// Idempotent; called once wherever documents are read.
func (s *Station) Normalize() {
	if len(s.Connectors) == 0 && (s.ConnectorType != "" || s.ConnectorCount > 0 || s.Power > 0) {
		count := s.ConnectorCount
		if count <= 0 {
			count = 1
		}
		status := s.Status
		if !status.Valid() {
			status = StatusAvailable
		}
		s.Connectors = make([]Connector, count)
		for i := range s.Connectors {
			s.Connectors[i] = Connector{
				ID:     fmt.Sprintf("%s-c%d", s.ID, i+1),
				Type:   s.ConnectorType,
				Power:  s.Power,
				Status: status,
			}
		}
	}
	s.ConnectorType = ""
	s.ConnectorCount = 0
	s.Power = 0

	for i := range s.Connectors {
		if !s.Connectors[i].Status.Valid() {
			s.Connectors[i].Status = StatusAvailable
		}
	}

	if s.LastCheckin != nil && s.LastCheckin.ConnectorID != "" {
		if c, _ := s.Connector(s.LastCheckin.ConnectorID); c != nil && c.LastCheckin == nil && c.Status == StatusOccupied {
			receipt := *s.LastCheckin
			c.LastCheckin = &receipt
		}
	}

	s.Recompute()
}
