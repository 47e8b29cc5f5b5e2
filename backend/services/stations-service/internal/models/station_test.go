package models

import "testing"

func connectors(statuses ...Status) []Connector {
	out := make([]Connector, len(statuses))
	for i, st := range statuses {
		out[i] = Connector{ID: ConnectorLabel(i), Type: "Type2", Power: 22, Status: st}
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all available", []Status{StatusAvailable, StatusAvailable}, StatusAvailable},
		{"one available wins", []Status{StatusOccupied, StatusBroken, StatusAvailable}, StatusAvailable},
		{"all occupied", []Status{StatusOccupied, StatusOccupied}, StatusOccupied},
		{"broken over occupied", []Status{StatusOccupied, StatusBroken}, StatusBroken},
		{"all broken", []Status{StatusBroken}, StatusBroken},
		{"no connectors", nil, StatusAvailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(connectors(tc.statuses...)); got != tc.want {
				t.Fatalf("DeriveStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStatusConsistent(t *testing.T) {
	station := Station{
		Status:     StatusAvailable,
		Connectors: connectors(StatusOccupied, StatusAvailable),
	}
	if !station.StatusConsistent() {
		t.Fatal("expected consistent status")
	}

	station.Connectors[1].Status = StatusOccupied
	if station.StatusConsistent() {
		t.Fatal("expected inconsistent status after connector change")
	}
	station.Recompute()
	if station.Status != StatusOccupied {
		t.Fatalf("Recompute produced %q, want %q", station.Status, StatusOccupied)
	}
}

func TestConnectorLabel(t *testing.T) {
	if got := ConnectorLabel(0); got != "#1" {
		t.Fatalf("ConnectorLabel(0) = %q, want #1", got)
	}
	if got := ConnectorLabel(1); got != "#2" {
		t.Fatalf("ConnectorLabel(1) = %q, want #2", got)
	}
}

func TestNormalizeLegacyShape(t *testing.T) {
	station := Station{
		ID:             "st-1",
		Status:         StatusOccupied,
		ConnectorType:  "CCS",
		ConnectorCount: 2,
		Power:          50,
	}

	station.Normalize()

	if len(station.Connectors) != 2 {
		t.Fatalf("expected 2 connectors, got %d", len(station.Connectors))
	}
	for _, c := range station.Connectors {
		if c.Type != "CCS" || c.Power != 50 || c.Status != StatusOccupied {
			t.Fatalf("unexpected connector after normalization: %+v", c)
		}
	}
	if station.ConnectorType != "" || station.ConnectorCount != 0 || station.Power != 0 {
		t.Fatal("legacy fields should be cleared")
	}
	if station.Status != StatusOccupied {
		t.Fatalf("aggregate = %q, want occupied", station.Status)
	}
}

func TestNormalizeMovesStationReceiptToConnector(t *testing.T) {
	receipt := &CheckIn{
		UserID:            "u1",
		UserName:          "Ana",
		Status:            StatusOccupied,
		ConnectorID:       "st-1-c1",
		ConnectorLabel:    "#1",
		Timestamp:         1700000000000,
		EstimatedDuration: 30,
	}
	station := Station{
		ID:          "st-1",
		Status:      StatusOccupied,
		LastCheckin: receipt,
		Connectors: []Connector{
			{ID: "st-1-c1", Type: "Type2", Power: 22, Status: StatusOccupied},
		},
	}

	station.Normalize()

	c, _ := station.Connector("st-1-c1")
	if c.LastCheckin == nil {
		t.Fatal("expected receipt to be moved onto the connector")
	}
	if c.LastCheckin.UserID != "u1" || c.LastCheckin.EstimatedDuration != 30 {
		t.Fatalf("unexpected connector receipt: %+v", c.LastCheckin)
	}

	// Second pass must not duplicate or overwrite anything.
	station.Normalize()
	if c, _ := station.Connector("st-1-c1"); c.LastCheckin.UserID != "u1" {
		t.Fatal("Normalize is not idempotent")
	}
}

func TestNormalizeCoercesInvalidStatuses(t *testing.T) {
	station := Station{
		ID: "st-2",
		Connectors: []Connector{
			{ID: "a", Status: Status("charging")},
			{ID: "b", Status: StatusBroken},
		},
	}
	station.Normalize()
	if station.Connectors[0].Status != StatusAvailable {
		t.Fatalf("invalid status coerced to %q, want available", station.Connectors[0].Status)
	}
	if station.Status != StatusAvailable {
		t.Fatalf("aggregate = %q, want available", station.Status)
	}
}
