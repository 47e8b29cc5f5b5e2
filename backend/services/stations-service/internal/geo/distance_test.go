package geo

import (
	"math"
	"testing"
)

func TestDistanceIdenticalPointsIsZero(t *testing.T) {
	if d := Distance(-34.9011, -56.1645, -34.9011, -56.1645); d != 0 {
		t.Fatalf("distance between identical points = %v, want 0", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Distance(-34.9011, -56.1645, -34.8941, -56.0675)
	b := Distance(-34.8941, -56.0675, -34.9011, -56.1645)
	if a != b {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// Montevideo centro to Punta del Este, roughly 98 km.
	d := Distance(-34.9011, -56.1645, -34.9608, -54.9444)
	if math.Abs(d-111.3) > 5 {
		t.Fatalf("unexpected distance %v km", d)
	}
}

func TestDistanceSmallScale(t *testing.T) {
	// One thousandth of a degree of latitude is about 111 m.
	d := Distance(-34.9011, -56.1645, -34.9001, -56.1645)
	if d < 0.10 || d > 0.13 {
		t.Fatalf("expected ~0.111 km, got %v", d)
	}
}
