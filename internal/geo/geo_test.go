package geo

import (
	"math"
	"testing"
)

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{
			name: "same point",
			a:    Point{Lat: 52.3702, Lon: 4.8952},
			b:    Point{Lat: 52.3702, Lon: 4.8952},
			want: 0,
			tol:  0.001,
		},
		{
			name: "amsterdam central to dam square",
			a:    Point{Lat: 52.3791, Lon: 4.9003},
			b:    Point{Lat: 52.3731, Lon: 4.8932},
			want: 828,
			tol:  10,
		},
		{
			name: "one degree of latitude",
			a:    Point{Lat: 0, Lon: 0},
			b:    Point{Lat: 1, Lon: 0},
			want: 111195,
			tol:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceMeters() = %.1f, want %.1f (±%.1f)", got, tt.want, tt.tol)
			}
		})
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := Point{Lat: 52.3791, Lon: 4.9003}
	b := Point{Lat: 52.3731, Lon: 4.8932}

	if d1, d2 := DistanceMeters(a, b), DistanceMeters(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestPoint_Valid(t *testing.T) {
	if !(Point{Lat: 52.37, Lon: 4.89}).Valid() {
		t.Error("expected valid point")
	}
	if (Point{Lat: 91, Lon: 0}).Valid() {
		t.Error("expected invalid latitude to be rejected")
	}
	if (Point{Lat: 0, Lon: -181}).Valid() {
		t.Error("expected invalid longitude to be rejected")
	}
}
