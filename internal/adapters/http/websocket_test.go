package http

import "testing"

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		ok   bool
	}{
		{"valid", []float64{-3.0, 43.2, -2.8, 43.3}, true},
		{"too short", []float64{1, 2, 3}, false},
		{"inverted lon", []float64{5, 0, 4, 1}, false},
		{"inverted lat", []float64{0, 5, 1, 4}, false},
		{"latitude out of range", []float64{0, -91, 1, 0}, false},
		{"longitude out of range", []float64{-181, 0, 0, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseBBox(tt.in)
			if ok != tt.ok {
				t.Errorf("parseBBox(%v) ok = %v, want %v", tt.in, ok, tt.ok)
			}
		})
	}
}

func TestBBoxFilter(t *testing.T) {
	bound, ok := parseBBox([]float64{6.0, 46.0, 7.0, 47.0})
	if !ok {
		t.Fatal("expected valid bbox")
	}

	inside := []byte(`{"id":"1","latitude":46.45,"longitude":6.55,"name":"Lake Geneva"}`)
	outside := []byte(`{"id":"2","latitude":47.7,"longitude":-87.5,"name":"Lake Superior"}`)

	if !bboxFilter(nil, outside) {
		t.Error("nil bound should pass everything")
	}
	if !bboxFilter(bound, inside) {
		t.Error("expected point inside bbox to pass")
	}
	if bboxFilter(bound, outside) {
		t.Error("expected point outside bbox to be dropped")
	}
	if bboxFilter(bound, []byte("not json")) {
		t.Error("expected undecodable payload to be dropped")
	}
}
