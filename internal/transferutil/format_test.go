package transferutil

import "testing"

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:         "0 B",
		512:       "512 B",
		1024:      "1.00 KB",
		1572864:   "1.50 MB",
		1073741824: "1.00 GB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(1024); got != "1.00 KB/s" {
		t.Errorf("FormatSpeed(1024) = %q, want 1.00 KB/s", got)
	}
}

func TestCalculateETA(t *testing.T) {
	eta, ok := CalculateETA(1000, 100)
	if !ok || eta != 10 {
		t.Errorf("expected eta 10, got %d ok=%v", eta, ok)
	}

	if _, ok := CalculateETA(1000, 0); ok {
		t.Error("expected no ETA when speed is zero")
	}
}
