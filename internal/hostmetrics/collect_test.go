package hostmetrics

import "testing"

func TestCollectReturnsNonNegativeValues(t *testing.T) {
	snap := Collect()

	if snap.CPUPercent < 0 {
		t.Errorf("got negative CPUPercent %f", snap.CPUPercent)
	}
	if snap.MemUsed > snap.MemTotal && snap.MemTotal > 0 {
		t.Errorf("got MemUsed %d > MemTotal %d", snap.MemUsed, snap.MemTotal)
	}
}
