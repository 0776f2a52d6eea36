package chips

import "testing"

func TestPartitionAcceptsIsComplementary(t *testing.T) {
	for cx := range 14 {
		for cy := range 14 {
			train := Training.partitionAccepts(cx, cy)
			eval := Evaluation.partitionAccepts(cx, cy)
			if train == eval {
				t.Fatalf("cx=%d cy=%d: training=%v evaluation=%v should disagree", cx, cy, train, eval)
			}
		}
	}
}

func TestModeProducing(t *testing.T) {
	cases := map[Mode]bool{
		Stopped:    false,
		Training:   true,
		Evaluation: true,
		Inference:  false,
	}
	for mode, want := range cases {
		if got := mode.producing(); got != want {
			t.Errorf("%s.producing() = %v, want %v", mode, got, want)
		}
	}
}
