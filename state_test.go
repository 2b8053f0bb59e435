package luainject

import "testing"

func TestUpvalueIndex(t *testing.T) {
	cases := []struct {
		i    int32
		want int32
	}{
		{1, -10003},
		{2, -10004},
		{255, -10257},
	}
	for _, tc := range cases {
		if got := UpvalueIndex(tc.i); got != tc.want {
			t.Fatalf("UpvalueIndex(%d) = %d, want %d", tc.i, got, tc.want)
		}
	}
}

func TestUpvalueIndexBelowGlobals(t *testing.T) {
	if UpvalueIndex(1) >= GlobalsIndex {
		t.Fatal("upvalue pseudo-indices must sit below the globals pseudo-index")
	}
}
