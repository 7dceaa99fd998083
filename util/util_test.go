package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	if Roundup(13, 4) != 16 {
		t.Fatalf("Roundup(13,4) = %d, want 16", Roundup(13, 4))
	}
	if Roundup(16, 4) != 16 {
		t.Fatalf("Roundup(16,4) = %d, want 16", Roundup(16, 4))
	}
	if Rounddown(13, 4) != 12 {
		t.Fatalf("Rounddown(13,4) = %d, want 12", Rounddown(13, 4))
	}
}

func TestPages(t *testing.T) {
	cases := []struct{ nbytes, pagesz, want uint32 }{
		{0, 4096, 0},
		{1, 4096, 1},
		{4096, 4096, 1},
		{4097, 4096, 2},
	}
	for _, c := range cases {
		if got := Pages(c.nbytes, c.pagesz); got != c.want {
			t.Errorf("Pages(%d,%d) = %d, want %d", c.nbytes, c.pagesz, got, c.want)
		}
	}
}

func TestReadnWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 4, 4, 0xdeadbeef)
	if got := Readn(buf, 4, 4); got != int(uint32(0xdeadbeef)) {
		t.Fatalf("Readn after Writen = %#x, want %#x", got, uint32(0xdeadbeef))
	}
}

func TestMin(t *testing.T) {
	if Min(3, 5) != 3 || Min(5, 3) != 3 {
		t.Fatalf("Min incorrect")
	}
}
