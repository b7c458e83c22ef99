package ring

import "testing"

func TestSpaceFromHexString(t *testing.T) {
	tests := []struct {
		name    string
		bits    int
		hexID   string
		wantErr bool
	}{
		{name: "8bit max", bits: 8, hexID: "0xff", wantErr: false},
		{name: "8bit zero", bits: 8, hexID: "0x00", wantErr: false},
		{name: "13bit within range", bits: 13, hexID: "0x1fff", wantErr: false},
		{name: "13bit overflow", bits: 13, hexID: "0x2000", wantErr: true},
		{name: "empty", bits: 8, hexID: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp, err := NewSpace(tt.bits)
			if err != nil {
				t.Fatalf("NewSpace failed: %v", err)
			}
			_, err = sp.FromHexString(tt.hexID)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromHexString(%q) error = %v, wantErr %v", tt.hexID, err, tt.wantErr)
			}
		})
	}
}

func TestIDBetween(t *testing.T) {
	sp, _ := NewSpace(8)
	mk := func(h string) ID {
		id, err := sp.FromHexString(h)
		if err != nil {
			t.Fatalf("FromHexString(%q): %v", h, err)
		}
		return id
	}

	tests := []struct {
		name    string
		x, a, b string
		want    bool
	}{
		{name: "linear inside", x: "0x05", a: "0x01", b: "0x0a", want: true},
		{name: "linear at boundary b", x: "0x0a", a: "0x01", b: "0x0a", want: true},
		{name: "linear at boundary a excluded", x: "0x01", a: "0x01", b: "0x0a", want: false},
		{name: "linear outside", x: "0x0b", a: "0x01", b: "0x0a", want: false},
		{name: "wrap around inside", x: "0xf0", a: "0xe0", b: "0x05", want: true},
		{name: "wrap around outside", x: "0x50", a: "0xe0", b: "0x05", want: false},
		{name: "degenerate whole ring", x: "0x42", a: "0x10", b: "0x10", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, a, b := mk(tt.x), mk(tt.a), mk(tt.b)
			if got := x.Between(a, b); got != tt.want {
				t.Errorf("Between(%s, %s, %s) = %v, want %v", tt.x, tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAddModWraps(t *testing.T) {
	sp, _ := NewSpace(8)
	a, _ := sp.FromHexString("0xf0")
	b, _ := sp.FromHexString("0x20")
	got, err := sp.AddMod(a, b)
	if err != nil {
		t.Fatalf("AddMod failed: %v", err)
	}
	if got.ToHexString() != "10" {
		t.Errorf("AddMod(0xf0, 0x20) = %s, want 10", got.ToHexString())
	}
}

func TestPowerOfTwoMod(t *testing.T) {
	sp, _ := NewSpace(8)
	got := sp.PowerOfTwoMod(3)
	if got.ToHexString() != "08" {
		t.Errorf("PowerOfTwoMod(3) = %s, want 08", got.ToHexString())
	}
	wrapped := sp.PowerOfTwoMod(9)
	if wrapped.ToHexString() != "00" {
		t.Errorf("PowerOfTwoMod(9) = %s, want 00 (out of range)", wrapped.ToHexString())
	}
}

func TestSharedPrefixLen(t *testing.T) {
	sp, _ := NewSpace(16)
	a, _ := sp.FromHexString("0xabcd")
	b, _ := sp.FromHexString("0xabef")
	c, _ := sp.FromHexString("0x1234")

	if got := a.SharedPrefixLen(b); got != 2 {
		t.Errorf("SharedPrefixLen(abcd, abef) = %d, want 2", got)
	}
	if got := a.SharedPrefixLen(c); got != 0 {
		t.Errorf("SharedPrefixLen(abcd, 1234) = %d, want 0", got)
	}
	if got := a.SharedPrefixLen(a); got != 4 {
		t.Errorf("SharedPrefixLen(abcd, abcd) = %d, want 4", got)
	}
}

func TestHashIDDeterministicAndInRange(t *testing.T) {
	sp, _ := NewSpace(160)
	id1 := sp.HashID("hello")
	id2 := sp.HashID("hello")
	if !id1.Equal(id2) {
		t.Error("HashID is not deterministic")
	}
	if err := sp.IsValidID(id1); err != nil {
		t.Errorf("HashID produced invalid id: %v", err)
	}
	if sp.HashID("hello").Equal(sp.HashID("world")) {
		t.Error("HashID collided on distinct inputs (extremely unlikely, check implementation)")
	}
}
