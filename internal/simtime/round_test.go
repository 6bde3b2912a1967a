package simtime

import "testing"

func TestPrecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"0", 1},
		{"1.2000", 2},
		{"0.0012", 2},
		{"1200", 2},
		{"1.0005", 5},
	}
	for _, tt := range tests {
		if got := MustParse(tt.in).Precision(); got != tt.want {
			t.Errorf("Precision(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRoundSignificant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		precision int
		mode      Rounding
		want      string
	}{
		{"1.0004", 4, Floor, "1.000"},
		{"1.0004", 4, Ceiling, "1.001"},
		{"1.0004", 1, Floor, "1"},
		{"1.0004", 1, Ceiling, "2"},
		{"999", 2, Ceiling, "1000"},
		{"12.5", 5, Floor, "12.5"},
		{"-1.25", 2, Floor, "-1.3"},
		{"-1.25", 2, Ceiling, "-1.2"},
		{"0.123456", 3, Floor, "0.123"},
	}
	for _, tt := range tests {
		got := MustParse(tt.in).RoundSignificant(tt.precision, tt.mode)
		if !got.Equal(MustParse(tt.want)) {
			t.Errorf("RoundSignificant(%s, %d, %d) = %s, want %s", tt.in, tt.precision, tt.mode, got, tt.want)
		}
	}
}

func TestRoundSignificantKeepsRequestedDigits(t *testing.T) {
	t.Parallel()

	got := MustParse("1.0004").RoundSignificant(4, Floor)
	if got.Digits() != 4 {
		t.Errorf("Digits = %d, want 4 (got %s)", got.Digits(), got.PlainString())
	}
	if got.PlainString() != "1.000" {
		t.Errorf("PlainString = %s, want 1.000", got.PlainString())
	}
}

func TestShortestWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		t, lo, hi string
		want      string
	}{
		{name: "collapses to integer boundary", t: "1.0005", lo: "1.0000", hi: "1.0010", want: "1"},
		{name: "prefers trailing five", t: "0.123456", lo: "0.1234", hi: "0.1236", want: "0.1235"},
		{name: "single point range", t: "2.5", lo: "2.5", hi: "2.5", want: "2.5"},
		{name: "wide range", t: "37.129", lo: "30", hi: "45", want: "40"},
		{name: "zero", t: "0", lo: "0", hi: "0.001", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lo, hi := MustParse(tt.lo), MustParse(tt.hi)
			got := ShortestWithin(MustParse(tt.t), lo, hi)
			if got.Less(lo) || hi.Less(got) {
				t.Fatalf("ShortestWithin = %s, outside [%s, %s]", got, lo, hi)
			}
			if !got.Equal(MustParse(tt.want)) {
				t.Errorf("ShortestWithin = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShortestWithinHasFewestDigits(t *testing.T) {
	t.Parallel()

	lo, hi := MustParse("1.0000"), MustParse("1.0010")
	for _, s := range []string{"1.0001", "1.0003", "1.0007", "1.00099"} {
		got := ShortestWithin(MustParse(s), lo, hi)
		if got.Less(lo) || hi.Less(got) {
			t.Errorf("ShortestWithin(%s) = %s, outside range", s, got)
		}
		if got.Precision() != 1 {
			t.Errorf("ShortestWithin(%s) = %s, want a single significant digit", s, got)
		}
	}
}

func TestCommonPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b, want string
	}{
		{"1.23", "1.25", "1.2"},
		{"1.2", "1.25", "1.2"},
		{"9.5", "10.5", ""},
		{"100", "100", "100"},
	}
	for _, tt := range tests {
		if got := CommonPrefix(MustParse(tt.a), MustParse(tt.b)); got != tt.want {
			t.Errorf("CommonPrefix(%s, %s) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
