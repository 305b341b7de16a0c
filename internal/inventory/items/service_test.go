package items

import "testing"

func TestAdjustAvailable(t *testing.T) {
	cases := []struct {
		name     string
		oldQty   int
		newQty   int
		avail    int
		want     int
		wantCode Code
	}{
		{name: "increase total adds to available", oldQty: 10, newQty: 15, avail: 4, want: 9},
		{name: "decrease within free stock", oldQty: 10, newQty: 7, avail: 4, want: 1},
		{name: "decrease to exactly outstanding", oldQty: 10, newQty: 6, avail: 4, want: 0},
		{name: "decrease below outstanding refused", oldQty: 10, newQty: 5, avail: 4, wantCode: CodeConflict},
		{name: "unchanged total keeps available", oldQty: 10, newQty: 10, avail: 4, want: 4},
		{name: "negative total refused", oldQty: 10, newQty: -1, avail: 10, wantCode: CodeInvalidArgument},
		{name: "everything on loan then grow", oldQty: 3, newQty: 5, avail: 0, want: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := adjustAvailable(tc.oldQty, tc.newQty, tc.avail)
			if tc.wantCode != "" {
				if !hasCode(err, tc.wantCode) {
					t.Fatalf("want code %s, got err=%v", tc.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want available %d, got %d", tc.want, got)
			}
		})
	}
}

func TestParseExpiryDate(t *testing.T) {
	if _, err := parseExpiryDate("2026-12-31"); err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	if _, err := parseExpiryDate(" 2026-01-02 "); err != nil {
		t.Fatalf("surrounding spaces should be tolerated: %v", err)
	}
	for _, bad := range []string{"31-12-2026", "2026/12/31", "soon", ""} {
		if _, err := parseExpiryDate(bad); !hasCode(err, CodeInvalidArgument) {
			t.Fatalf("parseExpiryDate(%q): want INVALID_ARGUMENT, got %v", bad, err)
		}
	}
}
