package models

import (
	"encoding/json"
	"testing"
)

func TestStatJSON(t *testing.T) {
	tests := []struct {
		name string
		stat Stat
		want string
	}{
		{"zero count", Count(0), `0`},
		{"count", Count(42), `42`},
		{"failure", Failed("timeout"), `"Error: timeout"`},
		{"unavailable", Unavailable(), `"N/A"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.stat)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}

			var decoded Stat
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if decoded != tt.stat {
				t.Errorf("decoded %+v, want %+v", decoded, tt.stat)
			}
		})
	}
}

func TestStatZeroIsNotFailure(t *testing.T) {
	if !Count(0).OK() {
		t.Error("zero count should be a valid stat")
	}
	if Failed("boom").OK() {
		t.Error("failed stat should not be OK")
	}
}

func TestEnrolledUserRoles(t *testing.T) {
	tests := []struct {
		name        string
		roles       []string
		wantTeacher bool
		wantStudent bool
	}{
		{"no roles", nil, false, true},
		{"student", []string{"student"}, false, true},
		{"editing teacher", []string{"editingteacher"}, true, false},
		{"teacher", []string{"teacher"}, true, false},
		{"student then teacher", []string{"student", "teacher"}, true, true},
		{"manager then student", []string{"manager", "student"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := EnrolledUser{ID: 1, Roles: tt.roles}
			if got := u.IsTeacher(); got != tt.wantTeacher {
				t.Errorf("IsTeacher() = %v, want %v", got, tt.wantTeacher)
			}
			if got := u.IsStudent(); got != tt.wantStudent {
				t.Errorf("IsStudent() = %v, want %v", got, tt.wantStudent)
			}
		})
	}
}

func TestHasShortNamePrefix(t *testing.T) {
	c := Course{ShortName: "pdc-101"}
	if !c.HasShortNamePrefix("PDC-") {
		t.Error("expected case-insensitive prefix match")
	}
	if c.HasShortNamePrefix("MATH") {
		t.Error("unexpected prefix match")
	}
	if !c.HasShortNamePrefix("") {
		t.Error("empty prefix should match")
	}

	// U+212A KELVIN SIGN is three bytes and lowercases to "k"
	kelvin := Course{ShortName: "\u212Aurs-1"}
	if !kelvin.HasShortNamePrefix("KUR") {
		t.Error("expected prefix match across a multi-byte rune")
	}
	accented := Course{ShortName: "Éco-201"}
	if !accented.HasShortNamePrefix("éco-") || accented.HasShortNamePrefix("é1") {
		t.Error("unexpected match for a non-ASCII prefix")
	}
}
