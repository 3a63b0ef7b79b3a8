package domain

import "testing"

func TestJobStatusTerminal(t *testing.T) {
	cases := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusInProgress, false},
		{JobStatusCompleted, true},
		{JobStatusError, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Fatalf("%s.Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
		if !tc.status.Valid() {
			t.Fatalf("%s.Valid() = false", tc.status)
		}
	}
	if JobStatus("running").Valid() {
		t.Fatal("unexpected valid status \"running\"")
	}
}
