package topic

import "testing"

func TestBuilder(t *testing.T) {
	b := NewBuilder("warden/v1")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"order", b.Order("app-01"), "warden/v1/orders/app-01"},
		{"order result", b.OrderResult("app-01"), "warden/v1/orders/result/app-01"},
		{"order result wildcard", b.OrderResultWildcard(), "warden/v1/orders/result/+"},
		{"checkin", b.Checkin("app-01"), "warden/v1/checkin/app-01"},
		{"checkin wildcard", b.CheckinWildcard(), "warden/v1/checkin/+"},
		{"shared", b.Shared("engine", b.CheckinWildcard()), "$share/engine/warden/v1/checkin/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
