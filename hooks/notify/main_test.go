package main

import "testing"

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"entered", Request{Event: "player_entered", Players: []int{1, 2}}, "Player 1, 2 entered"},
		{"left", Request{Event: "player_left", Players: []int{4}}, "Player 4 left"},
		{"calibrated", Request{Event: "calibrated", Distances: map[int]float64{2: 199.6, 1: 210}}, "Calibrated player 1: 210, player 2: 200"},
		{"unknown", Request{Event: "other"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := message(tt.req); got != tt.want {
				t.Errorf("message() = %q, want %q", got, tt.want)
			}
		})
	}
}
