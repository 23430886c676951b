package main

import (
	"reflect"
	"testing"

	"github.com/pipewright/fdkit/internal/session"
)

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		atDash  int
		want    []string
		wantErr bool
	}{
		{
			name:   "plain command",
			args:   []string{"ls"},
			atDash: -1,
			want:   []string{"ls"},
		},
		{
			name:   "everything after dash",
			args:   []string{"ls", "-la"},
			atDash: 0,
			want:   []string{"ls", "-la"},
		},
		{
			name:   "args before and after dash",
			args:   []string{"ignored", "grep", "-r", "todo"},
			atDash: 1,
			want:   []string{"grep", "-r", "todo"},
		},
		{
			name:    "empty",
			args:    []string{},
			atDash:  -1,
			wantErr: true,
		},
		{
			name:    "dash with nothing after",
			args:    []string{},
			atDash:  0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := commandArgs(tt.args, tt.atDash)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("commandArgs: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		rec  session.Record
		want int
	}{
		{
			name: "clean run",
			rec:  session.Record{Status: session.StatusComplete, ExitCode: 0},
			want: 0,
		},
		{
			name: "child exit code",
			rec:  session.Record{Status: session.StatusFailed, ExitCode: 3},
			want: 3,
		},
		{
			name: "signal-terminated child",
			rec:  session.Record{Status: session.StatusFailed, ExitCode: 137},
			want: 137,
		},
		{
			name: "failed without an exit code",
			rec:  session.Record{Status: session.StatusFailed, ExitCode: -1},
			want: 1,
		},
		{
			name: "killed by cancellation",
			rec:  session.Record{Status: session.StatusKilled, ExitCode: -1},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitStatus(&tt.rec); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
