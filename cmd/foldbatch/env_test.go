package main

import (
	"os"
	"testing"

	"github.com/spf13/cobra"
)

func TestBindEnv(t *testing.T) {
	const envName = "FOLDBATCH_SEEDS_ROOT"
	tests := []struct {
		name     string
		envValue string
		flagArgs []string
		want     string
	}{
		{
			name: "nothing set keeps default",
			want: "",
		},
		{
			name:     "env variable fills flag",
			envValue: "/data/seeds",
			want:     "/data/seeds",
		},
		{
			name:     "explicit flag beats env",
			envValue: "/data/seeds",
			flagArgs: []string{"--seeds-root=/other"},
			want:     "/other",
		},
	}
	for _, tt := range tests {
		if err := os.Unsetenv(envName); err != nil {
			t.Errorf("Error clearing %s: %s", envName, err.Error())
		}
		if tt.envValue != "" {
			if err := os.Setenv(envName, tt.envValue); err != nil {
				t.Errorf("Error setting %s: %s", envName, err.Error())
			}
		}
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "run"}
			cmd.Flags().String("seeds-root", "", "")
			if len(tt.flagArgs) > 0 {
				if err := cmd.Flags().Parse(tt.flagArgs); err != nil {
					t.Fatalf("parsing flags: %s", err.Error())
				}
			}
			if err := bindEnv("FOLDBATCH_", cmd); err != nil {
				t.Fatalf("bindEnv: %s", err.Error())
			}
			if got, _ := cmd.Flags().GetString("seeds-root"); got != tt.want {
				t.Errorf("seeds-root = %v, want %v", got, tt.want)
			}
		})
	}
	if err := os.Unsetenv(envName); err != nil {
		t.Errorf("Error clearing %s: %s", envName, err.Error())
	}
}

func TestMaybeInjectRootAlias(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "bare flags get run injected",
			args: []string{"foldbatch", "--seeds-root", "/data"},
			want: []string{"foldbatch", "run", "--seeds-root", "/data"},
		},
		{
			name: "existing subcommand untouched",
			args: []string{"foldbatch", "version"},
			want: []string{"foldbatch", "version"},
		},
		{
			name: "help untouched",
			args: []string{"foldbatch", "help"},
			want: []string{"foldbatch", "help"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := os.Args
			defer func() { os.Args = orig }()

			os.Args = tt.args
			maybeInjectRootAlias(newRootCmd(), "run")
			if len(os.Args) != len(tt.want) {
				t.Fatalf("os.Args = %v, want %v", os.Args, tt.want)
			}
			for i := range tt.want {
				if os.Args[i] != tt.want[i] {
					t.Errorf("os.Args = %v, want %v", os.Args, tt.want)
					break
				}
			}
		})
	}
}
