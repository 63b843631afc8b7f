package cli

import (
	"testing"

	"github.com/morikuni/failure/v2"
)

func TestEnumFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "allowed", input: "tuning", want: "tuning"},
		{name: "normalized", input: " Training ", want: "training"},
		{name: "rejected", input: "pretraining", want: "inference", wantErr: true},
		{name: "empty", input: "", want: "inference", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEnumFlag("stage", "inference", "inference", "embedding", "tuning", "training")
			err := f.Set(tt.input)
			if tt.wantErr {
				if !failure.Is(err, InvalidFlag) {
					t.Errorf("Set(%q) error = %v, want InvalidFlag", tt.input, err)
				}
			} else if err != nil {
				t.Errorf("Set(%q) error = %v", tt.input, err)
			}
			if f.String() != tt.want {
				t.Errorf("String() = %q, want %q", f.String(), tt.want)
			}
			if f.IsSet == tt.wantErr {
				t.Errorf("IsSet = %v", f.IsSet)
			}
			if f.Type() != "stage" {
				t.Errorf("Type() = %q", f.Type())
			}
		})
	}
}
