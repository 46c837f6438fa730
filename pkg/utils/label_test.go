package utils

import "testing"

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{
			"both empty",
			Label{}, Label{}, Label{},
		},
		{
			"existing empty takes incoming",
			Label{},
			Label{Value: "a", Source: "s1"},
			Label{Value: "a", Source: "s1"},
		},
		{
			"incoming empty keeps existing",
			Label{Value: "a", Source: "s1"},
			Label{},
			Label{Value: "a", Source: "s1"},
		},
		{
			"values accumulate with pipe, sources with comma",
			Label{Value: "a", Source: "s1"},
			Label{Value: "b", Source: "s2"},
			Label{Value: "a|b", Source: "s1,s2"},
		},
		{
			"missing existing source adopts incoming",
			Label{Value: "a"},
			Label{Value: "b", Source: "s2"},
			Label{Value: "a|b", Source: "s2"},
		},
		{
			"missing incoming source keeps existing",
			Label{Value: "a", Source: "s1"},
			Label{Value: "b"},
			Label{Value: "a|b", Source: "s1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeLabel(tt.existing, tt.incoming)
			if got != tt.want {
				t.Errorf("MergeLabel(%+v, %+v) = %+v, want %+v", tt.existing, tt.incoming, got, tt.want)
			}
		})
	}
}

func TestMergeLabel_Chained(t *testing.T) {
	merged := Label{}
	for _, l := range []Label{
		{Value: "personal", Source: "recall"},
		{Value: "similar_users", Source: "recall"},
	} {
		merged = MergeLabel(merged, l)
	}
	if merged.Value != "personal|similar_users" {
		t.Errorf("value = %q", merged.Value)
	}
	if merged.Source != "recall,recall" {
		t.Errorf("source = %q", merged.Source)
	}
}
