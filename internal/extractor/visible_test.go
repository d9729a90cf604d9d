package extractor

import "testing"

func TestVisibleText(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"blocks",
			`<html><head><title>t</title></head><body><h1>Pricing</h1><p>Charge   per
seat.</p><script>var x = 1;</script><ul><li>one</li><li>two</li></ul></body></html>`,
			"Pricing\n\nCharge per seat.\n\none\n\ntwo",
		},
		{"entities decoded once", `<p>a &amp;lt; b</p>`, "a &lt; b"},
		{"inline runs join", `<p>bold <b>move</b> here</p>`, "bold move here"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VisibleText(tt.doc); got != tt.want {
				t.Errorf("VisibleText = %q, want %q", got, tt.want)
			}
		})
	}
}
