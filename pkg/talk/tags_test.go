package talk

import "testing"

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "no markers",
			text: "just plain text",
			want: map[string]string{},
		},
		{
			name: "single marker",
			text: "look at this <vision>front</vision> please",
			want: map[string]string{"vision": "front"},
		},
		{
			name: "empty payload",
			text: "<vision></vision>",
			want: map[string]string{"vision": ""},
		},
		{
			name: "multiple markers",
			text: "<vision>front</vision> and <mood>happy</mood>",
			want: map[string]string{"vision": "front", "mood": "happy"},
		},
		{
			name: "repeated marker keeps the last payload",
			text: "<vision>front</vision> then <vision>rear</vision>",
			want: map[string]string{"vision": "rear"},
		},
		{
			name: "unterminated marker is plain text",
			text: "starts <vision>front but never closes",
			want: map[string]string{},
		},
		{
			name: "mismatched close is plain text",
			text: "<vision>front</mood>",
			want: map[string]string{},
		},
		{
			name: "invalid name with space",
			text: "a < b and c > d",
			want: map[string]string{},
		},
		{
			name: "name starting with digit is not a marker",
			text: "<1up>x</1up>",
			want: map[string]string{},
		},
		{
			name: "angle brackets inside payload",
			text: "<note>x < y</note>",
			want: map[string]string{"note": "x < y"},
		},
		{
			name: "marker after invalid open",
			text: "2 < 3 <vision>left</vision>",
			want: map[string]string{"vision": "left"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTags(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractTags(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("tag %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

// Markers split across stream chunks must still parse once the buffer
// is assembled. Extraction sees only the joined text, so this is the
// contract that matters.
func TestExtractTags_AssembledFromChunks(t *testing.T) {
	chunks := []string{"Let me take a look. <vi", "sion>fr", "ont</vis", "ion> One moment."}
	var text string
	for _, c := range chunks {
		text += c
	}
	tags := ExtractTags(text)
	if tags["vision"] != "front" {
		t.Fatalf("tags = %v, want vision=front", tags)
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "no markers",
			text: "  plain text  ",
			want: "plain text",
		},
		{
			name: "marker removed",
			text: "Let me look. <vision>front</vision>",
			want: "Let me look.",
		},
		{
			name: "marker in the middle",
			text: "before <vision>front</vision> after",
			want: "before  after",
		},
		{
			name: "multiple markers",
			text: "<mood>calm</mood>hello<vision></vision>",
			want: "hello",
		},
		{
			name: "unterminated marker survives",
			text: "keep <vision>this",
			want: "keep <vision>this",
		},
		{
			name: "only a marker",
			text: "<vision>front</vision>",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTags(tt.text); got != tt.want {
				t.Errorf("StripTags(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidTagName(t *testing.T) {
	valid := []string{"vision", "a", "mood_state", "cam-1", "A9"}
	for _, s := range valid {
		if !validTagName(s) {
			t.Errorf("validTagName(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "1up", "-x", "with space", "ünïcode", "a.b"}
	for _, s := range invalid {
		if validTagName(s) {
			t.Errorf("validTagName(%q) = true, want false", s)
		}
	}
}
