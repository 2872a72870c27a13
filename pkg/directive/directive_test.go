package directive

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantChannel string
		wantThread  string
		wantBody    string
	}{
		{
			name:        "hash channel name",
			text:        "#general hello",
			wantChannel: "general",
			wantBody:    "hello",
		},
		{
			name:     "hash with no following whitespace is plain text",
			text:     "#generalNoSpace",
			wantBody: "#generalNoSpace",
		},
		{
			name:     "hash not at start is plain text",
			text:     "Issue #123 text",
			wantBody: "Issue #123 text",
		},
		{
			name:        "hash body keeps embedded newline",
			text:        "#general line1\nline2",
			wantChannel: "general",
			wantBody:    "line1\nline2",
		},
		{
			name:        "bracketed thread reply",
			text:        "[C0123ABCD|1700000000.000100] on it",
			wantChannel: "C0123ABCD",
			wantThread:  "1700000000.000100",
			wantBody:    "on it",
		},
		{
			name:        "explicit channel id",
			text:        "C0123ABCD deploy finished",
			wantChannel: "C0123ABCD",
			wantBody:    "deploy finished",
		},
		{
			name:     "short uppercase token is plain text",
			text:     "CI passed on main",
			wantBody: "CI passed on main",
		},
		{
			name:     "long id with no body is plain text",
			text:     "C0123ABCD",
			wantBody: "C0123ABCD",
		},
		{
			name:     "no directive returns text untrimmed",
			text:     "  leading space stays  ",
			wantBody: "  leading space stays  ",
		},
		{
			name:     "lowercase-led token is plain text",
			text:     "c0123abcd hello",
			wantBody: "c0123abcd hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, body := Parse(tt.text)
			gotChannel, gotThread := "", ""
			if d != nil {
				gotChannel, gotThread = d.TargetChannel, d.ThreadID
			}
			if gotChannel != tt.wantChannel {
				t.Errorf("channel = %q, want %q", gotChannel, tt.wantChannel)
			}
			if gotThread != tt.wantThread {
				t.Errorf("thread = %q, want %q", gotThread, tt.wantThread)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}
