package producer

import "testing"

func TestDecodeJSONReply(t *testing.T) {
	type reply struct {
		Category string  `json:"category"`
		Score    float64 `json:"score"`
	}

	tests := []struct {
		name    string
		input   string
		want    reply
		wantErr bool
	}{
		{
			name:  "plain json",
			input: `{"category": "ring", "score": 0.8}`,
			want:  reply{Category: "ring", Score: 0.8},
		},
		{
			name:  "json fenced with language tag",
			input: "```json\n{\"category\": \"ring\", \"score\": 0.8}\n```",
			want:  reply{Category: "ring", Score: 0.8},
		},
		{
			name:  "json fenced without language tag",
			input: "```\n{\"category\": \"necklace\"}\n```",
			want:  reply{Category: "necklace"},
		},
		{
			name:  "surrounding whitespace",
			input: "  \n{\"category\": \"brooch\"}\n  ",
			want:  reply{Category: "brooch"},
		},
		{
			name:    "prose instead of json",
			input:   "I think this is a ring.",
			wantErr: true,
		},
		{
			name:    "empty reply",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got reply
			err := decodeJSONReply(tt.input, &got)
			if tt.wantErr {
				if err == nil {
					t.Errorf("decodeJSONReply(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeJSONReply(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("decoded = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMimeTypeForFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"jpeg", "image/jpeg"},
		{"jpg", "image/jpeg"},
		{"png", "image/png"},
		{"gif", "image/gif"},
		{"webp", "image/webp"},
		{"tiff", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := mimeTypeForFormat(tt.format); got != tt.want {
			t.Errorf("mimeTypeForFormat(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}
