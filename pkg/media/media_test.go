package media

import "testing"

func TestValidVideoID(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected bool
	}{
		{"standard id", "dQw4w9WgXcQ", true},
		{"underscore and dash", "a_b-c_d-e_f", true},
		{"too short", "abc", false},
		{"too long", "dQw4w9WgXcQQ", false},
		{"empty", "", false},
		{"invalid characters", "dQw4w9WgXc!", false},
		{"whitespace", "dQw4w9WgX Q", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidVideoID(tt.id); got != tt.expected {
				t.Errorf("ValidVideoID(%q) = %v, want %v", tt.id, got, tt.expected)
			}
		})
	}
}

func TestStreamInfo_Normalize(t *testing.T) {
	tests := []struct {
		name         string
		stream       StreamInfo
		wantHLS      bool
		wantMime     string
		wantProtocol string
	}{
		{
			name:         "m3u8 url",
			stream:       StreamInfo{URL: "https://cdn.test/master.m3u8?sig=x"},
			wantHLS:      true,
			wantMime:     "application/vnd.apple.mpegurl",
			wantProtocol: "m3u8",
		},
		{
			name:         "m3u8_native protocol",
			stream:       StreamInfo{URL: "https://cdn.test/seg", Protocol: "m3u8_native"},
			wantHLS:      true,
			wantMime:     "application/vnd.apple.mpegurl",
			wantProtocol: "m3u8_native",
		},
		{
			name:         "progressive stream untouched",
			stream:       StreamInfo{URL: "https://cdn.test/audio.webm", MimeType: "audio/webm", Protocol: "https"},
			wantHLS:      false,
			wantMime:     "audio/webm",
			wantProtocol: "https",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.stream
			s.Normalize()
			if s.IsHLS != tt.wantHLS {
				t.Errorf("IsHLS = %v, want %v", s.IsHLS, tt.wantHLS)
			}
			if s.MimeType != tt.wantMime {
				t.Errorf("MimeType = %q, want %q", s.MimeType, tt.wantMime)
			}
			if s.Protocol != tt.wantProtocol {
				t.Errorf("Protocol = %q, want %q", s.Protocol, tt.wantProtocol)
			}
		})
	}
}
