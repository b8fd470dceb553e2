package cache

import "testing"

func TestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "search query",
			key:      Key{Namespace: NamespaceSearch, ID: "daft punk"},
			expected: "tunedeck:search:daft punk",
		},
		{
			name:     "query case and whitespace collapse",
			key:      Key{Namespace: NamespaceSearch, ID: "  Daft   Punk "},
			expected: "tunedeck:search:daft punk",
		},
		{
			name:     "single word query lowercased",
			key:      Key{Namespace: NamespaceSearch, ID: "Adele"},
			expected: "tunedeck:search:adele",
		},
		{
			name:     "video id preserved verbatim",
			key:      Key{Namespace: NamespaceVideoDetails, ID: "dQw4w9WgXcQ"},
			expected: "tunedeck:video_details:dQw4w9WgXcQ",
		},
		{
			name:     "with cursor",
			key:      Key{Namespace: NamespaceComments, ID: "dQw4w9WgXcQ", Cursor: "QURTSl9p"},
			expected: "tunedeck:comments:dQw4w9WgXcQ:cursor=QURTSl9p",
		},
		{
			name:     "stream url",
			key:      Key{Namespace: NamespaceStreamURL, ID: "dQw4w9WgXcQ"},
			expected: "tunedeck:stream_url:dQw4w9WgXcQ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKey_String_CaseByNamespace(t *testing.T) {
	// Queries key case-insensitively so one cache entry serves every
	// casing of the same search.
	upper := Key{Namespace: NamespaceSearch, ID: "Adele"}.String()
	lower := Key{Namespace: NamespaceSearch, ID: "adele"}.String()
	if upper != lower {
		t.Errorf("search keys differ by case: %q vs %q", upper, lower)
	}

	// Video IDs are case-sensitive upstream and must not collapse.
	a := Key{Namespace: NamespaceStreamURL, ID: "AbCdEfGhIjK"}.String()
	b := Key{Namespace: NamespaceStreamURL, ID: "abcdefghijk"}.String()
	if a == b {
		t.Errorf("distinct video ids collapsed to %q", a)
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{Namespace: NamespaceSearch, ID: "queen bohemian rhapsody", Cursor: "abc"}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestNamespace_Valid(t *testing.T) {
	for _, ns := range Namespaces {
		if !ns.Valid() {
			t.Errorf("Namespace %q should be valid", ns)
		}
	}

	if Namespace("playlists").Valid() {
		t.Error("unknown namespace should not be valid")
	}
}
