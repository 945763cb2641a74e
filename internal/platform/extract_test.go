package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) Payload {
	t.Helper()
	p, err := Decode([]byte(raw))
	require.NoError(t, err)
	return p
}

func TestPayload_Lookups(t *testing.T) {
	p := decode(t, `{
		"actor": {"name": {"text": "Ada Lovelace"}},
		"createdAt": 1700000000000,
		"id": 42,
		"flags": {"reshared": true, "empty": {}},
		"items": [{"a": 1}, "skip", {"b": 2}]
	}`)

	assert.Equal(t, "Ada Lovelace", p.String("actor", "name", "text"))
	assert.Equal(t, "42", p.String("id"))
	assert.Equal(t, "1700000000000", p.String("createdAt"))
	assert.Empty(t, p.String("actor", "missing", "text"))
	assert.Empty(t, p.String("actor"), "objects do not stringify")
	assert.True(t, p.Truthy("flags", "reshared"))
	assert.False(t, p.Truthy("flags", "empty"))
	assert.False(t, p.Truthy("nope"))
	assert.Len(t, p.Objects("items"), 2)
	assert.Nil(t, p.Object("id"))
}

func TestExtract_Chains(t *testing.T) {
	urn := LastSegment(FirstOf(Field("urn"), Field("updateUrn")))

	assert.Equal(t, "7001", Extract(decode(t, `{"urn":"urn:li:activity:7001"}`), urn))
	assert.Equal(t, "7002", Extract(decode(t, `{"updateUrn":"urn:li:fs_updateV2:7002"}`), urn))
	assert.Equal(t, "plain", Extract(decode(t, `{"urn":"plain"}`), urn))
	assert.Empty(t, Extract(decode(t, `{}`), urn))
	assert.Equal(t, "fallback", Extract(decode(t, `{}`), urn, Const("fallback")))
}

func TestExternalID_DeterministicAndNonEmpty(t *testing.T) {
	ids := []Strategy{LastSegment(Field("urn"))}
	content := "Shipping a new release today #golang"

	a := ExternalID(decode(t, `{}`), content, ids...)
	b := ExternalID(decode(t, `{}`), content, ids...)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	assert.NotEqual(t, a, ExternalID(decode(t, `{}`), content+"!", ids...))
	assert.Equal(t, "1", ExternalID(decode(t, `{"urn":"urn:li:activity:1"}`), content, ids...))
	assert.NotEqual(t,
		ExternalID(decode(t, `{"urn":"urn:li:activity:1"}`), content, ids...),
		ExternalID(decode(t, `{"urn":"urn:li:activity:2"}`), content, ids...))

	assert.NotEmpty(t, ExternalID(nil, "", ids...))
}

func TestContentHash_OnlyFirst200Runes(t *testing.T) {
	base := strings.Repeat("ż", 200)
	assert.Equal(t, ContentHash(base), ContentHash(base+"tail that is ignored"))
	assert.NotEqual(t, ContentHash(base[:len(base)-2]+"x"), ContentHash(base))
}

func TestTitleOf(t *testing.T) {
	assert.Equal(t, "First line", TitleOf("  First line\nsecond line"))
	long := strings.Repeat("a", 150)
	assert.Equal(t, strings.Repeat("a", 120), TitleOf(long))
	assert.Equal(t, "", TitleOf(""))
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"epoch millis", float64(1700000000000), "2023-11-14T22:13:20Z"},
		{"zero", float64(0), ""},
		{"nil", nil, ""},
		{"rfc3339 offset", "2024-03-01T10:00:00+01:00", "2024-03-01T09:00:00Z"},
		{"ruby date", "Wed Oct 10 20:19:24 +0000 2018", "2018-10-10T20:19:24Z"},
		{"passthrough", "yesterday", "yesterday"},
		{"unsupported", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Timestamp(tt.in))
		})
	}
}

// FuzzPayload_Robustness decodes arbitrary bodies and walks them with every accessor. None
// of them may panic and ExternalID must always produce an id.
func FuzzPayload_Robustness(f *testing.F) {
	f.Add([]byte(`{"id": 42, "actor": {"name": {"text": "Ada"}}, "items": [{"a": 1}, "x"]}`), "actor", "name")
	f.Add([]byte(`{"id": null, "flags": {"reshared": 0}}`), "flags", "reshared")
	f.Add([]byte(`[1, 2]`), "", "")
	f.Add([]byte(`{`), "id", "")

	f.Fuzz(func(t *testing.T, body []byte, outer, inner string) {
		p, err := Decode(body)
		if err != nil {
			return
		}
		for _, path := range [][]string{{outer}, {outer, inner}, {"id"}, {"items"}} {
			s := p.String(path...)
			if _, ok := p.Lookup(path...); !ok && s != "" {
				t.Errorf("String(%q) = %q for a missing path", path, s)
			}
			p.Truthy(path...)
			p.Object(path...)
			p.List(path...)
			p.Objects(path...)
		}

		content := p.String(outer)
		id := ExternalID(p, content, Field("id"), Field(outer, inner))
		if id == "" {
			t.Fatalf("empty external id for %q", body)
		}
		if again := ExternalID(p, content, Field("id"), Field(outer, inner)); again != id {
			t.Errorf("external id is not stable: %q then %q", id, again)
		}
	})
}
