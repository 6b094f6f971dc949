// File: internal/authstate/state_test.go

package authstate

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() *Session {
	return &Session{
		Cookies: []Cookie{
			{Name: "ASP.NET_SessionId", Value: "abc123", Domain: ".city4u.co.il", Path: "/", Expires: -1, HTTPOnly: true, Secure: true, SameSite: "Lax"},
			{Name: "auth", Value: "tok", Domain: "my-meitav.co.il", Path: "/", Expires: 4102444800},
		},
		Origins: []OriginState{
			{
				Origin:         "https://www.city4u.co.il",
				LocalStorage:   []Entry{{Name: "lastVisit", Value: "2026-08-01"}},
				SessionStorage: []Entry{{Name: "sessionToken", Value: "xyz"}},
			},
		},
	}
}

func TestSessionCodecRoundTrip(t *testing.T) {
	original := sampleSession()
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	if diff := cmp.Diff(original, &decoded); diff != "" {
		t.Errorf("session round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionParsesWithoutSessionStorage(t *testing.T) {
	// Documents written by tools unaware of the sessionStorage extension must
	// still load.
	raw := `{
		"cookies": [{"name": "a", "value": "b", "domain": "x.example", "path": "/", "expires": -1, "httpOnly": false, "secure": false}],
		"origins": [{"origin": "https://x.example", "localStorage": [{"name": "k", "value": "v"}]}]
	}`
	var s Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	require.Len(t, s.Origins, 1)
	assert.Nil(t, s.Origins[0].SessionStorage)
	assert.Equal(t, "k", s.Origins[0].LocalStorage[0].Name)
}

func TestUpsertOriginKeepsSingleStatePerOrigin(t *testing.T) {
	var s Session
	first := s.UpsertOrigin("https://a.example")
	first.LocalStorage = []Entry{{Name: "k", Value: "v"}}

	again := s.UpsertOrigin("https://a.example")
	assert.Equal(t, first.LocalStorage, again.LocalStorage)
	assert.Len(t, s.Origins, 1)

	s.UpsertOrigin("https://b.example")
	assert.Len(t, s.Origins, 2)
}

func TestMissingOrigins(t *testing.T) {
	s := sampleSession()
	missing := s.MissingOrigins([]string{"https://www.city4u.co.il", "https://my-meitav.co.il"})
	assert.Equal(t, []string{"https://my-meitav.co.il"}, missing)
	assert.Empty(t, s.MissingOrigins([]string{"https://www.city4u.co.il"}))
	assert.Empty(t, s.MissingOrigins(nil))
}

func TestNormalizeOrigin(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "FullURL", input: "https://www.city4u.co.il/portal/login?x=1", want: "https://www.city4u.co.il"},
		{name: "WithPort", input: "http://localhost:8080/page", want: "http://localhost:8080"},
		{name: "NoScheme", input: "city4u.co.il/portal", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeOrigin(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func FuzzSessionDecode(f *testing.F) {
	seed, err := json.Marshal(sampleSession())
	if err != nil {
		f.Fatal(err)
	}
	f.Add(seed)
	f.Add([]byte(`{"cookies":[],"origins":[]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		raw, err := consumer.GetBytes()
		if err != nil {
			return
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return
		}
		// Anything that decodes must re-encode.
		if _, err := json.Marshal(&s); err != nil {
			t.Errorf("decoded session failed to re-encode: %v", err)
		}
	})
}
