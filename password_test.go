package authx

import (
	"bytes"
	"math/big"
	"strings"
	"testing"
)

func TestPasswordHasher_CheckMatches(t *testing.T) {
	h := NewPasswordHasher()
	for _, pw := range []string{"", "\x01", "a", "correct horse battery staple", "pässwörd", strings.Repeat("x", 512)} {
		rec, err := h.Create(pw)
		if err != nil {
			t.Fatalf("Create(%q): %v", pw, err)
		}
		if !h.Check(pw, rec) {
			t.Fatalf("Check(%q) rejected its own record", pw)
		}
		ok, err := h.CheckEncoded(pw, rec.String())
		if err != nil || !ok {
			t.Fatalf("CheckEncoded(%q) = %v, %v", pw, ok, err)
		}
	}
}

func TestPasswordHasher_RejectsWrongPassword(t *testing.T) {
	h := NewPasswordHasher()
	rec, err := h.Create("hunter2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, pw := range []string{"hunter3", "Hunter2", "hunter2 ", "", "hunter"} {
		if h.Check(pw, rec) {
			t.Fatalf("Check(%q) accepted the wrong password", pw)
		}
	}
}

func TestPasswordHasher_SaltsDiffer(t *testing.T) {
	h := NewPasswordHasher()
	a, err := h.Create("same")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := h.Create("same")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Salt.Cmp(b.Salt) == 0 {
		t.Fatal("two records drew the same salt")
	}
	if a.Digest == b.Digest {
		t.Fatal("different salts produced the same digest")
	}
}

func TestPasswordHasher_KnownAnswers(t *testing.T) {
	h := NewPasswordHasher()
	cases := []struct {
		password string
		salt     int64
		want     string
	}{
		{"abc", 5, "2ada9bb354ba2332770fd25bbd29e9d8dc7602e46d98b06651d241073e99e16a 5"},
		{"", 0, "0a88111852095cae045340ea1f0b279944b2a756a213d9b50107d7489771e159 0"},
		{"hunter2", 123456789, "4d80d3ca2c709956afd0f8fc9b29678cf077b7e771a237e78326f11f779dde9e 123456789"},
	}
	for _, tc := range cases {
		rec, err := h.CreateWithSalt(tc.password, big.NewInt(tc.salt))
		if err != nil {
			t.Fatalf("CreateWithSalt(%q): %v", tc.password, err)
		}
		if got := rec.String(); got != tc.want {
			t.Fatalf("CreateWithSalt(%q, %d) = %s, want %s", tc.password, tc.salt, got, tc.want)
		}
	}
}

func TestPasswordHasher_FixedSaltIsDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0xab}, DefaultSaltLength)
	a, err := NewPasswordHasher(WithSaltSource(bytes.NewReader(salt))).Create("pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := NewPasswordHasher(WithSaltSource(bytes.NewReader(salt))).Create("pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("same salt gave different records: %s vs %s", a, b)
	}
	if a.Salt.Cmp(new(big.Int).SetBytes(salt)) != 0 {
		t.Fatalf("unexpected salt %s", a.Salt)
	}
}

func TestPasswordHasher_InvalidSalt(t *testing.T) {
	h := NewPasswordHasher(WithSaltLength(2))
	for _, salt := range []*big.Int{nil, big.NewInt(-1), big.NewInt(1 << 16)} {
		_, err := h.CreateWithSalt("pw", salt)
		expectCode(t, err, ErrCodeInvalidSalt)
	}
	if _, err := h.CreateWithSalt("pw", big.NewInt(1<<16-1)); err != nil {
		t.Fatalf("largest 2-byte salt rejected: %v", err)
	}

	_, err := NewPasswordHasher(WithSaltSource(bytes.NewReader([]byte{1}))).Create("pw")
	if err == nil {
		t.Fatal("expected error for a short salt source")
	}
}

func TestParsePasswordRecord(t *testing.T) {
	h := NewPasswordHasher()
	rec, err := h.Create("pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	parsed, err := ParsePasswordRecord(rec.String())
	if err != nil {
		t.Fatalf("ParsePasswordRecord: %v", err)
	}
	if parsed.Digest != rec.Digest || parsed.Salt.Cmp(rec.Salt) != 0 {
		t.Fatal("parsed record differs")
	}

	digest := strings.Repeat("ab", 32)
	bad := []string{
		"",
		digest,
		digest + " 1 2",
		"zz" + digest[2:] + " 1",
		digest[:62] + " 1",
		digest + " -1",
		digest + " 0x10",
		digest + "  1",
	}
	for _, s := range bad {
		_, err := ParsePasswordRecord(s)
		expectCode(t, err, ErrCodeMalformedPasswordRecord)

		ok, err := h.CheckEncoded("pw", s)
		if ok || CodeOf(err) != ErrCodeMalformedPasswordRecord {
			t.Fatalf("CheckEncoded(%q) = %v, %v", s, ok, err)
		}
	}
}
