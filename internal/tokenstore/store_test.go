package tokenstore

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

func signedToken(t testing.TB, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": 1, "exp": exp.Unix(), "iat": time.Now().Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func testUser() *domain.User {
	phone := "08123"
	return &domain.User{ID: 1, Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Phone: &phone}
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend(), nil)
	token := signedToken(t, time.Now().Add(time.Hour))

	if err := store.Save(ctx, token, testUser()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec == nil || rec.Token != token {
		t.Fatalf("Load token mismatch: %+v", rec)
	}
	if rec.User.Email != "admin@example.com" || !rec.User.IsAdmin() {
		t.Errorf("Load user = %+v", rec.User)
	}
	if got := store.Token(ctx); got != token {
		t.Errorf("Token() = %q, want stored token", got)
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	rec, err := New(NewMemoryBackend(), nil).Load(context.Background())
	if err != nil || rec != nil {
		t.Fatalf("Load() = %v, %v; want nil, nil", rec, err)
	}
}

func TestStore_StoredTokenIsRaw(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := New(backend, nil)
	token := signedToken(t, time.Now().Add(time.Hour))

	if err := store.Save(ctx, token, testUser()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _, _ := backend.Get(ctx, KeyToken)
	if raw != token {
		t.Fatalf("backend holds %q, want raw token", raw)
	}
}

func TestStore_LoadPurgesCorruptRecords(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	tests := []struct {
		name   string
		values map[string]string
	}{
		{name: "quoted token", values: map[string]string{KeyToken: `"` + token + `"`, KeyUser: `{"user_id":1,"email":"a@b.c","role":"user"}`}},
		{name: "two segments", values: map[string]string{KeyToken: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", KeyUser: `{"user_id":1,"email":"a@b.c","role":"user"}`}},
		{name: "user not json", values: map[string]string{KeyToken: token, KeyUser: `{user`}},
		{name: "token without user", values: map[string]string{KeyToken: token}},
		{name: "user without token", values: map[string]string{KeyUser: `{"user_id":1,"email":"a@b.c","role":"user"}`}},
		{name: "user fails validation", values: map[string]string{KeyToken: token, KeyUser: `{"user_id":0}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backend := NewMemoryBackend()
			for k, v := range tt.values {
				_ = backend.Set(ctx, k, v)
			}
			store := New(backend, nil)

			rec, err := store.Load(ctx)
			if !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("Load err = %v, want ErrCorruptRecord", err)
			}
			if rec != nil {
				t.Fatalf("Load rec = %+v, want nil", rec)
			}
			for _, k := range []string{KeyToken, KeyUser} {
				if _, ok, _ := backend.Get(ctx, k); ok {
					t.Errorf("key %q survived purge", k)
				}
			}
		})
	}
}

func TestStore_SaveRejectsMalformedToken(t *testing.T) {
	store := New(NewMemoryBackend(), nil)
	err := store.Save(context.Background(), "not-a-jwt", testUser())
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("Save err = %v, want persistence error", err)
	}
}

type lossyBackend struct {
	*MemoryBackend
}

func (l lossyBackend) Set(ctx context.Context, key, value string) error {
	if key == KeyToken {
		value = `"` + value + `"`
	}
	return l.MemoryBackend.Set(ctx, key, value)
}

func TestValidateTokenShape_LengthBounds(t *testing.T) {
	shaped := func(n int) string {
		return "eyJhIjoxfQ." + strings.Repeat("A", n-16) + ".c2ln"
	}
	tests := []struct {
		length int
		ok     bool
	}{
		{50, true},
		{2000, true},
		{2002, false},
		{4000, false},
	}
	for _, tt := range tests {
		err := ValidateTokenShape(shaped(tt.length))
		if (err == nil) != tt.ok {
			t.Errorf("length %d: err = %v, want ok=%v", tt.length, err, tt.ok)
		}
		if err != nil && !strings.Contains(err.Error(), "length") {
			t.Errorf("length %d: err = %v, want a length error", tt.length, err)
		}
	}
	if err := ValidateTokenShape("a.b.c"); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("short token err = %v", err)
	}
}

func TestStore_SaveVerifiesRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := lossyBackend{NewMemoryBackend()}
	store := New(backend, nil)

	err := store.Save(ctx, signedToken(t, time.Now().Add(time.Hour)), testUser())
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("Save err = %v, want persistence error", err)
	}
	if _, ok, _ := backend.Get(ctx, KeyToken); ok {
		t.Error("failed save must not leave a token behind")
	}
	if _, ok, _ := backend.Get(ctx, KeyUser); ok {
		t.Error("failed save must not leave a user behind")
	}
}

func TestStore_SaveUserRequiresToken(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend(), nil)

	if err := store.SaveUser(ctx, testUser()); !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("SaveUser err = %v", err)
	}
	if rec, _ := store.Load(ctx); rec != nil {
		t.Fatal("SaveUser must not create a record")
	}
}

func TestStore_PurgeIfToken(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend(), nil)
	current := signedToken(t, time.Now().Add(time.Hour))
	stale := signedToken(t, time.Now().Add(2*time.Hour))

	if err := store.Save(ctx, current, testUser()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	purged, err := store.PurgeIfToken(ctx, stale)
	if err != nil || purged {
		t.Fatalf("PurgeIfToken(stale) = %v, %v", purged, err)
	}
	if store.Token(ctx) != current {
		t.Fatal("stale purge removed the current record")
	}
	purged, err = store.PurgeIfToken(ctx, current)
	if err != nil || !purged {
		t.Fatalf("PurgeIfToken(current) = %v, %v", purged, err)
	}
	if store.Token(ctx) != "" {
		t.Fatal("record survived purge")
	}
}

func TestRecord_Expired(t *testing.T) {
	now := time.Now()
	live := &Record{Token: signedToken(t, now.Add(time.Hour))}
	dead := &Record{Token: signedToken(t, now.Add(-time.Minute))}

	if live.Expired(now) {
		t.Error("live token reported expired")
	}
	if !dead.Expired(now) {
		t.Error("expired token not reported")
	}
	opaque := &Record{Token: "aaaa.bbbb.cccc"}
	if opaque.Expired(now) {
		t.Error("token without readable claims must not count as expired")
	}
}

func TestFileBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	store := New(backend, nil)
	token := signedToken(t, time.Now().Add(time.Hour))

	if err := store.Save(ctx, token, testUser()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, err := New(reopened, nil).Load(ctx)
	if err != nil || rec == nil || rec.Token != token {
		t.Fatalf("Load after reopen = %+v, %v", rec, err)
	}

	if err := store.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if rec, err := New(reopened, nil).Load(ctx); rec != nil || err != nil {
		t.Fatalf("Load after purge = %+v, %v", rec, err)
	}
}

func FuzzStore_TokenRoundTrip(f *testing.F) {
	f.Add([]byte(`{"alg":"HS256","typ":"JWT"}`), []byte(`{"sub":1}`), []byte("signature-bytes-0123456789"))
	f.Add([]byte{0xff, 0x00, 0x10}, []byte("payload with spaces and ünïcode"), []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})

	f.Fuzz(func(t *testing.T, header, payload, sig []byte) {
		enc := base64.RawURLEncoding
		token := enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString(sig)
		if ValidateTokenShape(token) != nil {
			t.Skip()
		}

		ctx := context.Background()
		store := New(NewMemoryBackend(), nil)
		if err := store.Save(ctx, token, testUser()); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if got := store.Token(ctx); got != token {
			t.Fatalf("Token() = %q, want %q", got, token)
		}
		rec, err := store.Load(ctx)
		if err != nil || rec.Token != token {
			t.Fatalf("Load = %+v, %v", rec, err)
		}
	})
}
