package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	users   []models.User
	listErr error
	regErr  error

	gotIdentity string
	gotPin      string
	gotEmb      face.Embedding
}

func (f *fakeStore) Register(_ context.Context, identity, pin string, emb face.Embedding) (*models.User, error) {
	f.gotIdentity, f.gotPin, f.gotEmb = identity, pin, emb
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &models.User{Seq: 7, Identity: identity}, nil
}

func (f *fakeStore) List(context.Context) ([]models.User, error) {
	return f.users, f.listErr
}

func newTestApp(store *fakeStore, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		users:   store,
		migrate: func(context.Context) error { return nil },
		reader:  bufio.NewReader(strings.NewReader(input)),
		out:     &out,
	}, &out
}

func stubReadFile(t *testing.T, files map[string]string) {
	t.Helper()
	old := readFile
	t.Cleanup(func() { readFile = old })
	readFile = func(name string) ([]byte, error) {
		s, ok := files[name]
		if !ok {
			return nil, os.ErrNotExist
		}
		return []byte(s), nil
	}
}

func TestUsers(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &fakeStore{users: []models.User{
		{Seq: 1, Identity: "alice", Embedding: face.Embedding{1, 2, 3}, CreatedAt: at},
		{Seq: 2, Identity: "bob", Embedding: face.Embedding{1}, CreatedAt: at},
	}}
	a, out := newTestApp(store, "")

	require.Equal(t, 0, a.Run(context.Background(), []string{"users"}))
	s := out.String()
	assert.Contains(t, s, "IDENTITY")
	assert.Contains(t, s, "alice")
	assert.Contains(t, s, "2026-01-02T03:04:05Z")
	assert.Contains(t, s, "2 user(s)")
	assert.Less(t, strings.Index(s, "alice"), strings.Index(s, "bob"))
}

func TestUsers_Error(t *testing.T) {
	a, out := newTestApp(&fakeStore{listErr: common.ErrorInternal}, "")
	assert.Equal(t, 1, a.Run(context.Background(), []string{"users"}))
	assert.Contains(t, out.String(), "internal error")
}

func TestMigrate(t *testing.T) {
	a, out := newTestApp(&fakeStore{}, "")
	require.Equal(t, 0, a.Run(context.Background(), []string{"migrate"}))
	assert.Contains(t, out.String(), "up to date")

	a, out = newTestApp(&fakeStore{}, "")
	a.migrate = func(context.Context) error { return errors.New("locked") }
	assert.Equal(t, 1, a.Run(context.Background(), []string{"migrate"}))
	assert.Contains(t, out.String(), "locked")
}

func TestEnroll(t *testing.T) {
	stubReadFile(t, map[string]string{
		"bare.json":    `[0.1, 0.2, 0.3]`,
		"wrapped.json": `{"embedding": [0.4, 0.5]}`,
	})

	stubPasswords(t, "42", "42")
	store := &fakeStore{}
	a, out := newTestApp(store, "")
	require.Equal(t, 0, a.Run(context.Background(), []string{"enroll", "-identity", "alice", "-embedding", "bare.json"}))
	assert.Equal(t, "alice", store.gotIdentity)
	assert.Equal(t, "42", store.gotPin)
	assert.Equal(t, face.Embedding{0.1, 0.2, 0.3}, store.gotEmb)
	assert.Contains(t, out.String(), "enrolled alice (seq 7)")

	// identity prompted when the flag is absent
	stubPasswords(t, "9", "9")
	store = &fakeStore{}
	a, _ = newTestApp(store, "bob\n")
	require.Equal(t, 0, a.Run(context.Background(), []string{"enroll", "-embedding", "wrapped.json"}))
	assert.Equal(t, "bob", store.gotIdentity)
	assert.Equal(t, face.Embedding{0.4, 0.5}, store.gotEmb)
}

func TestEnroll_Errors(t *testing.T) {
	stubReadFile(t, map[string]string{
		"ok.json":  `[1, 0]`,
		"bad.json": `"nope"`,
		"nan.json": `[]`,
	})

	tests := []struct {
		name string
		args []string
		pins []string
		err  error
		want string
	}{
		{"no embedding flag", []string{"enroll", "-identity", "x"}, nil, nil, "-embedding is required"},
		{"unknown flag", []string{"enroll", "-face", "x"}, nil, nil, "enroll"},
		{"missing file", []string{"enroll", "-identity", "x", "-embedding", "none.json"}, nil, nil, "read embedding"},
		{"bad json", []string{"enroll", "-identity", "x", "-embedding", "bad.json"}, nil, nil, "parse embedding"},
		{"empty vector", []string{"enroll", "-identity", "x", "-embedding", "nan.json"}, nil, nil, "invalid embedding"},
		{"pin mismatch", []string{"enroll", "-identity", "x", "-embedding", "ok.json"}, []string{"1", "2"}, nil, "pins do not match"},
		{"duplicate", []string{"enroll", "-identity", "x", "-embedding", "ok.json"}, []string{"1", "1"}, common.ErrDuplicateIdentity, "identity already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPasswords(t, tt.pins...)
			a, out := newTestApp(&fakeStore{regErr: tt.err}, "")
			assert.Equal(t, 1, a.Run(context.Background(), tt.args))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	a, out := newTestApp(&fakeStore{}, "")
	assert.Equal(t, 1, a.Run(context.Background(), []string{"drop"}))
	assert.Contains(t, out.String(), `unknown command "drop"`)

	a, out = newTestApp(&fakeStore{}, "")
	assert.Equal(t, 0, a.Run(context.Background(), []string{"help"}))
	assert.Contains(t, out.String(), "enroll")
}

func TestRun_ClosesDB(t *testing.T) {
	a, _ := newTestApp(&fakeStore{}, "")
	closed := false
	a.closeDB = func() error { closed = true; return nil }
	a.Run(context.Background(), []string{"help"})
	assert.True(t, closed)
}
