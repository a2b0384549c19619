package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/backend"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/config"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/confstore"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/export"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/session"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/unlock"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const (
	testEmail    = "anna@example.com"
	testPassword = "s3cret"
)

// fakeBackend is an in-memory auth provider and storage.
type fakeBackend struct {
	mu        sync.Mutex
	sess      *models.Session
	listeners map[int]func(models.AuthEvent, *models.Session)
	next      int
	signInErr error
	healthErr error
	selects   []string
	inserts   []models.BloodPressure
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{listeners: map[int]func(models.AuthEvent, *models.Session){}}
}

func (f *fakeBackend) session() *models.Session {
	return &models.Session{
		AccessToken: "access", RefreshToken: "refresh",
		ExpiresAt: time.Now().Add(time.Hour),
		User:      models.User{ID: "user-1", Email: testEmail},
	}
}

func (f *fakeBackend) loggedIn() *fakeBackend {
	f.sess = f.session()
	return f
}

func (f *fakeBackend) emit(event models.AuthEvent, sess *models.Session) {
	f.mu.Lock()
	fns := make([]func(models.AuthEvent, *models.Session), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(event, sess)
	}
}

func (f *fakeBackend) current() *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeBackend) GetSession(context.Context) (*models.Session, error) { return f.current(), nil }

func (f *fakeBackend) GetUser(context.Context) (*models.User, error) {
	if s := f.current(); s != nil {
		u := s.User
		return &u, nil
	}
	return nil, nil
}

func (f *fakeBackend) RefreshSession(context.Context) (*models.Session, error) { return f.current(), nil }

func (f *fakeBackend) OnAuthStateChange(fn func(models.AuthEvent, *models.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeBackend) SignInWithPassword(_ context.Context, email, password string) (*models.Session, error) {
	f.mu.Lock()
	if f.signInErr != nil {
		err := f.signInErr
		f.mu.Unlock()
		return nil, err
	}
	if email != testEmail || password != testPassword {
		f.mu.Unlock()
		return nil, backend.ErrInvalidCredentials
	}
	f.sess = f.session()
	sess := f.sess
	f.mu.Unlock()
	f.emit(models.EventSignedIn, sess)
	return sess, nil
}

func (f *fakeBackend) SignOut(context.Context) error {
	f.mu.Lock()
	f.sess = nil
	f.mu.Unlock()
	f.emit(models.EventSignedOut, nil)
	return nil
}

func (f *fakeBackend) ForgetSession(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = nil
}

func (f *fakeBackend) Restore(context.Context) (*models.Session, error) {
	sess := f.current()
	f.emit(models.EventInitialSession, sess)
	return sess, nil
}

func (f *fakeBackend) AccessToken(context.Context) (string, error) { return "access", nil }

func (f *fakeBackend) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeBackend) setHealth(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthErr = err
}

func (f *fakeBackend) Select(_ context.Context, table string, _ url.Values, out any) error {
	f.mu.Lock()
	f.selects = append(f.selects, table)
	f.mu.Unlock()
	return json.Unmarshal([]byte(`[]`), out)
}

func (f *fakeBackend) Insert(_ context.Context, _ string, row any, out any) error {
	bp := row.(models.BloodPressure)
	bp.ID = "row-1"
	f.mu.Lock()
	f.inserts = append(f.inserts, bp)
	f.mu.Unlock()
	raw, _ := json.Marshal([]models.BloodPressure{bp})
	return json.Unmarshal(raw, out)
}

func (f *fakeBackend) RPC(_ context.Context, fn string, _ any, out any) error {
	f.mu.Lock()
	f.selects = append(f.selects, "rpc:"+fn)
	f.mu.Unlock()
	return json.Unmarshal([]byte(`[]`), out)
}

func (f *fakeBackend) called(table string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.selects {
		if s == table {
			return true
		}
	}
	return false
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabasePath = ":memory:"
	cfg.OnlineCheckInterval = 0
	cfg.AuthGracePeriod = 20 * time.Millisecond
	cfg.RefreshStepTimeout = time.Second
	cfg.ExportDir = t.TempDir()
	return cfg
}

func testDeps(t *testing.T, fb *fakeBackend) deps {
	keys := t.TempDir()
	return deps{
		openConf: func(ctx context.Context, _ string) (*confstore.Store, error) {
			return confstore.Open(ctx, ":memory:")
		},
		newBackend: func(*config.Config, *confstore.Store, logging.Logger, func(context.Context, error)) (Backend, error) {
			return fb, nil
		},
		newRealtime: func(*config.Config, Backend, logging.Logger, func(string)) (session.Realtime, error) {
			return nil, nil
		},
		newExporter: func(_ context.Context, cfg *config.Config) (export.Exporter, error) {
			return export.DirExporter{Dir: cfg.ExportDir}, nil
		},
		passkeys: func(*config.Config) unlock.Passkeys { return unlock.NewDeviceKey(keys) },
	}
}

// newTestApp returns an app that is not booted yet.
func newTestApp(t *testing.T, fb *fakeBackend, input string) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	a := newApp(testConfig(t), testDeps(t, fb), logging.Nop(), timex.Real(), strings.NewReader(input), out)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a, out
}

func bootedApp(t *testing.T, fb *fakeBackend) (*App, *syncBuffer) {
	t.Helper()
	a, out := newTestApp(t, fb, "")
	require.NoError(t, a.Boot(context.Background()))
	return a, out
}

// stubInputs replaces the prompt helpers. Lines are consumed in order by
// getSimpleText and getMultiline; secrets by getPassword and getSecret.
func stubInputs(t *testing.T, lines []string, secrets []string) {
	t.Helper()
	origST, origGP, origGS, origML := getSimpleText, getPassword, getSecret, getMultiline
	t.Cleanup(func() {
		getSimpleText, getPassword, getSecret, getMultiline = origST, origGP, origGS, origML
	})

	var mu sync.Mutex
	nextLine := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(lines) == 0 {
			return "", io.EOF
		}
		l := lines[0]
		lines = lines[1:]
		return l, nil
	}
	nextSecret := func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(secrets) == 0 {
			return nil, io.EOF
		}
		s := secrets[0]
		secrets = secrets[1:]
		return []byte(s), nil
	}
	getSimpleText = func(*bufio.Reader, string, io.Writer) (string, error) { return nextLine() }
	getMultiline = func(*bufio.Reader, string, io.Writer) (string, error) { return nextLine() }
	getPassword = func(io.Writer) ([]byte, error) { return nextSecret() }
	getSecret = func(string, io.Writer) ([]byte, error) { return nextSecret() }
}
