package preferences

import (
	"errors"
	"sort"
	"testing"

	"github.com/kalambet/prefs/internal/backend"
)

const testDomain = "com.example.prefs"

func testResolvers(t *testing.T) map[string]backend.Resolver {
	t.Helper()
	sq, err := backend.OpenSQLite(":memory:", testDomain)
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]backend.Resolver{
		"memory": backend.NewMemoryResolver(testDomain),
		"file":   backend.NewFileResolver(t.TempDir(), testDomain),
		"sqlite": sq,
	}
}

func mustNew(t *testing.T, cfg Configuration, r backend.Resolver) *Store {
	t.Helper()
	s, err := New(cfg, r)
	if err != nil {
		t.Fatalf("New(%s): %v", cfg, err)
	}
	return s
}

func sortedKeys(t *testing.T, s *Store) []string {
	t.Helper()
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	return keys
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSetThenGet(t *testing.T) {
	for name, r := range testResolvers(t) {
		t.Run(name, func(t *testing.T) {
			s := mustNew(t, Named("app"), r)

			cases := map[string]string{"theme": "dark", "empty": "", "unicode": "héllo ✓"}
			for k, v := range cases {
				if err := s.Set(k, v); err != nil {
					t.Fatalf("Set(%q): %v", k, err)
				}
			}
			for k, want := range cases {
				got, ok, err := s.Get(k)
				if err != nil || !ok || got != want {
					t.Errorf("Get(%q) = %q, %v, %v; want %q", k, got, ok, err, want)
				}
			}

			if err := s.Set("theme", "light"); err != nil {
				t.Fatal(err)
			}
			if got, _, _ := s.Get("theme"); got != "light" {
				t.Errorf("Get after overwrite = %q, want light", got)
			}
		})
	}
}

func TestGetMissingAndRemove(t *testing.T) {
	for name, r := range testResolvers(t) {
		t.Run(name, func(t *testing.T) {
			s := mustNew(t, Named("app"), r)

			if _, ok, err := s.Get("never"); ok || err != nil {
				t.Errorf("Get(never) ok = %v, err = %v; want absent, nil", ok, err)
			}
			if err := s.Remove("never"); err != nil {
				t.Errorf("Remove(never) = %v, want nil", err)
			}

			s.Set("k", "v")
			if err := s.Remove("k"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, ok, _ := s.Get("k"); ok {
				t.Error("Get after Remove should be absent")
			}
		})
	}
}

func TestRemoveAllClearsNamespace(t *testing.T) {
	for name, r := range testResolvers(t) {
		t.Run(name, func(t *testing.T) {
			s := mustNew(t, Named("app"), r)
			for _, k := range []string{"a", "b", "c"} {
				s.Set(k, k)
			}
			if err := s.RemoveAll(); err != nil {
				t.Fatalf("RemoveAll: %v", err)
			}
			if keys := sortedKeys(t, s); len(keys) != 0 {
				t.Errorf("Keys after RemoveAll = %v, want empty", keys)
			}
		})
	}
}

func TestNamespaceIsolation(t *testing.T) {
	for name, r := range testResolvers(t) {
		t.Run(name, func(t *testing.T) {
			a := mustNew(t, Named("a"), r)
			b := mustNew(t, Named("b"), r)
			legacy := mustNew(t, LegacyFlatStorage(), r)

			a.Set("shared", "from-a")
			if _, ok, _ := b.Get("shared"); ok {
				t.Error("Named(b) sees a key written by Named(a)")
			}

			b.Set("only-b", "x")
			legacy.Set("flat", "y")

			if err := a.RemoveAll(); err != nil {
				t.Fatal(err)
			}
			if v, ok, _ := b.Get("only-b"); !ok || v != "x" {
				t.Error("Named(a).RemoveAll removed an entry of Named(b)")
			}
			if _, ok, _ := legacy.Get("flat"); !ok {
				t.Error("Named(a).RemoveAll removed an unprefixed entry")
			}

			// The unprefixed view sees every raw key, including b's.
			got := sortedKeys(t, legacy)
			if want := []string{"b.only-b", "flat"}; !equal(got, want) {
				t.Errorf("legacy Keys = %v, want %v", got, want)
			}
		})
	}
}

func TestEmptyPrefixRemoveAllClearsBackingStore(t *testing.T) {
	r := backend.NewMemoryResolver(testDomain)
	named := mustNew(t, Named("app"), r)
	legacy := mustNew(t, LegacyFlatStorage(), r)

	named.Set("k", "v")
	legacy.Set("flat", "v")

	if err := legacy.RemoveAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := named.Get("k"); ok {
		t.Error("LegacyFlatStorage.RemoveAll should clear the whole standard store")
	}
}

func TestKeysRoundTrip(t *testing.T) {
	for name, r := range testResolvers(t) {
		t.Run(name, func(t *testing.T) {
			s := mustNew(t, SharedGroup("group.test"), r)
			want := map[string]string{"k1": "v1", "k2": "v2", "k3": "v3", "with.dot": "v4"}
			for k, v := range want {
				s.Set(k, v)
			}

			keys := sortedKeys(t, s)
			if !equal(keys, []string{"k1", "k2", "k3", "with.dot"}) {
				t.Fatalf("Keys = %v", keys)
			}
			for _, k := range keys {
				if v, _, _ := s.Get(k); v != want[k] {
					t.Errorf("Get(%q) = %q, want %q", k, v, want[k])
				}
			}
		})
	}
}

func TestDemoScenario(t *testing.T) {
	for name, r := range testResolvers(t) {
		t.Run(name, func(t *testing.T) {
			s := mustNew(t, Named("demo"), r)
			s.Set("theme", "dark")
			s.Set("lang", "en")

			if got := sortedKeys(t, s); !equal(got, []string{"lang", "theme"}) {
				t.Errorf("Keys = %v, want [lang theme]", got)
			}
			s.Remove("lang")
			if got := sortedKeys(t, s); !equal(got, []string{"theme"}) {
				t.Errorf("Keys = %v, want [theme]", got)
			}
			if _, ok, _ := s.Get("lang"); ok {
				t.Error("Get(lang) should be absent")
			}
			if v, _, _ := s.Get("theme"); v != "dark" {
				t.Errorf("Get(theme) = %q, want dark", v)
			}
		})
	}
}

func TestSharedGroupSeparateFromStandard(t *testing.T) {
	r := backend.NewMemoryResolver(testDomain)
	group := mustNew(t, SharedGroup("group.one"), r)
	legacy := mustNew(t, LegacyFlatStorage(), r)
	other := mustNew(t, SharedGroup("group.one"), r)

	group.Set("token", "abc")
	if _, ok, _ := legacy.Get("token"); ok {
		t.Error("SharedGroup entry visible in the standard store")
	}
	if v, ok, _ := other.Get("token"); !ok || v != "abc" {
		t.Error("two stores on the same group should share entries")
	}
}

func TestNewErrors(t *testing.T) {
	r := backend.NewMemoryResolver(testDomain)

	_, err := New(SharedGroup(backend.GlobalDomain), r)
	if !errors.Is(err, ErrGroupUnavailable) {
		t.Errorf("New(group:NSGlobalDomain) err = %v, want ErrGroupUnavailable", err)
	}
	if !errors.Is(err, backend.ErrInvalidSuite) {
		t.Errorf("err should wrap backend.ErrInvalidSuite, got %v", err)
	}

	if _, err := New(SharedGroup(""), r); !errors.Is(err, ErrGroupUnavailable) {
		t.Errorf("New(group:) err = %v, want ErrGroupUnavailable", err)
	}
	if _, err := New(Configuration{}, r); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("New(zero) err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestNewRejectsPaddedNames(t *testing.T) {
	r := backend.NewMemoryResolver(testDomain)

	for _, name := range []string{"x ", " x", "x\t"} {
		if _, err := New(Named(name), r); !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("New(Named(%q)) err = %v, want ErrInvalidConfiguration", name, err)
		}
		if _, err := New(SharedGroup(name), r); !errors.Is(err, ErrGroupUnavailable) {
			t.Errorf("New(SharedGroup(%q)) err = %v, want ErrGroupUnavailable", name, err)
		}
	}

	// Whatever New accepts parses back to the same configuration.
	for _, cfg := range []Configuration{Named("a b"), SharedGroup("group.x"), LegacyFlatStorage()} {
		if _, err := New(cfg, r); err != nil {
			t.Fatalf("New(%v): %v", cfg, err)
		}
		back, err := ParseConfiguration(cfg.String())
		if err != nil || back != cfg {
			t.Errorf("ParseConfiguration(%q) = %v, %v; want %v", cfg.String(), back, err, cfg)
		}
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	s := mustNew(t, Named("app"), backend.NewMemoryResolver(testDomain))
	if err := s.Set("", "v"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set(\"\") err = %v", err)
	}
	if _, _, err := s.Get(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Get(\"\") err = %v", err)
	}
	if err := s.Remove(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Remove(\"\") err = %v", err)
	}
}

type failingBackend struct{}

var errDisk = errors.New("disk on fire")

func (failingBackend) Get(string) (string, bool, error) { return "", false, errDisk }
func (failingBackend) Set(string, string) error { return errDisk }
func (failingBackend) Delete(string) error { return errDisk }
func (failingBackend) Keys() ([]string, error) { return nil, errDisk }

type failingResolver struct{}

func (failingResolver) Standard() (backend.Backend, error) { return failingBackend{}, nil }
func (failingResolver) Suite(string) (backend.Backend, error) { return failingBackend{}, nil }

func TestStorageFailuresSurface(t *testing.T) {
	s := mustNew(t, Named("app"), failingResolver{})

	checks := map[string]error{
		"set":    s.Set("k", "v"),
		"remove": s.Remove("k"),
		"clear":  s.RemoveAll(),
	}
	_, _, checks["get"] = s.Get("k")
	_, checks["keys"] = s.Keys()

	for op, err := range checks {
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Errorf("%s err = %v, want ErrStorageUnavailable", op, err)
		}
		if !errors.Is(err, errDisk) {
			t.Errorf("%s err = %v, want it to wrap the backend error", op, err)
		}
	}
}
