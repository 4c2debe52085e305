package registry

import "testing"

func TestRegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[int]()

	if err := r.Register("a", 1); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", 2); err == nil {
		t.Errorf("duplicate register must error")
	}
	if err := r.Register("", 3); err == nil {
		t.Errorf("empty name must error")
	}

	v, ok := r.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get = %v, %v", v, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Errorf("missing key must not be found")
	}
}

func TestReplace(t *testing.T) {
	r := NewBaseRegistry[string]()
	_ = r.Register("k", "old")
	r.Replace("k", "new")

	v, _ := r.Get("k")
	if v != "new" {
		t.Errorf("Replace did not overwrite: %q", v)
	}

	r.Replace("fresh", "v")
	if r.Count() != 2 {
		t.Errorf("Replace on a new name must insert")
	}
}

func TestRemoveAndClear(t *testing.T) {
	r := NewBaseRegistry[int]()
	_ = r.Register("a", 1)
	_ = r.Register("b", 2)

	if err := r.Remove("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Remove("a"); err == nil {
		t.Errorf("removing a missing item must error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d", r.Count())
	}

	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Clear left %d items", r.Count())
	}
}

func TestListAndNames(t *testing.T) {
	r := NewBaseRegistry[int]()
	_ = r.Register("a", 1)
	_ = r.Register("b", 2)

	if len(r.List()) != 2 || len(r.Names()) != 2 {
		t.Errorf("List/Names sizes wrong")
	}
}
