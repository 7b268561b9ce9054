package upstream

import "testing"

func TestPoolEnabledSetIsSortedAndIndependentOfRegistration(t *testing.T) {
	p := NewPool()
	p.Register("c2", &FakeTransport{})
	p.Register("c1", &FakeTransport{})
	p.Register("c3", &FakeTransport{})

	p.Disable("c3")

	got := p.ListEnabled()
	want := []string{"c1", "c2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("want %v, got %v", want, got)
	}

	if p.IsEnabled("c3") {
		t.Fatal("c3 should be disabled")
	}
	if _, ok := p.Get("c3"); !ok {
		t.Fatal("c3 should still be registered")
	}

	p.Enable("c3")
	if !p.IsEnabled("c3") {
		t.Fatal("c3 should be re-enabled")
	}
}

func TestPoolGetUnregistered(t *testing.T) {
	p := NewPool()
	if _, ok := p.Get("ghost"); ok {
		t.Fatal("want not registered")
	}
}
