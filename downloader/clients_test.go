package downloader

import (
	"testing"
)

func TestClientOrder(t *testing.T) {
	withCookies := ClientOrder(true)
	without := ClientOrder(false)

	if len(withCookies) == 0 || len(without) == 0 {
		t.Fatal("ClientOrder returned an empty sequence")
	}

	// The two orderings contain the same clients but in a different order.
	if len(withCookies) != len(without) {
		t.Fatalf("ordering lengths differ: %d vs %d", len(withCookies), len(without))
	}

	same := true
	for i := range withCookies {
		if withCookies[i] != without[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("cookie and default orderings are identical")
	}

	members := make(map[PlayerClient]bool)
	for _, c := range withCookies {
		members[c] = true
	}
	for _, c := range without {
		if !members[c] {
			t.Errorf("client %s missing from cookie ordering", c)
		}
	}
}

func TestClientOrderDeterministic(t *testing.T) {
	for _, cookies := range []bool{true, false} {
		first := ClientOrder(cookies)
		second := ClientOrder(cookies)
		for i := range first {
			if first[i] != second[i] {
				t.Errorf("ordering for cookies=%v not deterministic at %d", cookies, i)
			}
		}
	}
}

func TestClientOrderReturnsCopy(t *testing.T) {
	order := ClientOrder(false)
	order[0] = PlayerClient("mutated")

	if fresh := ClientOrder(false); fresh[0] == "mutated" {
		t.Error("ClientOrder exposes shared backing array")
	}
}
