package cache

import "testing"

func TestJobKey(t *testing.T) {
	k1 := jobKey("abc")
	k2 := jobKey("abc")
	if k1 != k2 {
		t.Errorf("job keys not deterministic: %q != %q", k1, k2)
	}
	if k1 != "job:abc" {
		t.Errorf("unexpected key format %q", k1)
	}
	if jobKey("abc") == jobKey("def") {
		t.Error("different job ids must map to different keys")
	}
}
